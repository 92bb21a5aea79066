package requisition

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lmis-backend/internal/database"
	"lmis-backend/internal/models"
)

// DBState implements State on a gorm session. Handlers bind it to the
// request transaction.
type DBState struct {
	db *gorm.DB
}

func NewState(db *gorm.DB) *DBState {
	return &DBState{db: db}
}

func (st *DBState) GetRequisition(ctx context.Context, id uuid.UUID) (*models.Requisition, error) {
	return st.loadRequisition(ctx, id, true)
}

func (st *DBState) ReadRequisition(ctx context.Context, id uuid.UUID) (*models.Requisition, error) {
	return st.loadRequisition(ctx, id, false)
}

func (st *DBState) loadRequisition(ctx context.Context, id uuid.UUID, lock bool) (*models.Requisition, error) {
	db := st.db.WithContext(ctx)
	q := db
	if lock {
		q = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var req models.Requisition
	err := q.First(&req, "id = ?", id).Error
	if database.IsNotFound(err) {
		return nil, errors.NotFoundf("requisition %s", id)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "loading requisition %s", id)
	}
	if err := st.loadLines(db, &req); err != nil {
		return nil, errors.Trace(err)
	}
	return &req, nil
}

func (st *DBState) loadLines(db *gorm.DB, req *models.Requisition) error {
	err := db.Preload("Product").
		Where("requisition_id = ?", req.ID).
		Order("created_at, id").
		Find(&req.Lines).Error
	return errors.Annotatef(err, "loading lines of requisition %s", req.ID)
}

func (st *DBState) RequisitionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := st.db.WithContext(ctx).Model(&models.Requisition{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, errors.Annotatef(err, "counting requisition %s", id)
	}
	return count > 0, nil
}

func (st *DBState) FindRegularRequisition(ctx context.Context, facilityID, programID, periodID uuid.UUID) (*models.Requisition, error) {
	db := st.db.WithContext(ctx)
	var req models.Requisition
	err := db.Where("facility_id = ? AND program_id = ? AND processing_period_id = ? AND emergency = ?",
		facilityID, programID, periodID, false).
		First(&req).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotate(err, "finding regular requisition")
	}
	if err := st.loadLines(db, &req); err != nil {
		return nil, errors.Trace(err)
	}
	return &req, nil
}

func (st *DBState) CreateRequisition(ctx context.Context, req *models.Requisition) error {
	db := st.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(req).Error; err != nil {
		return errors.Trace(err)
	}
	if len(req.Lines) == 0 {
		return nil
	}
	for i := range req.Lines {
		req.Lines[i].RequisitionID = req.ID
	}
	return errors.Trace(db.Omit(clause.Associations).Create(&req.Lines).Error)
}

// UpdateRequisition stores the requisition's own columns and the values
// of its existing lines.
func (st *DBState) UpdateRequisition(ctx context.Context, req *models.Requisition) error {
	db := st.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(req).Error; err != nil {
		return errors.Trace(err)
	}
	for i := range req.Lines {
		if err := db.Omit(clause.Associations).Save(&req.Lines[i]).Error; err != nil {
			return errors.Annotatef(err, "saving line %s", req.Lines[i].ID)
		}
	}
	return nil
}

func (st *DBState) DeleteRequisition(ctx context.Context, id uuid.UUID) error {
	return st.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.RequisitionLine{},
			&models.Comment{},
			&models.StatusChange{},
		} {
			if err := tx.Where("requisition_id = ?", id).Delete(model).Error; err != nil {
				return errors.Trace(err)
			}
		}
		result := tx.Delete(&models.Requisition{}, "id = ?", id)
		if result.Error != nil {
			return errors.Trace(result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.NotFoundf("requisition %s", id)
		}
		return nil
	})
}

func (st *DBState) SearchRequisitions(ctx context.Context, filter SearchFilter) ([]models.Requisition, error) {
	q := st.db.WithContext(ctx).Model(&models.Requisition{}).
		Preload("Facility").
		Preload("Program").
		Preload("ProcessingPeriod")

	if filter.FacilityID != nil {
		q = q.Where("requisitions.facility_id = ?", *filter.FacilityID)
	}
	if filter.ProgramID != nil {
		q = q.Where("requisitions.program_id = ?", *filter.ProgramID)
	}
	if filter.PeriodID != nil {
		q = q.Where("requisitions.processing_period_id = ?", *filter.PeriodID)
	}
	if filter.SupervisoryNodeID != nil {
		q = q.Where("requisitions.supervisory_node_id = ?", *filter.SupervisoryNodeID)
	}
	if len(filter.SupervisoryNodeIDs) > 0 {
		q = q.Where("requisitions.supervisory_node_id IN ?", filter.SupervisoryNodeIDs)
	}
	if filter.SupplyingFacilityID != nil {
		q = q.Joins("JOIN supervisory_nodes ON supervisory_nodes.id = requisitions.supervisory_node_id").
			Where("supervisory_nodes.facility_id = ?", *filter.SupplyingFacilityID)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("requisitions.created_date >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("requisitions.created_date <= ?", *filter.CreatedTo)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("requisitions.status IN ?", filter.Statuses)
	}
	if filter.Emergency != nil {
		q = q.Where("requisitions.emergency = ?", *filter.Emergency)
	}

	var reqs []models.Requisition
	if err := q.Order("requisitions.created_date DESC").Find(&reqs).Error; err != nil {
		return nil, errors.Annotate(err, "searching requisitions")
	}
	return reqs, nil
}

func (st *DBState) AddStatusChange(ctx context.Context, change *models.StatusChange) error {
	return errors.Trace(st.db.WithContext(ctx).Create(change).Error)
}

func (st *DBState) StatusChanges(ctx context.Context, requisitionID uuid.UUID) ([]models.StatusChange, error) {
	var changes []models.StatusChange
	err := st.db.WithContext(ctx).
		Where("requisition_id = ?", requisitionID).
		Order("created_date, created_at").
		Find(&changes).Error
	return changes, errors.Trace(err)
}

func (st *DBState) AddComment(ctx context.Context, comment *models.Comment) error {
	return errors.Trace(st.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error)
}

func (st *DBState) Comments(ctx context.Context, requisitionID uuid.UUID) ([]models.Comment, error) {
	var comments []models.Comment
	err := st.db.WithContext(ctx).
		Preload("Author").
		Where("requisition_id = ?", requisitionID).
		Order("created_date, created_at").
		Find(&comments).Error
	return comments, errors.Trace(err)
}

func (st *DBState) GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	var program models.Program
	err := st.db.WithContext(ctx).First(&program, "id = ?", id).Error
	if database.IsNotFound(err) {
		return nil, errors.NotFoundf("program %s", id)
	}
	return &program, errors.Trace(err)
}

func (st *DBState) GetPeriod(ctx context.Context, id uuid.UUID) (*models.ProcessingPeriod, error) {
	var period models.ProcessingPeriod
	err := st.db.WithContext(ctx).First(&period, "id = ?", id).Error
	if database.IsNotFound(err) {
		return nil, errors.NotFoundf("processing period %s", id)
	}
	return &period, errors.Trace(err)
}

func (st *DBState) PreviousPeriod(ctx context.Context, period *models.ProcessingPeriod) (*models.ProcessingPeriod, error) {
	var previous models.ProcessingPeriod
	err := st.db.WithContext(ctx).
		Where("processing_schedule_id = ? AND start_date < ?", period.ProcessingScheduleID, period.StartDate).
		Order("start_date DESC").
		First(&previous).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "finding period before %s", period.ID)
	}
	return &previous, nil
}

func (st *DBState) GetTemplate(ctx context.Context, programID uuid.UUID) (*models.RequisitionTemplate, error) {
	var template models.RequisitionTemplate
	err := st.db.WithContext(ctx).Preload("Columns").Where("program_id = ?", programID).First(&template).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "loading template of program %s", programID)
	}
	return &template, nil
}

func (st *DBState) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := st.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if database.IsNotFound(err) {
		return nil, errors.NotFoundf("user %s", id)
	}
	return &user, errors.Trace(err)
}

func (st *DBState) ChildNodes(ctx context.Context, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := st.db.WithContext(ctx).Model(&models.SupervisoryNode{}).
		Where("parent_id IN ?", parentIDs).
		Pluck("id", &ids).Error
	return ids, errors.Trace(err)
}
