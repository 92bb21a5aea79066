// Package requisition implements the requisition workflow: initiation,
// submission, authorization, rejection, skipping and release of periodic
// supply reports, together with the line calculations they rely on.
package requisition

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"lmis-backend/internal/models"
	"lmis-backend/internal/settings"
)

var logger = loggo.GetLogger("lmis.requisition")

// State describes retrieval and persistence methods for requisitions and
// the reference data the workflow reads.
type State interface {
	// GetRequisition returns the requisition with its lines, locking the
	// row for the rest of the transaction. It returns an error satisfying
	// errors.NotFound if there is no such requisition.
	GetRequisition(ctx context.Context, id uuid.UUID) (*models.Requisition, error)

	// ReadRequisition is GetRequisition without the row lock.
	ReadRequisition(ctx context.Context, id uuid.UUID) (*models.Requisition, error)

	// RequisitionExists reports whether a requisition with id is stored.
	RequisitionExists(ctx context.Context, id uuid.UUID) (bool, error)

	// FindRegularRequisition returns the non-emergency requisition for the
	// facility, program and period, or nil when there is none.
	FindRegularRequisition(ctx context.Context, facilityID, programID, periodID uuid.UUID) (*models.Requisition, error)

	CreateRequisition(ctx context.Context, req *models.Requisition) error
	UpdateRequisition(ctx context.Context, req *models.Requisition) error
	DeleteRequisition(ctx context.Context, id uuid.UUID) error
	SearchRequisitions(ctx context.Context, filter SearchFilter) ([]models.Requisition, error)

	AddStatusChange(ctx context.Context, change *models.StatusChange) error
	StatusChanges(ctx context.Context, requisitionID uuid.UUID) ([]models.StatusChange, error)
	AddComment(ctx context.Context, comment *models.Comment) error
	Comments(ctx context.Context, requisitionID uuid.UUID) ([]models.Comment, error)

	GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error)
	GetPeriod(ctx context.Context, id uuid.UUID) (*models.ProcessingPeriod, error)

	// PreviousPeriod returns the period of the same schedule that starts
	// last before period, or nil when period is the first one.
	PreviousPeriod(ctx context.Context, period *models.ProcessingPeriod) (*models.ProcessingPeriod, error)

	// GetTemplate returns the program's requisition template, or nil when
	// the program has none.
	GetTemplate(ctx context.Context, programID uuid.UUID) (*models.RequisitionTemplate, error)

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	// ChildNodes returns the ids of the supervisory nodes whose parent is
	// one of parentIDs.
	ChildNodes(ctx context.Context, parentIDs []uuid.UUID) ([]uuid.UUID, error)
}

// SettingsReader reads global configuration settings.
type SettingsReader interface {
	GetBoolValue(ctx context.Context, key string) (bool, error)
}

// TransitionRecorder is told about every completed status transition.
type TransitionRecorder interface {
	RecordTransition(action string)
}

// SearchFilter narrows SearchRequisitions. Zero fields do not filter.
type SearchFilter struct {
	FacilityID          *uuid.UUID
	ProgramID           *uuid.UUID
	PeriodID            *uuid.UUID
	SupervisoryNodeID   *uuid.UUID
	SupervisoryNodeIDs  []uuid.UUID
	SupplyingFacilityID *uuid.UUID
	CreatedFrom         *time.Time
	CreatedTo           *time.Time
	Statuses            []models.RequisitionStatus
	Emergency           *bool
}

// Service drives requisitions through their status workflow.
type Service struct {
	st       State
	settings SettingsReader
	clock    clock.Clock
	recorder TransitionRecorder
}

// NewService returns a new Service. A nil recorder is allowed.
func NewService(st State, settings SettingsReader, clk clock.Clock, recorder TransitionRecorder) *Service {
	return &Service{
		st:       st,
		settings: settings,
		clock:    clk,
		recorder: recorder,
	}
}

// Get returns the requisition with its lines. It does not lock the row.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Requisition, error) {
	req, err := s.st.ReadRequisition(ctx, id)
	return req, errors.Trace(err)
}

// Initiate stores a new requisition in the INITIATED status and fills in
// the initial values of its lines.
func (s *Service) Initiate(ctx context.Context, req *models.Requisition, authorID uuid.UUID) (*models.Requisition, error) {
	if req == nil {
		return nil, errors.NotValidf("nil requisition")
	}
	if req.ID != uuid.Nil {
		exists, err := s.st.RequisitionExists(ctx, req.ID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if exists {
			return nil, errors.AlreadyExistsf("requisition %s", req.ID)
		}
	} else {
		req.ID = uuid.New()
	}
	if req.FacilityID == uuid.Nil || req.ProgramID == uuid.Nil || req.ProcessingPeriodID == uuid.Nil {
		return nil, errors.NotValidf("requisition without facility, program or period")
	}
	if !req.Emergency {
		existing, err := s.st.FindRegularRequisition(ctx, req.FacilityID, req.ProgramID, req.ProcessingPeriodID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if existing != nil {
			return nil, errors.AlreadyExistsf("requisition for facility %s, program %s and period %s",
				req.FacilityID, req.ProgramID, req.ProcessingPeriodID)
		}
	}

	seen := set.NewStrings()
	for i := range req.Lines {
		line := &req.Lines[i]
		if line.ProductID == uuid.Nil {
			return nil, errors.NotValidf("requisition line %d without product", i)
		}
		if seen.Contains(line.ProductID.String()) {
			return nil, errors.NotValidf("duplicate requisition line for product %s", line.ProductID)
		}
		seen.Add(line.ProductID.String())
		line.ID = uuid.Nil
		line.RequisitionID = req.ID
	}

	req.Status = models.StatusInitiated
	req.CreatedDate = s.clock.Now().UTC()
	if err := s.InitiateLineFields(ctx, req); err != nil {
		return nil, errors.Trace(err)
	}
	if err := s.st.CreateRequisition(ctx, req); err != nil {
		return nil, errors.Annotatef(err, "creating requisition %s", req.ID)
	}
	if err := s.recordTransition(ctx, req, authorID, "initiate"); err != nil {
		return nil, errors.Trace(err)
	}
	return req, nil
}

// Submit applies the payload's line values to an INITIATED requisition,
// computes the derived line fields and moves it to SUBMITTED.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, payload *models.Requisition, authorID uuid.UUID) (*models.Requisition, error) {
	req, err := s.st.GetRequisition(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if req.Status != models.StatusInitiated {
		return nil, badStatus(req, models.StatusInitiated)
	}
	if err := s.apply(ctx, req, payload); err != nil {
		return nil, errors.Trace(err)
	}
	return s.transition(ctx, req, models.StatusSubmitted, authorID, "submit")
}

// Skip marks an INITIATED requisition as SKIPPED when its program allows
// skipping periods.
func (s *Service) Skip(ctx context.Context, id uuid.UUID, authorID uuid.UUID) (*models.Requisition, error) {
	req, err := s.st.GetRequisition(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if req.Status != models.StatusInitiated {
		return nil, errors.Annotate(badStatus(req, models.StatusInitiated), "skip failed")
	}
	program, err := s.st.GetProgram(ctx, req.ProgramID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !program.PeriodsSkippable {
		return nil, errors.Annotatef(ErrSkipNotAllowed, "skip failed for program %s", program.Code)
	}
	return s.transition(ctx, req, models.StatusSkipped, authorID, "skip")
}

// Authorize applies the payload to a SUBMITTED requisition, validates the
// result and moves it to AUTHORIZED. It fails while the skipAuthorization
// setting is on.
func (s *Service) Authorize(ctx context.Context, id uuid.UUID, payload *models.Requisition, authorID uuid.UUID) (*models.Requisition, error) {
	skip, err := s.settings.GetBoolValue(ctx, settings.SkipAuthorization)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if skip {
		return nil, errors.Trace(ErrAuthorizationSkipped)
	}
	req, err := s.st.GetRequisition(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if req.Status != models.StatusSubmitted {
		return nil, badStatus(req, models.StatusSubmitted)
	}
	if payload == nil {
		return nil, errors.NotValidf("nil requisition")
	}
	if err := s.apply(ctx, req, payload); err != nil {
		return nil, errors.Trace(err)
	}
	if err := Validate(req); err != nil {
		return nil, errors.Trace(err)
	}
	return s.transition(ctx, req, models.StatusAuthorized, authorID, "authorize")
}

// Reject sends an AUTHORIZED requisition back to INITIATED.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, authorID uuid.UUID) (*models.Requisition, error) {
	req, err := s.st.GetRequisition(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if req.Status != models.StatusAuthorized {
		return nil, badStatus(req, models.StatusAuthorized)
	}
	return s.transition(ctx, req, models.StatusInitiated, authorID, "reject")
}

// ReleaseAsOrder moves every listed requisition to RELEASED. Either all
// of them are released or, when one is missing, none.
func (s *Service) ReleaseAsOrder(ctx context.Context, ids []uuid.UUID, authorID uuid.UUID) ([]models.Requisition, error) {
	if len(ids) == 0 {
		return nil, errors.NotValidf("empty requisition list")
	}
	released := make([]models.Requisition, 0, len(ids))
	for _, id := range ids {
		req, err := s.st.GetRequisition(ctx, id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		req, err = s.transition(ctx, req, models.StatusReleased, authorID, "release")
		if err != nil {
			return nil, errors.Trace(err)
		}
		released = append(released, *req)
	}
	return released, nil
}

// Delete removes an INITIATED requisition.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	req, err := s.st.GetRequisition(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}
	if req.Status != models.StatusInitiated {
		return badStatus(req, models.StatusInitiated)
	}
	if err := s.st.DeleteRequisition(ctx, id); err != nil {
		return errors.Annotatef(err, "deleting requisition %s", id)
	}
	logger.Infof("deleted requisition %s", id)
	return nil
}

// Search returns the requisitions matching filter.
func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]models.Requisition, error) {
	reqs, err := s.st.SearchRequisitions(ctx, filter)
	return reqs, errors.Trace(err)
}

// RequisitionsForApproval returns the AUTHORIZED requisitions of the
// supervisory node the user supervises and of every node below it.
func (s *Service) RequisitionsForApproval(ctx context.Context, userID uuid.UUID) ([]models.Requisition, error) {
	user, err := s.st.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if user.SupervisedNodeID == nil {
		return []models.Requisition{}, nil
	}

	seen := set.NewStrings(user.SupervisedNodeID.String())
	nodes := []uuid.UUID{*user.SupervisedNodeID}
	frontier := nodes
	for len(frontier) > 0 {
		children, err := s.st.ChildNodes(ctx, frontier)
		if err != nil {
			return nil, errors.Trace(err)
		}
		var next []uuid.UUID
		for _, child := range children {
			if seen.Contains(child.String()) {
				continue
			}
			seen.Add(child.String())
			nodes = append(nodes, child)
			next = append(next, child)
		}
		frontier = next
	}

	reqs, err := s.st.SearchRequisitions(ctx, SearchFilter{
		SupervisoryNodeIDs: nodes,
		Statuses:           []models.RequisitionStatus{models.StatusAuthorized},
	})
	return reqs, errors.Trace(err)
}

// AddComment attaches a comment written by authorID to the requisition.
func (s *Service) AddComment(ctx context.Context, id uuid.UUID, authorID uuid.UUID, body string) (*models.Comment, error) {
	if body == "" {
		return nil, errors.NotValidf("empty comment")
	}
	exists, err := s.st.RequisitionExists(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !exists {
		return nil, errors.NotFoundf("requisition %s", id)
	}
	comment := &models.Comment{
		RequisitionID: id,
		AuthorID:      authorID,
		Body:          body,
		CreatedDate:   s.clock.Now().UTC(),
	}
	if err := s.st.AddComment(ctx, comment); err != nil {
		return nil, errors.Annotatef(err, "commenting requisition %s", id)
	}
	return comment, nil
}

// Comments returns the requisition's comments, oldest first.
func (s *Service) Comments(ctx context.Context, id uuid.UUID) ([]models.Comment, error) {
	exists, err := s.st.RequisitionExists(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !exists {
		return nil, errors.NotFoundf("requisition %s", id)
	}
	comments, err := s.st.Comments(ctx, id)
	return comments, errors.Trace(err)
}

// StatusChanges returns the requisition's status history, oldest first.
func (s *Service) StatusChanges(ctx context.Context, id uuid.UUID) ([]models.StatusChange, error) {
	exists, err := s.st.RequisitionExists(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !exists {
		return nil, errors.NotFoundf("requisition %s", id)
	}
	changes, err := s.st.StatusChanges(ctx, id)
	return changes, errors.Trace(err)
}

// apply copies the payload's line values onto req and recomputes the
// derived fields.
func (s *Service) apply(ctx context.Context, req *models.Requisition, payload *models.Requisition) error {
	if payload != nil {
		if payload.SupervisoryNodeID != nil {
			req.SupervisoryNodeID = payload.SupervisoryNodeID
		}
		for i := range payload.Lines {
			target, err := matchLine(req, &payload.Lines[i])
			if err != nil {
				return errors.Trace(err)
			}
			copyLineValues(target, &payload.Lines[i])
		}
	}

	rules, err := s.lineRules(ctx, req)
	if err != nil {
		return errors.Trace(err)
	}
	for i := range req.Lines {
		rules.save(&req.Lines[i])
	}
	CalculateLineFields(req)
	return nil
}

func (s *Service) transition(ctx context.Context, req *models.Requisition, to models.RequisitionStatus, authorID uuid.UUID, action string) (*models.Requisition, error) {
	from := req.Status
	req.Status = to
	if err := s.st.UpdateRequisition(ctx, req); err != nil {
		return nil, errors.Annotatef(err, "updating requisition %s", req.ID)
	}
	if err := s.recordTransition(ctx, req, authorID, action); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("requisition %s: %s -> %s", req.ID, from, to)
	return req, nil
}

func (s *Service) recordTransition(ctx context.Context, req *models.Requisition, authorID uuid.UUID, action string) error {
	change := &models.StatusChange{
		RequisitionID: req.ID,
		Status:        req.Status,
		CreatedDate:   s.clock.Now().UTC(),
	}
	if authorID != uuid.Nil {
		change.AuthorID = &authorID
	}
	if err := s.st.AddStatusChange(ctx, change); err != nil {
		return errors.Annotatef(err, "recording status change of requisition %s", req.ID)
	}
	if s.recorder != nil {
		s.recorder.RecordTransition(action)
	}
	return nil
}
