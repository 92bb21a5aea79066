package requisition

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"gorm.io/gorm"

	"lmis-backend/internal/audit"
	"lmis-backend/internal/auth"
	"lmis-backend/internal/httperr"
	"lmis-backend/internal/models"
	"lmis-backend/internal/referencedata"
	"lmis-backend/internal/settings"
)

const entityType = "requisition"

// Handler serves /api/requisitions. Every request runs in its own
// transaction with a Service bound to it.
type Handler struct {
	db       *gorm.DB
	clock    clock.Clock
	recorder TransitionRecorder
}

func NewHandler(db *gorm.DB, clk clock.Clock, recorder TransitionRecorder) *Handler {
	return &Handler{db: db, clock: clk, recorder: recorder}
}

// Register mounts the requisition routes on router. require builds the
// guard for a set of rights; with a nil require no route is guarded.
func (h *Handler) Register(router fiber.Router, require func(rights ...string) fiber.Handler) {
	guarded := func(handler fiber.Handler, rights ...string) []fiber.Handler {
		if require == nil {
			return []fiber.Handler{handler}
		}
		return []fiber.Handler{require(rights...), handler}
	}

	router.Post("/initiate", guarded(h.initiate, models.RightCreateRequisition)...)
	router.Post("/releaseAsOrder", guarded(h.releaseAsOrder, models.RightConvertToOrder)...)
	router.Get("/search", h.search)
	router.Get("/requisitionsForApproval", guarded(h.forApproval, models.RightApproveRequisition)...)

	router.Get("/:id", h.get)
	router.Delete("/:id", guarded(h.delete, models.RightDeleteRequisition)...)
	router.Put("/:id/submit", guarded(h.submit, models.RightCreateRequisition)...)
	router.Put("/:id/skip", guarded(h.skip, models.RightCreateRequisition)...)
	router.Put("/:id/authorize", guarded(h.authorize, models.RightAuthorizeRequisition)...)
	router.Put("/:id/reject", guarded(h.reject, models.RightApproveRequisition)...)
	router.Get("/:id/comments", h.comments)
	router.Post("/:id/comments", h.addComment)
	router.Get("/:id/statusChanges", h.statusChanges)
	router.Get("/:id/export", h.export)
}

// RegisterOrders mounts GET /:id/requisitions on the facilities router: the
// released requisitions supplied by that facility.
func (h *Handler) RegisterOrders(facilities fiber.Router) {
	facilities.Get("/:id/requisitions", h.orders)
}

// inTx runs fn with a Service bound to a new transaction. Domain errors
// are mapped to HTTP errors.
func (h *Handler) inTx(c *fiber.Ctx, fn func(ctx context.Context, tx *gorm.DB, svc *Service) error) error {
	ctx := c.UserContext()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := NewService(NewState(tx), settings.NewService(tx), h.clock, h.recorder)
		return fn(ctx, tx, svc)
	})
	return httperr.FromDomain(err)
}

func author(c *fiber.Ctx) uuid.UUID {
	id, _ := auth.UserID(c)
	return id
}

// logTransition writes the audit entry of a status change.
func logTransition(c *fiber.Ctx, tx *gorm.DB, action string, req *models.Requisition) error {
	opts := audit.LogOptions{
		UserName:    auth.Username(c),
		EntityType:  entityType,
		EntityID:    req.ID,
		Action:      models.AuditActionTransition,
		Description: fmt.Sprintf("%s requisition, now %s", action, req.Status),
		After:       req,
	}
	if id, ok := auth.UserID(c); ok {
		opts.UserID = &id
	}
	return audit.WriteLog(tx, opts)
}

// POST /api/requisitions/initiate
func (h *Handler) initiate(c *fiber.Ctx) error {
	var body models.Requisition
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid requisition")
	}
	var out *models.Requisition
	err := h.inTx(c, func(ctx context.Context, tx *gorm.DB, svc *Service) error {
		req, err := svc.Initiate(ctx, &body, author(c))
		if err != nil {
			return err
		}
		out = req
		return logTransition(c, tx, "initiate", req)
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// transition serves the PUT /:id/<action> routes.
func (h *Handler) transition(c *fiber.Ctx, action string, withBody bool,
	run func(ctx context.Context, svc *Service, id uuid.UUID, payload *models.Requisition) (*models.Requisition, error)) error {
	id, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	var payload *models.Requisition
	if withBody && len(c.Body()) > 0 {
		payload = new(models.Requisition)
		if err := c.BodyParser(payload); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid requisition")
		}
	}
	var out *models.Requisition
	err = h.inTx(c, func(ctx context.Context, tx *gorm.DB, svc *Service) error {
		req, err := run(ctx, svc, id, payload)
		if err != nil {
			return err
		}
		out = req
		return logTransition(c, tx, action, req)
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) submit(c *fiber.Ctx) error {
	return h.transition(c, "submit", true, func(ctx context.Context, svc *Service, id uuid.UUID, payload *models.Requisition) (*models.Requisition, error) {
		return svc.Submit(ctx, id, payload, author(c))
	})
}

func (h *Handler) skip(c *fiber.Ctx) error {
	return h.transition(c, "skip", false, func(ctx context.Context, svc *Service, id uuid.UUID, _ *models.Requisition) (*models.Requisition, error) {
		return svc.Skip(ctx, id, author(c))
	})
}

func (h *Handler) authorize(c *fiber.Ctx) error {
	return h.transition(c, "authorize", true, func(ctx context.Context, svc *Service, id uuid.UUID, payload *models.Requisition) (*models.Requisition, error) {
		return svc.Authorize(ctx, id, payload, author(c))
	})
}

func (h *Handler) reject(c *fiber.Ctx) error {
	return h.transition(c, "reject", false, func(ctx context.Context, svc *Service, id uuid.UUID, _ *models.Requisition) (*models.Requisition, error) {
		return svc.Reject(ctx, id, author(c))
	})
}

// POST /api/requisitions/releaseAsOrder with a list of requisition ids.
func (h *Handler) releaseAsOrder(c *fiber.Ctx) error {
	var ids []uuid.UUID
	if err := c.BodyParser(&ids); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid requisition id list")
	}
	var out []models.Requisition
	err := h.inTx(c, func(ctx context.Context, tx *gorm.DB, svc *Service) error {
		released, err := svc.ReleaseAsOrder(ctx, ids, author(c))
		if err != nil {
			return err
		}
		for i := range released {
			if err := logTransition(c, tx, "release", &released[i]); err != nil {
				return err
			}
		}
		out = released
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	var out *models.Requisition
	err = h.inTx(c, func(ctx context.Context, _ *gorm.DB, svc *Service) error {
		out, err = svc.Get(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) delete(c *fiber.Ctx) error {
	id, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	err = h.inTx(c, func(ctx context.Context, tx *gorm.DB, svc *Service) error {
		before, err := svc.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := svc.Delete(ctx, id); err != nil {
			return err
		}
		opts := audit.LogOptions{
			UserName:    auth.Username(c),
			EntityType:  entityType,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "delete requisition",
			Before:      before,
		}
		if userID, ok := auth.UserID(c); ok {
			opts.UserID = &userID
		}
		return audit.WriteLog(tx, opts)
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/requisitions/search?facility=&program=&period=&supervisoryNode=
// &supplyingFacility=&createdDateFrom=&createdDateTo=&status=&emergency=
func (h *Handler) search(c *fiber.Ctx) error {
	var filter SearchFilter
	for param, dst := range map[string]**uuid.UUID{
		"facility":          &filter.FacilityID,
		"program":           &filter.ProgramID,
		"period":            &filter.PeriodID,
		"supervisoryNode":   &filter.SupervisoryNodeID,
		"supplyingFacility": &filter.SupplyingFacilityID,
	} {
		id, ok, err := referencedata.ParseOptionalID(c, param)
		if err != nil {
			return err
		}
		if ok {
			*dst = &id
		}
	}
	for param, dst := range map[string]**time.Time{
		"createdDateFrom": &filter.CreatedFrom,
		"createdDateTo":   &filter.CreatedTo,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", param))
		}
		*dst = &t
	}
	if filter.CreatedTo != nil && len(c.Query("createdDateTo")) == len(dateLayout) {
		// A bare date includes the whole day.
		end := filter.CreatedTo.Add(24*time.Hour - time.Nanosecond)
		filter.CreatedTo = &end
	}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []models.RequisitionStatus{models.RequisitionStatus(status)}
	}
	if raw := c.Query("emergency"); raw != "" {
		emergency := c.QueryBool("emergency")
		filter.Emergency = &emergency
	}

	var out []models.Requisition
	err := h.inTx(c, func(ctx context.Context, _ *gorm.DB, svc *Service) error {
		var err error
		out, err = svc.Search(ctx, filter)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// GET /api/facilities/:id/requisitions?program=&facility=
func (h *Handler) orders(c *fiber.Ctx) error {
	supplying, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	filter := SearchFilter{
		SupplyingFacilityID: &supplying,
		Statuses:            []models.RequisitionStatus{models.StatusReleased},
	}
	for param, dst := range map[string]**uuid.UUID{
		"program":  &filter.ProgramID,
		"facility": &filter.FacilityID,
	} {
		id, ok, err := referencedata.ParseOptionalID(c, param)
		if err != nil {
			return err
		}
		if ok {
			*dst = &id
		}
	}

	var out []models.Requisition
	err = h.inTx(c, func(ctx context.Context, _ *gorm.DB, svc *Service) error {
		out, err = svc.Search(ctx, filter)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// GET /api/requisitions/requisitionsForApproval
func (h *Handler) forApproval(c *fiber.Ctx) error {
	userID, ok := auth.UserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, "no authenticated user")
	}
	var out []models.Requisition
	err := h.inTx(c, func(ctx context.Context, _ *gorm.DB, svc *Service) error {
		var err error
		out, err = svc.RequisitionsForApproval(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) comments(c *fiber.Ctx) error {
	id, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	var out []models.Comment
	err = h.inTx(c, func(ctx context.Context, _ *gorm.DB, svc *Service) error {
		out, err = svc.Comments(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) addComment(c *fiber.Ctx) error {
	id, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	authorID, ok := auth.UserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, "no authenticated user")
	}
	var body commentRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid comment")
	}
	var out *models.Comment
	err = h.inTx(c, func(ctx context.Context, _ *gorm.DB, svc *Service) error {
		out, err = svc.AddComment(ctx, id, authorID, body.Body)
		return err
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *Handler) statusChanges(c *fiber.Ctx) error {
	id, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	var out []models.StatusChange
	err = h.inTx(c, func(ctx context.Context, _ *gorm.DB, svc *Service) error {
		out, err = svc.StatusChanges(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(out)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /api/requisitions/:id/export
func (h *Handler) export(c *fiber.Ctx) error {
	id, err := referencedata.ParseID(c, "id")
	if err != nil {
		return err
	}
	var data []byte
	err = h.inTx(c, func(ctx context.Context, tx *gorm.DB, svc *Service) error {
		req, err := svc.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Preload("Facility").Preload("Program").Preload("ProcessingPeriod").
			First(req, "id = ?", id).Error; err != nil {
			return err
		}
		buf, err := Export(req)
		if err != nil {
			return err
		}
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="requisition-%s.xlsx"`, id))
	return c.Send(data)
}

const dateLayout = "2006-01-02"

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
