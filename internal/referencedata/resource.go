// Package referencedata serves the CRUD endpoints of the reference data
// entities: geography, facilities, programs, products, schedules,
// supervision, rights and settings.
package referencedata

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lmis-backend/internal/audit"
	"lmis-backend/internal/auth"
	"lmis-backend/internal/database"
	"lmis-backend/internal/httperr"
	"lmis-backend/internal/models"
)

var logger = loggo.GetLogger("lmis.referencedata")

// Entity is the pointer side of a model type usable by Resource.
type Entity[T any] interface {
	*T
	GetID() uuid.UUID
	SetID(uuid.UUID)
	UpdateFrom(*T)
}

type associationSaver interface {
	SaveAssociations(tx *gorm.DB) error
}

// Resource implements create, list, get, update-or-create and delete for
// one entity type.
type Resource[T any, P Entity[T]] struct {
	// EntityType names the entity in audit logs and error messages.
	EntityType string
	Preloads   []string
	Order      string

	// Prepare adjusts the entity about to be stored from the raw request.
	Prepare func(c *fiber.Ctx, entity P) error

	// Validate runs inside the write transaction.
	Validate func(tx *gorm.DB, entity P, creating bool) error
}

// Register mounts the five CRUD routes on router. Write routes are
// wrapped by guard when it is not nil.
func (r Resource[T, P]) Register(router fiber.Router, db *gorm.DB, guard fiber.Handler) {
	audit.Register(r.EntityType, func() any { return P(new(T)) })

	write := func(h fiber.Handler) []fiber.Handler {
		if guard == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{guard, h}
	}

	router.Post("/", write(r.CreateHandler(db))...)
	router.Get("/", r.ListHandler(db))
	router.Get("/:id", r.GetHandler(db))
	router.Put("/:id", write(r.UpdateHandler(db))...)
	router.Delete("/:id", write(r.DeleteHandler(db))...)
}

func (r Resource[T, P]) preload(db *gorm.DB) *gorm.DB {
	for _, p := range r.Preloads {
		db = db.Preload(p)
	}
	return db
}

func (r Resource[T, P]) ListHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		order := r.Order
		if order == "" {
			order = "created_at"
		}

		var items []T
		if err := r.preload(db.WithContext(c.UserContext())).Order(order).Find(&items).Error; err != nil {
			logger.Errorf("listing %s: %v", r.EntityType, err)
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("cannot list %s", r.EntityType))
		}
		return c.JSON(items)
	}
}

func (r Resource[T, P]) GetHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParseID(c, "id")
		if err != nil {
			return err
		}

		entity := P(new(T))
		if err := r.preload(db.WithContext(c.UserContext())).First(entity, "id = ?", id).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("%s not found", r.EntityType))
			}
			return httperr.FromDomain(err)
		}
		return c.JSON(entity)
	}
}

func (r Resource[T, P]) CreateHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entity := P(new(T))
		if err := c.BodyParser(entity); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		entity.SetID(uuid.Nil)
		if r.Prepare != nil {
			if err := r.Prepare(c, entity); err != nil {
				return err
			}
		}

		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := r.store(tx, entity, true); err != nil {
				return err
			}
			return audit.WriteLog(tx, r.logOptions(c, entity.GetID(), models.AuditActionCreate, nil, entity))
		})
		if err != nil {
			return r.writeError(err, fiber.StatusBadRequest)
		}

		return c.Status(fiber.StatusCreated).JSON(r.reload(db, c, entity))
	}
}

// UpdateHandler copies the payload onto the stored entity, creating it
// under the path id when it does not exist yet.
func (r Resource[T, P]) UpdateHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParseID(c, "id")
		if err != nil {
			return err
		}

		payload := P(new(T))
		if err := c.BodyParser(payload); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		entity := P(new(T))
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			creating := false
			before := P(new(T))
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(before, "id = ?", id).Error
			switch {
			case database.IsNotFound(err):
				creating = true
				entity.SetID(id)
			case err != nil:
				return err
			default:
				*entity = *before
			}

			entity.UpdateFrom(payload)
			if r.Prepare != nil {
				if err := r.Prepare(c, entity); err != nil {
					return err
				}
			}
			if err := r.store(tx, entity, creating); err != nil {
				return err
			}

			opts := r.logOptions(c, id, models.AuditActionUpdate, before, entity)
			if creating {
				opts = r.logOptions(c, id, models.AuditActionCreate, nil, entity)
			}
			return audit.WriteLog(tx, opts)
		})
		if err != nil {
			return r.writeError(err, fiber.StatusBadRequest)
		}

		return c.JSON(r.reload(db, c, entity))
	}
}

func (r Resource[T, P]) DeleteHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := ParseID(c, "id")
		if err != nil {
			return err
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			entity := P(new(T))
			if err := tx.First(entity, "id = ?", id).Error; err != nil {
				if database.IsNotFound(err) {
					return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("%s not found", r.EntityType))
				}
				return err
			}
			if err := tx.Delete(entity).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, r.logOptions(c, id, models.AuditActionDelete, entity, nil))
		})
		if err != nil {
			return r.writeError(err, fiber.StatusConflict)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (r Resource[T, P]) store(tx *gorm.DB, entity P, creating bool) error {
	if r.Validate != nil {
		if err := r.Validate(tx, entity, creating); err != nil {
			return err
		}
	}

	var err error
	if creating {
		err = tx.Omit(clause.Associations).Create(entity).Error
	} else {
		err = tx.Omit(clause.Associations).Save(entity).Error
	}
	if err != nil {
		return err
	}

	if saver, ok := any(entity).(associationSaver); ok {
		return saver.SaveAssociations(tx)
	}
	return nil
}

func (r Resource[T, P]) reload(db *gorm.DB, c *fiber.Ctx, entity P) P {
	fresh := P(new(T))
	if err := r.preload(db.WithContext(c.UserContext())).First(fresh, "id = ?", entity.GetID()).Error; err != nil {
		logger.Warningf("reloading %s %s: %v", r.EntityType, entity.GetID(), err)
		return entity
	}
	return fresh
}

// writeError maps constraint violations to violationStatus and everything
// else through httperr.
func (r Resource[T, P]) writeError(err error, violationStatus int) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	if database.IsConstraintViolation(err) {
		logger.Debugf("%s integrity violation: %v", r.EntityType, err)
		return fiber.NewError(violationStatus, fmt.Sprintf("%s violates data integrity constraints", r.EntityType))
	}
	return httperr.FromDomain(err)
}

func (r Resource[T, P]) logOptions(c *fiber.Ctx, id uuid.UUID, action models.AuditAction, before, after any) audit.LogOptions {
	opts := audit.LogOptions{
		UserName:    auth.Username(c),
		EntityType:  r.EntityType,
		EntityID:    id,
		Action:      action,
		Description: fmt.Sprintf("%s %s %s", action, r.EntityType, id),
		Before:      before,
		After:       after,
	}
	if userID, ok := auth.UserID(c); ok {
		opts.UserID = &userID
	}
	return opts
}

// ParseID reads a uuid path parameter.
func ParseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// ParseOptionalID reads a uuid query parameter; ok is false when absent.
func ParseOptionalID(c *fiber.Ctx, name string) (id uuid.UUID, ok bool, err error) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err = uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, true, nil
}
