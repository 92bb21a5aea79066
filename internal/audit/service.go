package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lmis-backend/internal/models"
)

var logger = loggo.GetLogger("lmis.audit")

type LogOptions struct {
	UserID      *uuid.UUID
	UserName    string
	EntityType  string
	EntityID    uuid.UUID
	Action      models.AuditAction
	Description string
	Before      any
	After       any
	Undone      bool
}

func WriteLog(db *gorm.DB, opts LogOptions) error {
	log := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
		Undone:      opts.Undone,
	}
	if err := db.Create(&log).Error; err != nil {
		return errors.Annotate(err, "writing audit log")
	}
	return nil
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.Warningf("cannot snapshot %T: %v", v, err)
		return "null"
	}
	return string(b)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() any{}
)

// Register makes entityType undoable. newEntity returns a pointer to a
// zero model value that snapshots are decoded into.
func Register(entityType string, newEntity func() any) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[entityType] = newEntity
}

func factoryFor(entityType string) (func() any, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[entityType]
	return f, ok
}

// UndoLog reverts the change recorded by the log: a create is deleted, an
// update restores the before snapshot and a delete recreates the row with
// its original id.
func UndoLog(db *gorm.DB, logID uint, userID *uuid.UUID, userName string, now time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var log models.AuditLog
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&log, "id = ?", logID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.NotFoundf("audit log %d", logID)
			}
			return errors.Trace(err)
		}
		if log.IsUndone {
			return errors.AlreadyExistsf("undo of audit log %d", logID)
		}

		newEntity, ok := factoryFor(log.EntityType)
		if !ok {
			return errors.NotSupportedf("undo of %q changes", log.EntityType)
		}

		switch log.Action {
		case models.AuditActionCreate:
			entity := newEntity()
			if err := tx.First(entity, "id = ?", log.EntityID).Error; err != nil {
				return errors.Annotatef(err, "loading %s %s", log.EntityType, log.EntityID)
			}
			if err := tx.Delete(entity).Error; err != nil {
				return errors.Annotatef(err, "deleting %s %s", log.EntityType, log.EntityID)
			}
		case models.AuditActionUpdate:
			// Decode over the current row so fields hidden from the
			// snapshot keep their stored values.
			entity := newEntity()
			if err := tx.First(entity, "id = ?", log.EntityID).Error; err != nil {
				return errors.Annotatef(err, "loading %s %s", log.EntityType, log.EntityID)
			}
			if err := json.Unmarshal([]byte(log.BeforeData), entity); err != nil {
				return errors.Annotate(err, "decoding before snapshot")
			}
			if err := tx.Omit(clause.Associations).Save(entity).Error; err != nil {
				return errors.Annotatef(err, "restoring %s %s", log.EntityType, log.EntityID)
			}
		case models.AuditActionDelete:
			entity := newEntity()
			if err := json.Unmarshal([]byte(log.BeforeData), entity); err != nil {
				return errors.Annotate(err, "decoding deleted snapshot")
			}
			if err := tx.Omit(clause.Associations).Create(entity).Error; err != nil {
				return errors.Annotatef(err, "recreating %s %s", log.EntityType, log.EntityID)
			}
		default:
			return errors.NotSupportedf("undo of %q actions", log.Action)
		}

		log.IsUndone = true
		log.UndoneBy = userID
		log.UndoneAt = &now
		if err := tx.Save(&log).Error; err != nil {
			return errors.Annotate(err, "marking audit log undone")
		}

		return WriteLog(tx, LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  log.EntityType,
			EntityID:    log.EntityID,
			Action:      models.AuditActionUndo,
			Description: fmt.Sprintf("undo: %s", log.Description),
			Before:      json.RawMessage(log.AfterData),
			After:       json.RawMessage(log.BeforeData),
			Undone:      true,
		})
	})
}
