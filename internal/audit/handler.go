package audit

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"gorm.io/gorm"

	"lmis-backend/internal/auth"
	"lmis-backend/internal/httperr"
	"lmis-backend/internal/models"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"createdAt"`
	UserID      *uuid.UUID         `json:"userId"`
	UserName    string             `json:"userName"`
	EntityType  string             `json:"entityType"`
	EntityID    uuid.UUID          `json:"entityId"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	IsUndone    bool               `json:"isUndone"`
	UndoneBy    *uuid.UUID         `json:"undoneBy"`
	UndoneAt    *string            `json:"undoneAt"`
}

const timeLayout = "2006-01-02 15:04:05"

// GET /api/audit-logs?entityType=facility&entityId=...&userId=...
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.WithContext(c.UserContext()).Model(&models.AuditLog{})

		if entityType := c.Query("entityType"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}
		for param, column := range map[string]string{
			"entityId": "entity_id",
			"userId":   "user_id",
		} {
			raw := c.Query(param)
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", param))
			}
			dbq = dbq.Where(column+" = ?", id)
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
			return httperr.FromDomain(err)
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			var undoneAt *string
			if log.UndoneAt != nil {
				formatted := log.UndoneAt.Format(timeLayout)
				undoneAt = &formatted
			}
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format(timeLayout),
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				IsUndone:    log.IsUndone,
				UndoneBy:    log.UndoneBy,
				UndoneAt:    undoneAt,
			})
		}
		return c.JSON(resp)
	}
}

// POST /api/audit-logs/:id/undo
func UndoAuditLogHandler(db *gorm.DB, clk clock.Clock) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || logID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid audit log id")
		}

		var userID *uuid.UUID
		if id, ok := auth.UserID(c); ok {
			userID = &id
		}

		err = UndoLog(db.WithContext(c.UserContext()), uint(logID), userID, auth.Username(c), clk.Now().UTC())
		if err != nil {
			return httperr.FromDomain(err)
		}
		return c.JSON(fiber.Map{"message": "change undone"})
	}
}
