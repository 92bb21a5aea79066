package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionDelete     AuditAction = "delete"
	AuditActionUndo       AuditAction = "undo"
	AuditActionTransition AuditAction = "transition"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID   *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	UserName string     `gorm:"size:50" json:"userName"`

	// e.g. "facility", "program", "requisition"
	EntityType string    `gorm:"size:50;index" json:"entityType"`
	EntityID   uuid.UUID `gorm:"type:uuid;index" json:"entityId"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// JSON snapshots of the entity around the change.
	BeforeData string `gorm:"type:text" json:"beforeData"`
	AfterData  string `gorm:"type:text" json:"afterData"`

	// Undone marks a log written by an undo.
	Undone bool `json:"undone"`

	IsUndone bool       `gorm:"default:false" json:"isUndone"`
	UndoneBy *uuid.UUID `gorm:"type:uuid" json:"undoneBy"`
	UndoneAt *time.Time `json:"undoneAt"`
}
