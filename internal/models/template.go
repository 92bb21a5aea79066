package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Requisition template column names referenced by line calculations.
const (
	ColumnBeginningBalance          = "beginningBalance"
	ColumnTotalReceivedQuantity     = "totalReceivedQuantity"
	ColumnTotalConsumedQuantity     = "totalConsumedQuantity"
	ColumnTotalLossesAndAdjustments = "totalLossesAndAdjustments"
	ColumnStockOnHand               = "stockOnHand"
)

type RequisitionTemplate struct {
	Base
	ProgramID uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex" json:"programId"`
	Program   *Program                    `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	Columns   []RequisitionTemplateColumn `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"columns"`
}

func (t *RequisitionTemplate) UpdateFrom(o *RequisitionTemplate) {
	t.ProgramID = o.ProgramID
	t.Columns = o.Columns
}

// SaveAssociations rewrites the template's columns.
func (t *RequisitionTemplate) SaveAssociations(tx *gorm.DB) error {
	if err := tx.Where("template_id = ?", t.ID).Delete(&RequisitionTemplateColumn{}).Error; err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		return nil
	}
	for i := range t.Columns {
		t.Columns[i].ID = uuid.Nil
		t.Columns[i].TemplateID = t.ID
	}
	return tx.Create(&t.Columns).Error
}

// Column returns the named column, or nil when the template lacks it.
func (t *RequisitionTemplate) Column(name string) *RequisitionTemplateColumn {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

type RequisitionTemplateColumn struct {
	Base
	TemplateID         uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Name               string    `gorm:"size:50;not null" json:"name"`
	Label              string    `gorm:"size:100" json:"label"`
	Indicator          string    `gorm:"size:5" json:"indicator"`
	DisplayOrder       int       `json:"displayOrder"`
	IsDisplayed        bool      `gorm:"not null" json:"isDisplayed"`
	CanBeChangedByUser bool      `gorm:"not null" json:"canBeChangedByUser"`
	Source             string    `gorm:"size:20" json:"source"`
}
