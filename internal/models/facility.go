package models

import (
	"time"

	"github.com/google/uuid"
)

type FacilityType struct {
	Base
	Code         string `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name         string `gorm:"size:100" json:"name"`
	Description  string `gorm:"size:255" json:"description"`
	DisplayOrder *int   `json:"displayOrder"`
	Active       *bool  `json:"active"`
}

func (t *FacilityType) UpdateFrom(o *FacilityType) {
	t.Code = o.Code
	t.Name = o.Name
	t.Description = o.Description
	t.DisplayOrder = o.DisplayOrder
	t.Active = o.Active
}

type FacilityOperator struct {
	Base
	Code         string `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name         string `gorm:"size:100" json:"name"`
	Description  string `gorm:"size:255" json:"description"`
	DisplayOrder *int   `json:"displayOrder"`
}

func (op *FacilityOperator) UpdateFrom(o *FacilityOperator) {
	op.Code = o.Code
	op.Name = o.Name
	op.Description = o.Description
	op.DisplayOrder = o.DisplayOrder
}

type Facility struct {
	Base
	Code               string            `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name               string            `gorm:"size:100" json:"name"`
	Description        string            `gorm:"size:255" json:"description"`
	GeographicZoneID   uuid.UUID         `gorm:"type:uuid;not null" json:"geographicZoneId"`
	GeographicZone     *GeographicZone   `gorm:"foreignKey:GeographicZoneID" json:"geographicZone,omitempty"`
	TypeID             uuid.UUID         `gorm:"type:uuid;not null" json:"typeId"`
	Type               *FacilityType     `gorm:"foreignKey:TypeID" json:"type,omitempty"`
	OperatorID         *uuid.UUID        `gorm:"type:uuid" json:"operatorId"`
	Operator           *FacilityOperator `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
	Active             bool              `gorm:"not null" json:"active"`
	GoLiveDate         *time.Time        `json:"goLiveDate"`
	GoDownDate         *time.Time        `json:"goDownDate"`
	Comment            string            `gorm:"size:255" json:"comment"`
	Enabled            bool              `gorm:"not null" json:"enabled"`
	OpenLmisAccessible *bool             `json:"openLmisAccessible"`
}

func (f *Facility) UpdateFrom(o *Facility) {
	f.Code = o.Code
	f.Name = o.Name
	f.Description = o.Description
	f.GeographicZoneID = o.GeographicZoneID
	f.TypeID = o.TypeID
	f.OperatorID = o.OperatorID
	f.Active = o.Active
	f.GoLiveDate = o.GoLiveDate
	f.GoDownDate = o.GoDownDate
	f.Comment = o.Comment
	f.Enabled = o.Enabled
	f.OpenLmisAccessible = o.OpenLmisAccessible
}
