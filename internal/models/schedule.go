package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProcessingSchedule struct {
	Base
	Code         string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Description  string    `gorm:"size:255" json:"description"`
	ModifiedDate time.Time `json:"modifiedDate"`
}

func (s *ProcessingSchedule) BeforeSave(tx *gorm.DB) error {
	s.ModifiedDate = time.Now().UTC()
	return nil
}

func (s *ProcessingSchedule) UpdateFrom(o *ProcessingSchedule) {
	s.Code = o.Code
	s.Name = o.Name
	s.Description = o.Description
}

type ProcessingPeriod struct {
	Base
	ProcessingScheduleID uuid.UUID           `gorm:"type:uuid;not null;index" json:"processingScheduleId"`
	ProcessingSchedule   *ProcessingSchedule `gorm:"foreignKey:ProcessingScheduleID" json:"processingSchedule,omitempty"`
	Name                 string              `gorm:"size:50;not null" json:"name"`
	Description          string              `gorm:"size:255" json:"description"`
	StartDate            time.Time           `gorm:"not null" json:"startDate"`
	EndDate              time.Time           `gorm:"not null" json:"endDate"`
}

func (p *ProcessingPeriod) UpdateFrom(o *ProcessingPeriod) {
	p.ProcessingScheduleID = o.ProcessingScheduleID
	p.Name = o.Name
	p.Description = o.Description
	p.StartDate = o.StartDate
	p.EndDate = o.EndDate
}
