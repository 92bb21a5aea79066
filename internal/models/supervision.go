package models

import "github.com/google/uuid"

type SupervisoryNode struct {
	Base
	Code        string            `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name        string            `gorm:"size:100" json:"name"`
	Description string            `gorm:"size:255" json:"description"`
	FacilityID  *uuid.UUID        `gorm:"type:uuid" json:"facilityId"`
	Facility    *Facility         `gorm:"foreignKey:FacilityID" json:"facility,omitempty"`
	ParentID    *uuid.UUID        `gorm:"type:uuid;index" json:"parentId"`
	Parent      *SupervisoryNode  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children    []SupervisoryNode `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// UpdateFrom copies the node's own fields. Children are owned by the
// parent reference of each child node and are not rewritten here.
func (n *SupervisoryNode) UpdateFrom(o *SupervisoryNode) {
	n.Code = o.Code
	n.Name = o.Name
	n.Description = o.Description
	n.FacilityID = o.FacilityID
	n.ParentID = o.ParentID
}

type RequisitionGroup struct {
	Base
	Code              string           `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name              string           `gorm:"size:100;not null" json:"name"`
	Description       string           `gorm:"size:255" json:"description"`
	SupervisoryNodeID *uuid.UUID       `gorm:"type:uuid" json:"supervisoryNodeId"`
	SupervisoryNode   *SupervisoryNode `gorm:"foreignKey:SupervisoryNodeID" json:"supervisoryNode,omitempty"`
}

func (g *RequisitionGroup) UpdateFrom(o *RequisitionGroup) {
	g.Code = o.Code
	g.Name = o.Name
	g.Description = o.Description
	g.SupervisoryNodeID = o.SupervisoryNodeID
}

type RequisitionGroupProgramSchedule struct {
	Base
	RequisitionGroupID   uuid.UUID           `gorm:"type:uuid;not null" json:"requisitionGroupId"`
	RequisitionGroup     *RequisitionGroup   `gorm:"foreignKey:RequisitionGroupID" json:"requisitionGroup,omitempty"`
	ProgramID            uuid.UUID           `gorm:"type:uuid;not null" json:"programId"`
	Program              *Program            `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	ProcessingScheduleID uuid.UUID           `gorm:"type:uuid;not null" json:"processingScheduleId"`
	ProcessingSchedule   *ProcessingSchedule `gorm:"foreignKey:ProcessingScheduleID" json:"processingSchedule,omitempty"`
	DirectDelivery       bool                `gorm:"not null" json:"directDelivery"`
	DropOffFacilityID    *uuid.UUID          `gorm:"type:uuid" json:"dropOffFacilityId"`
	DropOffFacility      *Facility           `gorm:"foreignKey:DropOffFacilityID" json:"dropOffFacility,omitempty"`
}

func (s *RequisitionGroupProgramSchedule) UpdateFrom(o *RequisitionGroupProgramSchedule) {
	s.RequisitionGroupID = o.RequisitionGroupID
	s.ProgramID = o.ProgramID
	s.ProcessingScheduleID = o.ProcessingScheduleID
	s.DirectDelivery = o.DirectDelivery
	s.DropOffFacilityID = o.DropOffFacilityID
}
