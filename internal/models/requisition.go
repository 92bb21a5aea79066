package models

import (
	"time"

	"github.com/google/uuid"
)

type RequisitionStatus string

const (
	StatusInitiated  RequisitionStatus = "INITIATED"
	StatusSubmitted  RequisitionStatus = "SUBMITTED"
	StatusAuthorized RequisitionStatus = "AUTHORIZED"
	StatusReleased   RequisitionStatus = "RELEASED"
	StatusSkipped    RequisitionStatus = "SKIPPED"
)

type Requisition struct {
	Base
	CreatedDate        time.Time         `gorm:"not null;index" json:"createdDate"`
	FacilityID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"facilityId"`
	Facility           *Facility         `gorm:"foreignKey:FacilityID" json:"facility,omitempty"`
	ProgramID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"programId"`
	Program            *Program          `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	ProcessingPeriodID uuid.UUID         `gorm:"type:uuid;not null;index" json:"processingPeriodId"`
	ProcessingPeriod   *ProcessingPeriod `gorm:"foreignKey:ProcessingPeriodID" json:"processingPeriod,omitempty"`
	Status             RequisitionStatus `gorm:"size:20;not null;index" json:"status"`
	Emergency          bool              `gorm:"not null;default:false" json:"emergency"`
	SupervisoryNodeID  *uuid.UUID        `gorm:"type:uuid;index" json:"supervisoryNodeId"`
	SupervisoryNode    *SupervisoryNode  `gorm:"foreignKey:SupervisoryNodeID" json:"supervisoryNode,omitempty"`
	Lines              []RequisitionLine `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE" json:"requisitionLines"`
	Comments           []Comment         `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

type RequisitionLine struct {
	Base
	RequisitionID                uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	ProductID                    uuid.UUID `gorm:"type:uuid;not null" json:"productId"`
	Product                      *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	BeginningBalance             *int      `json:"beginningBalance"`
	TotalReceivedQuantity        *int      `json:"totalReceivedQuantity"`
	TotalConsumedQuantity        *int      `json:"totalConsumedQuantity"`
	TotalLossesAndAdjustments    *int      `json:"totalLossesAndAdjustments"`
	StockOnHand                  *int      `json:"stockOnHand"`
	RequestedQuantity            *int      `json:"requestedQuantity"`
	RequestedQuantityExplanation string    `gorm:"size:255" json:"requestedQuantityExplanation"`
	Remarks                      string    `gorm:"size:255" json:"remarks"`
}

type Comment struct {
	Base
	RequisitionID uuid.UUID `gorm:"type:uuid;not null;index" json:"requisitionId"`
	AuthorID      uuid.UUID `gorm:"type:uuid;not null" json:"authorId"`
	Author        *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Body          string    `gorm:"type:text;not null" json:"body"`
	CreatedDate   time.Time `gorm:"not null" json:"createdDate"`
}

// StatusChange records one status transition of a requisition.
type StatusChange struct {
	Base
	RequisitionID uuid.UUID         `gorm:"type:uuid;not null;index" json:"requisitionId"`
	Status        RequisitionStatus `gorm:"size:20;not null" json:"status"`
	AuthorID      *uuid.UUID        `gorm:"type:uuid" json:"authorId"`
	CreatedDate   time.Time         `gorm:"not null" json:"createdDate"`
}
