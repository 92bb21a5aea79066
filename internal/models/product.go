package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Program struct {
	Base
	Code                 string `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name                 string `gorm:"size:100" json:"name"`
	Description          string `gorm:"size:255" json:"description"`
	Active               *bool  `json:"active"`
	PeriodsSkippable     bool   `gorm:"not null;default:false" json:"periodsSkippable"`
	ShowNonFullSupplyTab *bool  `json:"showNonFullSupplyTab"`
}

func (p *Program) UpdateFrom(o *Program) {
	p.Code = o.Code
	p.Name = o.Name
	p.Description = o.Description
	p.Active = o.Active
	p.PeriodsSkippable = o.PeriodsSkippable
	p.ShowNonFullSupplyTab = o.ShowNonFullSupplyTab
}

type ProductCategory struct {
	Base
	Code         string `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name         string `gorm:"size:100;not null" json:"name"`
	DisplayOrder int    `json:"displayOrder"`
}

func (pc *ProductCategory) UpdateFrom(o *ProductCategory) {
	pc.Code = o.Code
	pc.Name = o.Name
	pc.DisplayOrder = o.DisplayOrder
}

type Product struct {
	Base
	Code                  string `gorm:"size:50;not null;uniqueIndex" json:"productCode"`
	PrimaryName           string `gorm:"size:150;not null" json:"primaryName"`
	DispensingUnit        string `gorm:"size:20" json:"dispensingUnit"`
	PackSize              int    `gorm:"not null" json:"packSize"`
	PackRoundingThreshold int    `gorm:"not null" json:"packRoundingThreshold"`
	RoundToZero           bool   `gorm:"not null" json:"roundToZero"`
	Active                bool   `gorm:"not null" json:"active"`
	FullSupply            bool   `gorm:"not null" json:"fullSupply"`
	Tracer                bool   `gorm:"not null" json:"tracer"`
}

func (p *Product) UpdateFrom(o *Product) {
	p.Code = o.Code
	p.PrimaryName = o.PrimaryName
	p.DispensingUnit = o.DispensingUnit
	p.PackSize = o.PackSize
	p.PackRoundingThreshold = o.PackRoundingThreshold
	p.RoundToZero = o.RoundToZero
	p.Active = o.Active
	p.FullSupply = o.FullSupply
	p.Tracer = o.Tracer
}

type ProgramProduct struct {
	Base
	ProgramID         uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_program_product" json:"programId"`
	Program           *Program         `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	ProductID         uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_program_product" json:"productId"`
	Product           *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ProductCategoryID *uuid.UUID       `gorm:"type:uuid" json:"productCategoryId"`
	ProductCategory   *ProductCategory `gorm:"foreignKey:ProductCategoryID" json:"productCategory,omitempty"`
	DosesPerMonth     *int             `json:"dosesPerMonth"`
	Active            bool             `gorm:"not null" json:"active"`
	FullSupply        bool             `gorm:"not null" json:"fullSupply"`
	DisplayOrder      int              `json:"displayOrder"`
	MaxMonthsOfStock  *int             `json:"maxMonthsOfStock"`
}

func (pp *ProgramProduct) UpdateFrom(o *ProgramProduct) {
	pp.ProgramID = o.ProgramID
	pp.ProductID = o.ProductID
	pp.ProductCategoryID = o.ProductCategoryID
	pp.DosesPerMonth = o.DosesPerMonth
	pp.Active = o.Active
	pp.FullSupply = o.FullSupply
	pp.DisplayOrder = o.DisplayOrder
	pp.MaxMonthsOfStock = o.MaxMonthsOfStock
}

// FacilityTypeApprovedProduct lists a program product as orderable by a
// facility type, with its stock level bounds in months of stock.
type FacilityTypeApprovedProduct struct {
	Base
	FacilityTypeID      uuid.UUID           `gorm:"type:uuid;not null" json:"facilityTypeId"`
	FacilityType        *FacilityType       `gorm:"foreignKey:FacilityTypeID" json:"facilityType,omitempty"`
	ProgramProductID    uuid.UUID           `gorm:"type:uuid;not null" json:"programProductId"`
	ProgramProduct      *ProgramProduct     `gorm:"foreignKey:ProgramProductID" json:"programProduct,omitempty"`
	MaxMonthsOfStock    decimal.Decimal     `gorm:"type:numeric(10,4);not null" json:"maxMonthsOfStock"`
	MinMonthsOfStock    decimal.NullDecimal `gorm:"type:numeric(10,4)" json:"minMonthsOfStock"`
	EmergencyOrderPoint decimal.NullDecimal `gorm:"type:numeric(10,4)" json:"emergencyOrderPoint"`
}

func (a *FacilityTypeApprovedProduct) UpdateFrom(o *FacilityTypeApprovedProduct) {
	a.FacilityTypeID = o.FacilityTypeID
	a.ProgramProductID = o.ProgramProductID
	a.MaxMonthsOfStock = o.MaxMonthsOfStock
	a.MinMonthsOfStock = o.MinMonthsOfStock
	a.EmergencyOrderPoint = o.EmergencyOrderPoint
}
