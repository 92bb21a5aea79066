package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RightType string

const (
	RightTypeAdmin       RightType = "ADMIN"
	RightTypeRequisition RightType = "REQUISITION"
	RightTypeFulfillment RightType = "FULFILLMENT"
)

// Well-known right names checked by the HTTP layer.
const (
	RightAdministration       = "ADMINISTRATION"
	RightCreateRequisition    = "REQUISITION_CREATE"
	RightApproveRequisition   = "REQUISITION_APPROVE"
	RightAuthorizeRequisition = "REQUISITION_AUTHORIZE"
	RightDeleteRequisition    = "REQUISITION_DELETE"
	RightConvertToOrder       = "ORDERS_EDIT"
)

type Right struct {
	Base
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	RightType   RightType `gorm:"size:20;not null" json:"rightType"`
	Description string    `gorm:"size:255" json:"description"`
}

func (r *Right) UpdateFrom(o *Right) {
	r.Name = o.Name
	r.RightType = o.RightType
	r.Description = o.Description
}

type Role struct {
	Base
	Name        string  `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string  `gorm:"size:255" json:"description"`
	Rights      []Right `gorm:"many2many:role_rights" json:"rights"`
}

func (r *Role) UpdateFrom(o *Role) {
	r.Name = o.Name
	r.Description = o.Description
	r.Rights = o.Rights
}

// SaveAssociations replaces the role's rights with the ones on r.
func (r *Role) SaveAssociations(tx *gorm.DB) error {
	return tx.Model(r).Association("Rights").Replace(refsOf(r.Rights))
}

// BeforeDelete unlinks the role's rights. Assignments to users still
// block the delete.
func (r *Role) BeforeDelete(tx *gorm.DB) error {
	return tx.Model(r).Association("Rights").Clear()
}

type User struct {
	Base
	Username         string           `gorm:"size:50;not null;uniqueIndex" json:"username"`
	FirstName        string           `gorm:"size:100" json:"firstName"`
	LastName         string           `gorm:"size:100" json:"lastName"`
	Email            *string          `gorm:"size:100;uniqueIndex" json:"email"`
	Timezone         string           `gorm:"size:50" json:"timezone"`
	HomeFacilityID   *uuid.UUID       `gorm:"type:uuid" json:"homeFacilityId"`
	HomeFacility     *Facility        `gorm:"foreignKey:HomeFacilityID" json:"homeFacility,omitempty"`
	SupervisedNodeID *uuid.UUID       `gorm:"type:uuid" json:"supervisedNodeId"`
	SupervisedNode   *SupervisoryNode `gorm:"foreignKey:SupervisedNodeID" json:"supervisedNode,omitempty"`
	Verified         bool             `gorm:"not null;default:false" json:"verified"`
	Active           bool             `gorm:"not null" json:"active"`
	LoginRestricted  bool             `gorm:"not null;default:false" json:"loginRestricted"`
	PasswordHash     string           `gorm:"size:255" json:"-"`
	Roles            []Role           `gorm:"many2many:user_roles" json:"roles"`
}

// UpdateFrom copies profile fields. Verification state and the password
// hash only change through the password operations.
func (u *User) UpdateFrom(o *User) {
	u.Username = o.Username
	u.FirstName = o.FirstName
	u.LastName = o.LastName
	u.Email = o.Email
	u.Timezone = o.Timezone
	u.HomeFacilityID = o.HomeFacilityID
	u.SupervisedNodeID = o.SupervisedNodeID
	u.Active = o.Active
	u.LoginRestricted = o.LoginRestricted
	u.Roles = o.Roles
}

func (u *User) SaveAssociations(tx *gorm.DB) error {
	return tx.Model(u).Association("Roles").Replace(refsOf(u.Roles))
}

func (u *User) BeforeDelete(tx *gorm.DB) error {
	return tx.Model(u).Association("Roles").Clear()
}

// HasRight reports whether any of the user's loaded roles grants name.
func (u *User) HasRight(name string) bool {
	for _, role := range u.Roles {
		for _, right := range role.Rights {
			if right.Name == name {
				return true
			}
		}
	}
	return false
}

// refsOf strips everything but the ids so that association replacement
// links existing rows instead of upserting payload copies.
func refsOf[T any, P interface {
	*T
	GetID() uuid.UUID
	SetID(uuid.UUID)
}](items []T) []T {
	refs := make([]T, len(items))
	for i := range items {
		P(&refs[i]).SetID(P(&items[i]).GetID())
	}
	return refs
}
