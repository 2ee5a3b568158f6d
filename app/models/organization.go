package models

import "time"

const (
	MembershipRoleMember = "member"
	MembershipRoleAdmin  = "admin"
)

const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusCanceled = "canceled"
)

// Organization groups accounts that share CV templates and billing seats.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Membership is the role an account holds inside an organization.
type Membership struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index:ux_memberships_org_user,unique,priority:1" json:"organization_id"`
	UserID         uint      `gorm:"not null;index:ux_memberships_org_user,unique,priority:2;index" json:"user_id"`
	Role           string    `gorm:"type:varchar(20);not null;default:'member'" json:"role" validate:"oneof=member admin"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Invitation is a pending offer for an email address to join an organization.
type Invitation struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PublicID       string     `gorm:"type:char(36);not null;uniqueIndex" json:"public_id"`
	OrganizationID uint       `gorm:"not null;index" json:"organization_id"`
	Email          string     `gorm:"type:varchar(200);not null" json:"email" validate:"required,email"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	InvitedByID    uint       `gorm:"not null" json:"invited_by_id"`
	CanceledAt     *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CanceledByID   *uint      `gorm:"default:null" json:"canceled_by_id,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}
