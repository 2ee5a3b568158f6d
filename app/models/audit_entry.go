package models

import "time"

const (
	AuditActionInvitationCanceled = "invitation.canceled"
)

// AuditEntry records who changed what inside an organization.
type AuditEntry struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	ActorID        uint      `gorm:"not null;index" json:"actor_id"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	Action         string    `gorm:"type:varchar(64);not null" json:"action"`
	TargetType     string    `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetID       string    `gorm:"type:varchar(64);not null" json:"target_id"`
	Detail         string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
