package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CVFox/app/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByEmail(email string) (*models.User, error)
	UpdateLastLogin(id uint, at time.Time) error
}

// OrganizationRepository defines the interface for organization and membership lookups
type OrganizationRepository interface {
	Create(org *models.Organization) error
	GetByID(ctx context.Context, id uint) (*models.Organization, error)
	AddMember(membership *models.Membership) error
	GetMembership(ctx context.Context, orgID, userID uint) (*models.Membership, error)
}

// InvitationRepository defines the interface for organization invitations
type InvitationRepository interface {
	Create(inv *models.Invitation) error
	GetByPublicID(ctx context.Context, publicID string) (*models.Invitation, error)
	// CancelWithAudit flips a pending invitation to canceled and stores the
	// audit entry in the same transaction. It reports false when the
	// invitation was no longer pending.
	CancelWithAudit(ctx context.Context, inv *models.Invitation, actorID uint, at time.Time, entry *models.AuditEntry) (bool, error)
	ListAudit(ctx context.Context, orgID uint, limit int) ([]models.AuditEntry, error)
}

// WebhookEventRepository exposes the billing delivery log to operators
type WebhookEventRepository interface {
	ListRecent(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error)
	CountByOutcome(ctx context.Context, since time.Time) (map[string]int64, error)
}

// MarkerRepository inspects the idempotency markers kept in Redis
type MarkerRepository interface {
	List(ctx context.Context, limit int) ([]MarkerInfo, error)
	Delete(ctx context.Context, eventID string) (int64, error)
}

// MarkerInfo is one idempotency marker as shown to operators
type MarkerInfo struct {
	EventID string        `json:"event_id"`
	State   string        `json:"state"`
	TTL     time.Duration `json:"ttl"`
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Organization OrganizationRepository
	Invitation   InvitationRepository
	WebhookEvent WebhookEventRepository
	Marker       MarkerRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB, rdb *redis.Client) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Organization: NewOrganizationRepository(db),
		Invitation:   NewInvitationRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Marker:       NewMarkerRepository(rdb),
	}
}
