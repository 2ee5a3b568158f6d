// Package invitation cancels organization invitations. Every step follows
// the order state-changing actions use in this application: the anti-forgery
// check has already run in middleware, then authorization, then ownership,
// then the mutation together with its audit entry.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CVFox/app/models"
	"github.com/ManuelReschke/CVFox/app/repository"
)

var (
	ErrAuthenticationRequired    = errors.New("authentication required")
	ErrForbidden                 = errors.New("not allowed to manage this organization")
	ErrInvitationNotFound        = errors.New("invitation not found")
	ErrInvitationWrongOrg        = errors.New("invitation belongs to another organization")
	ErrInvitationAlreadyCanceled = errors.New("invitation already canceled")
	ErrInvitationNotPending      = errors.New("invitation is no longer pending")
)

// Actor is the authenticated account performing the action.
type Actor struct {
	UserID uint
	Email  string
}

// AdminAllowList grants administrative capability over every organization.
type AdminAllowList map[string]struct{}

func (a AdminAllowList) Contains(email string) bool {
	if len(a) == 0 {
		return false
	}
	_, ok := a[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

type Service struct {
	orgs   repository.OrganizationRepository
	invs   repository.InvitationRepository
	admins AdminAllowList
	now    func() time.Time
}

func NewService(orgs repository.OrganizationRepository, invs repository.InvitationRepository, admins AdminAllowList) *Service {
	return &Service{orgs: orgs, invs: invs, admins: admins, now: time.Now}
}

// Cancel marks a pending invitation of orgID as canceled and records an
// audit entry. Nothing is written when any check fails.
func (s *Service) Cancel(ctx context.Context, actor Actor, orgID uint, invitationID string) (*models.Invitation, error) {
	if actor.UserID == 0 {
		return nil, ErrAuthenticationRequired
	}
	if err := s.authorize(ctx, actor, orgID); err != nil {
		return nil, err
	}

	inv, err := s.invs.GetByPublicID(ctx, strings.TrimSpace(invitationID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invitation: %w", err)
	}
	if inv.OrganizationID != orgID {
		return nil, ErrInvitationWrongOrg
	}
	switch inv.Status {
	case models.InvitationStatusPending:
	case models.InvitationStatusCanceled:
		return nil, ErrInvitationAlreadyCanceled
	default:
		return nil, ErrInvitationNotPending
	}

	entry := &models.AuditEntry{
		ID:             uuid.NewString(),
		ActorID:        actor.UserID,
		OrganizationID: orgID,
		Action:         models.AuditActionInvitationCanceled,
		TargetType:     "invitation",
		TargetID:       inv.PublicID,
		Detail:         inv.Email,
	}
	changed, err := s.invs.CancelWithAudit(ctx, inv, actor.UserID, s.now().UTC(), entry)
	if err != nil {
		return nil, fmt.Errorf("cancel invitation: %w", err)
	}
	if !changed {
		// Lost against a concurrent cancel or accept.
		return nil, ErrInvitationAlreadyCanceled
	}

	log.Printf("[Invitation] User %d canceled invitation %s of organization %d", actor.UserID, inv.PublicID, orgID)
	return inv, nil
}

func (s *Service) authorize(ctx context.Context, actor Actor, orgID uint) error {
	org, err := s.orgs.GetByID(ctx, orgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("load organization: %w", err)
	}
	if s.admins.Contains(actor.Email) || org.OwnerID == actor.UserID {
		return nil
	}

	m, err := s.orgs.GetMembership(ctx, orgID, actor.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("load membership: %w", err)
	}
	if m.Role != models.MembershipRoleAdmin {
		return ErrForbidden
	}
	return nil
}
