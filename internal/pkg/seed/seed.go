package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CVFox/app/models"
	"github.com/ManuelReschke/CVFox/app/repository"
)

var (
	ErrUserExists        = errors.New("a user with this email already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrOrgNotFound       = errors.New("organization not found")
	ErrInviterNotAllowed = errors.New("inviter is not an admin of the organization")
)

// Seeder creates the accounts, organizations and invitations that have no
// self-service flow in the application.
type Seeder struct {
	users    repository.UserRepository
	orgs     repository.OrganizationRepository
	invs     repository.InvitationRepository
	validate *validator.Validate
	newID    func() string
}

func New(repos *repository.Repositories) *Seeder {
	return &Seeder{
		users:    repos.User,
		orgs:     repos.Organization,
		invs:     repos.Invitation,
		validate: validator.New(),
		newID:    uuid.NewString,
	}
}

// CreateUser adds an active account. admin grants the operator role.
func (s *Seeder) CreateUser(name, email, password string, admin bool) (*models.User, error) {
	if _, err := s.users.GetByEmail(email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	u, err := models.CreateUser(name, email, password)
	if err != nil {
		return nil, err
	}
	if admin {
		u.Role = models.ROLE_ADMIN
	}
	if err := s.users.Create(u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// CreateOrganization creates an organization owned by ownerEmail. The owner
// also gets an admin membership.
func (s *Seeder) CreateOrganization(ownerEmail, name string) (*models.Organization, error) {
	owner, err := s.user(ownerEmail)
	if err != nil {
		return nil, err
	}

	org := &models.Organization{Name: strings.TrimSpace(name), OwnerID: owner.ID}
	if err := s.validate.Struct(org); err != nil {
		return nil, err
	}
	if err := s.orgs.Create(org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	if err := s.orgs.AddMember(&models.Membership{
		OrganizationID: org.ID,
		UserID:         owner.ID,
		Role:           models.MembershipRoleAdmin,
	}); err != nil {
		return nil, fmt.Errorf("add owner membership: %w", err)
	}
	return org, nil
}

// Invite creates a pending invitation for email, issued by inviterEmail who
// must own or administer the organization.
func (s *Seeder) Invite(ctx context.Context, orgID uint, inviterEmail, email string) (*models.Invitation, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup organization: %w", err)
	}

	inviter, err := s.user(inviterEmail)
	if err != nil {
		return nil, err
	}
	if org.OwnerID != inviter.ID {
		m, err := s.orgs.GetMembership(ctx, orgID, inviter.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviterNotAllowed
		}
		if err != nil {
			return nil, fmt.Errorf("lookup membership: %w", err)
		}
		if m.Role != models.MembershipRoleAdmin {
			return nil, ErrInviterNotAllowed
		}
	}

	inv := &models.Invitation{
		PublicID:       s.newID(),
		OrganizationID: org.ID,
		Email:          strings.ToLower(strings.TrimSpace(email)),
		Status:         models.InvitationStatusPending,
		InvitedByID:    inviter.ID,
	}
	if err := s.validate.Struct(inv); err != nil {
		return nil, err
	}
	if err := s.invs.Create(inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

func (s *Seeder) user(email string) (*models.User, error) {
	u, err := s.users.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}
