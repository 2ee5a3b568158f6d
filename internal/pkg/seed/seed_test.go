package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CVFox/app/models"
	"github.com/ManuelReschke/CVFox/app/repository"
)

type memUsers struct {
	byEmail map[string]*models.User
	nextID  uint
}

func (m *memUsers) Create(u *models.User) error {
	m.nextID++
	u.ID = m.nextID
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUsers) GetByEmail(email string) (*models.User, error) {
	u, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (m *memUsers) UpdateLastLogin(uint, time.Time) error { return nil }

type memOrgs struct {
	orgs    map[uint]*models.Organization
	members map[[2]uint]models.Membership
}

func (m *memOrgs) Create(org *models.Organization) error {
	org.ID = uint(len(m.orgs) + 1)
	m.orgs[org.ID] = org
	return nil
}

func (m *memOrgs) GetByID(_ context.Context, id uint) (*models.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return org, nil
}

func (m *memOrgs) AddMember(ms *models.Membership) error {
	m.members[[2]uint{ms.OrganizationID, ms.UserID}] = *ms
	return nil
}

func (m *memOrgs) GetMembership(_ context.Context, orgID, userID uint) (*models.Membership, error) {
	ms, ok := m.members[[2]uint{orgID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &ms, nil
}

type memInvs struct {
	created []*models.Invitation
}

func (m *memInvs) Create(inv *models.Invitation) error {
	m.created = append(m.created, inv)
	return nil
}

func (m *memInvs) GetByPublicID(context.Context, string) (*models.Invitation, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memInvs) CancelWithAudit(context.Context, *models.Invitation, uint, time.Time, *models.AuditEntry) (bool, error) {
	return false, nil
}

func (m *memInvs) ListAudit(context.Context, uint, int) ([]models.AuditEntry, error) {
	return nil, nil
}

func newTestSeeder() (*Seeder, *memOrgs, *memInvs) {
	orgs := &memOrgs{orgs: map[uint]*models.Organization{}, members: map[[2]uint]models.Membership{}}
	invs := &memInvs{}
	s := New(&repository.Repositories{
		User:         &memUsers{byEmail: map[string]*models.User{}},
		Organization: orgs,
		Invitation:   invs,
	})
	s.newID = func() string { return "inv-fixed" }
	return s, orgs, invs
}

func TestCreateUser(t *testing.T) {
	s, _, _ := newTestSeeder()

	u, err := s.CreateUser("jane doe", " Jane@Example.com ", "secret123", false)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, models.ROLE_USER, u.Role)
	assert.True(t, u.IsActive())
	assert.True(t, u.CheckPassword("secret123"))

	_, err = s.CreateUser("jane again", "jane@example.com", "secret123", false)
	assert.ErrorIs(t, err, ErrUserExists)

	op, err := s.CreateUser("operator", "ops@example.com", "secret123", true)
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_ADMIN, op.Role)

	_, err = s.CreateUser("jo", "not-an-email", "secret123", false)
	assert.Error(t, err)
}

func TestCreateOrganization_OwnerBecomesAdmin(t *testing.T) {
	s, orgs, _ := newTestSeeder()
	owner, err := s.CreateUser("owner", "owner@example.com", "secret123", false)
	require.NoError(t, err)

	org, err := s.CreateOrganization("owner@example.com", " Acme ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, owner.ID, org.OwnerID)
	assert.Equal(t, models.MembershipRoleAdmin, orgs.members[[2]uint{org.ID, owner.ID}].Role)

	_, err = s.CreateOrganization("nobody@example.com", "Ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInvite(t *testing.T) {
	s, orgs, invs := newTestSeeder()
	ctx := context.Background()
	_, err := s.CreateUser("owner", "owner@example.com", "secret123", false)
	require.NoError(t, err)
	member, err := s.CreateUser("member", "member@example.com", "secret123", false)
	require.NoError(t, err)
	org, err := s.CreateOrganization("owner@example.com", "Acme")
	require.NoError(t, err)
	require.NoError(t, orgs.AddMember(&models.Membership{OrganizationID: org.ID, UserID: member.ID, Role: models.MembershipRoleMember}))

	inv, err := s.Invite(ctx, org.ID, "owner@example.com", " New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "inv-fixed", inv.PublicID)
	assert.Equal(t, "new@example.com", inv.Email)
	assert.Equal(t, models.InvitationStatusPending, inv.Status)
	assert.Len(t, invs.created, 1)

	_, err = s.Invite(ctx, org.ID, "member@example.com", "other@example.com")
	assert.ErrorIs(t, err, ErrInviterNotAllowed)

	_, err = s.Invite(ctx, 99, "owner@example.com", "other@example.com")
	assert.ErrorIs(t, err, ErrOrgNotFound)

	_, err = s.Invite(ctx, org.ID, "owner@example.com", "not-an-email")
	assert.Error(t, err)
	assert.Len(t, invs.created, 1)
}
