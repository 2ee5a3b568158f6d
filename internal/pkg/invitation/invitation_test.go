package invitation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CVFox/app/models"
)

type fakeOrgs struct {
	orgs    map[uint]models.Organization
	members map[[2]uint]models.Membership
}

func (f *fakeOrgs) Create(org *models.Organization) error { f.orgs[org.ID] = *org; return nil }

func (f *fakeOrgs) GetByID(_ context.Context, id uint) (*models.Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (f *fakeOrgs) AddMember(m *models.Membership) error {
	f.members[[2]uint{m.OrganizationID, m.UserID}] = *m
	return nil
}

func (f *fakeOrgs) GetMembership(_ context.Context, orgID, userID uint) (*models.Membership, error) {
	m, ok := f.members[[2]uint{orgID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

type fakeInvs struct {
	invs   map[string]*models.Invitation
	audits []models.AuditEntry
	err    error
}

func (f *fakeInvs) Create(inv *models.Invitation) error { f.invs[inv.PublicID] = inv; return nil }

func (f *fakeInvs) GetByPublicID(_ context.Context, publicID string) (*models.Invitation, error) {
	inv, ok := f.invs[publicID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *inv
	return &out, nil
}

func (f *fakeInvs) CancelWithAudit(_ context.Context, inv *models.Invitation, actorID uint, at time.Time, entry *models.AuditEntry) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	stored := f.invs[inv.PublicID]
	if stored.Status != models.InvitationStatusPending {
		return false, nil
	}
	stored.Status = models.InvitationStatusCanceled
	stored.CanceledAt = &at
	stored.CanceledByID = &actorID
	inv.Status = stored.Status
	f.audits = append(f.audits, *entry)
	return true, nil
}

func (f *fakeInvs) ListAudit(_ context.Context, orgID uint, _ int) ([]models.AuditEntry, error) {
	return f.audits, nil
}

const (
	orgA     = uint(1)
	orgB     = uint(2)
	ownerID  = uint(10)
	adminID  = uint(11)
	memberID = uint(12)
)

func newTestService(t *testing.T) (*Service, *fakeInvs) {
	t.Helper()
	orgs := &fakeOrgs{orgs: map[uint]models.Organization{}, members: map[[2]uint]models.Membership{}}
	invs := &fakeInvs{invs: map[string]*models.Invitation{}}

	require.NoError(t, orgs.Create(&models.Organization{ID: orgA, Name: "Acme", OwnerID: ownerID}))
	require.NoError(t, orgs.Create(&models.Organization{ID: orgB, Name: "Other", OwnerID: 99}))
	require.NoError(t, orgs.AddMember(&models.Membership{OrganizationID: orgA, UserID: adminID, Role: models.MembershipRoleAdmin}))
	require.NoError(t, orgs.AddMember(&models.Membership{OrganizationID: orgA, UserID: memberID, Role: models.MembershipRoleMember}))

	require.NoError(t, invs.Create(&models.Invitation{ID: 1, PublicID: "inv-a", OrganizationID: orgA, Email: "new@example.com", Status: models.InvitationStatusPending}))
	require.NoError(t, invs.Create(&models.Invitation{ID: 2, PublicID: "inv-b", OrganizationID: orgB, Email: "x@example.com", Status: models.InvitationStatusPending}))
	require.NoError(t, invs.Create(&models.Invitation{ID: 3, PublicID: "inv-accepted", OrganizationID: orgA, Email: "y@example.com", Status: models.InvitationStatusAccepted}))

	svc := NewService(orgs, invs, AdminAllowList{"ops@cvfox.test": {}})
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, invs
}

func TestCancel_ByOrgAdmin(t *testing.T) {
	svc, invs := newTestService(t)

	inv, err := svc.Cancel(context.Background(), Actor{UserID: adminID}, orgA, "inv-a")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusCanceled, inv.Status)
	assert.Equal(t, models.InvitationStatusCanceled, invs.invs["inv-a"].Status)

	require.Len(t, invs.audits, 1)
	audit := invs.audits[0]
	assert.Equal(t, models.AuditActionInvitationCanceled, audit.Action)
	assert.Equal(t, adminID, audit.ActorID)
	assert.Equal(t, orgA, audit.OrganizationID)
	assert.Equal(t, "inv-a", audit.TargetID)
	assert.Len(t, audit.ID, 36)
}

func TestCancel_ByOwnerAndAllowList(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Cancel(context.Background(), Actor{UserID: ownerID}, orgA, "inv-a")
	require.NoError(t, err)

	svc, _ = newTestService(t)
	_, err = svc.Cancel(context.Background(), Actor{UserID: 500, Email: " OPS@cvfox.test "}, orgA, "inv-a")
	require.NoError(t, err)
}

func TestCancel_Failures(t *testing.T) {
	cases := []struct {
		name  string
		actor Actor
		org   uint
		id    string
		want  error
	}{
		{"anonymous", Actor{}, orgA, "inv-a", ErrAuthenticationRequired},
		{"plain member", Actor{UserID: memberID}, orgA, "inv-a", ErrForbidden},
		{"outsider", Actor{UserID: 77, Email: "someone@example.com"}, orgA, "inv-a", ErrForbidden},
		{"unknown org", Actor{UserID: adminID}, 404, "inv-a", ErrForbidden},
		{"not found", Actor{UserID: adminID}, orgA, "inv-missing", ErrInvitationNotFound},
		{"wrong org", Actor{UserID: adminID}, orgA, "inv-b", ErrInvitationWrongOrg},
		{"accepted", Actor{UserID: adminID}, orgA, "inv-accepted", ErrInvitationNotPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, invs := newTestService(t)
			_, err := svc.Cancel(context.Background(), tc.actor, tc.org, tc.id)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, invs.audits)
			assert.Equal(t, models.InvitationStatusPending, invs.invs["inv-a"].Status)
			assert.Equal(t, models.InvitationStatusPending, invs.invs["inv-b"].Status)
		})
	}
}

func TestCancel_Twice(t *testing.T) {
	svc, invs := newTestService(t)
	_, err := svc.Cancel(context.Background(), Actor{UserID: adminID}, orgA, "inv-a")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), Actor{UserID: adminID}, orgA, "inv-a")
	assert.ErrorIs(t, err, ErrInvitationAlreadyCanceled)
	assert.Len(t, invs.audits, 1)
}

func TestCancel_StoreError(t *testing.T) {
	svc, invs := newTestService(t)
	invs.err = errors.New("deadlock")

	_, err := svc.Cancel(context.Background(), Actor{UserID: adminID}, orgA, "inv-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
}
