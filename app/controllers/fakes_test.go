package controllers

import (
	"context"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CVFox/app/models"
	"github.com/ManuelReschke/CVFox/internal/pkg/billing"
)

type fakeUsers struct {
	byEmail map[string]*models.User
	logins  int
}

func (f *fakeUsers) Create(u *models.User) error { f.byEmail[u.Email] = u; return nil }

func (f *fakeUsers) GetByEmail(email string) (*models.User, error) {
	u, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateLastLogin(uint, time.Time) error { f.logins++; return nil }

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
}

func (f *fakeInvs) Create(inv *models.Invitation) error { f.invs[inv.PublicID] = inv; return nil }

func (f *fakeInvs) GetByPublicID(_ context.Context, id string) (*models.Invitation, error) {
	inv, ok := f.invs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *inv
	return &out, nil
}

func (f *fakeInvs) CancelWithAudit(_ context.Context, inv *models.Invitation, actorID uint, at time.Time, entry *models.AuditEntry) (bool, error) {
	stored := f.invs[inv.PublicID]
	if stored == nil || stored.Status != models.InvitationStatusPending {
		return false, nil
	}
	stored.Status = models.InvitationStatusCanceled
	stored.CanceledAt = &at
	stored.CanceledByID = &actorID
	*inv = *stored
	f.audits = append(f.audits, *entry)
	return true, nil
}

func (f *fakeInvs) ListAudit(_ context.Context, orgID uint, _ int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	for _, e := range f.audits {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeBillingRepo struct {
	mu         sync.Mutex
	states     map[uint]models.SubscriptionState
	deliveries map[string]models.BillingWebhookEvent
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		states:     make(map[uint]models.SubscriptionState),
		deliveries: make(map[string]models.BillingWebhookEvent),
	}
}

func (r *fakeBillingRepo) ReadSubscriptionState(_ context.Context, accountID uint) (*models.SubscriptionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[accountID]
	if !ok {
		return models.EmptySubscriptionState(accountID), nil
	}
	return &st, nil
}

func (r *fakeBillingRepo) WriteSubscriptionState(_ context.Context, next *models.SubscriptionState, expected billing.StateVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[next.AccountID]
	if ok != expected.Exists || (ok && (cur.LastEventSequence != expected.Sequence || cur.LastEventID != expected.EventID)) {
		return billing.ErrConflict
	}
	r.states[next.AccountID] = *next
	return nil
}

func (r *fakeBillingRepo) GetBillingAccountByUserID(context.Context, string, uint) (*models.BillingAccount, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBillingRepo) GetBillingAccountByCustomerID(context.Context, string, string) (*models.BillingAccount, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBillingRepo) UpsertBillingAccount(context.Context, *models.BillingAccount) error {
	return nil
}

func (r *fakeBillingRepo) RecordWebhookEvent(_ context.Context, ev *models.BillingWebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries[ev.ProviderEventID] = *ev
	return nil
}
