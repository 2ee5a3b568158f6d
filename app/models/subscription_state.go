package models

import "time"

const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// PlanFree is the sentinel plan every account starts on. It never goes
// through checkout.
const PlanFree = "free"

// SubscriptionState is the canonical, reconciled subscription record of an
// account. Only the billing reconciler writes it, always as a whole row.
//
// LastEventSequence never decreases; LastEventID breaks ties between events
// carrying the same sequence.
type SubscriptionState struct {
	ID                     uint       `gorm:"primaryKey" json:"-"`
	AccountID              uint       `gorm:"not null;uniqueIndex" json:"account_id"`
	Plan                   string     `gorm:"type:varchar(50);not null;default:'free'" json:"plan"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'none';index" json:"status"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);not null;default:'';index" json:"external_subscription_id"`
	ExternalCustomerID     string     `gorm:"type:varchar(191);not null;default:''" json:"external_customer_id"`
	PeriodEnd              *time.Time `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	LastEventSequence      int64      `gorm:"not null;default:0" json:"last_event_sequence"`
	LastEventID            string     `gorm:"type:varchar(191);not null;default:''" json:"last_event_id"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// EmptySubscriptionState is the state of an account no event has touched yet.
func EmptySubscriptionState(accountID uint) *SubscriptionState {
	return &SubscriptionState{
		AccountID: accountID,
		Plan:      PlanFree,
		Status:    SubscriptionStatusNone,
	}
}

// IsNewerThan reports whether an event (sequence, eventID) is more recent
// than what this state has applied.
//
// Sequences are the processor's created timestamps in whole seconds, and a
// created/updated pair often shares one. The event id tie-break makes every
// delivery order end on the same row, but that row is not guaranteed to be
// the later of the two events. The next event for the subscription carries
// the full object again and corrects it.
func (s *SubscriptionState) IsNewerThan(sequence int64, eventID string) bool {
	if sequence != s.LastEventSequence {
		return sequence > s.LastEventSequence
	}
	return eventID > s.LastEventID
}
