package billing

import (
	"time"

	"github.com/ManuelReschke/CVFox/app/models"
)

// Processor event types the reconciler acts on.
const (
	EventTypeSubscriptionCreated = "customer.subscription.created"
	EventTypeSubscriptionUpdated = "customer.subscription.updated"
	EventTypeSubscriptionDeleted = "customer.subscription.deleted"
	EventTypeCheckoutCompleted   = "checkout.session.completed"
	EventTypeInvoicePaymentFail  = "invoice.payment_failed"
)

// EventKind is the tag of the decoded event variant.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindSubscriptionChanged
	EventKindCheckoutCompleted
	EventKindInvoicePaymentFailed
)

func (k EventKind) String() string {
	switch k {
	case EventKindSubscriptionChanged:
		return "subscription_changed"
	case EventKindCheckoutCompleted:
		return "checkout_completed"
	case EventKindInvoicePaymentFailed:
		return "invoice_payment_failed"
	default:
		return "unknown"
	}
}

// Event is a verified webhook decoded once at the boundary. Exactly one of
// Subscription, Checkout or Invoice is set, matching Kind; unknown events
// carry none.
type Event struct {
	ID       string
	Type     string
	Kind     EventKind
	Sequence int64

	Subscription *SubscriptionPayload
	Checkout     *CheckoutPayload
	Invoice      *InvoicePayload
}

// SubscriptionPayload is the processor's view of a subscription, reduced to
// what the state record needs.
type SubscriptionPayload struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	// AccountID comes from the subscription metadata written at checkout.
	AccountID uint
	Deleted   bool
}

type CheckoutPayload struct {
	ID             string
	Mode           string
	SubscriptionID string
	CustomerID     string
	AccountID      uint
}

type InvoicePayload struct {
	ID             string
	SubscriptionID string
	CustomerID     string
}

// Outcome describes what reconciliation did with an event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeStale     Outcome = "stale"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
)

// WebhookResult is what the webhook endpoint acknowledges.
type WebhookResult struct {
	EventID   string
	EventType string
	Outcome   Outcome
	State     *models.SubscriptionState
}

// CheckoutRequest is the outbound "create checkout session" input.
type CheckoutRequest struct {
	AccountID  uint
	Email      string
	CustomerID string
	PriceID    string
	PlanID     string
	SuccessURL string
	CancelURL  string
}
