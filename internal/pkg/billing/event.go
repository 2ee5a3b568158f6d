package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
)

// metadataAccountKey is written into checkout and subscription metadata so
// webhook events can be routed back to the local account.
const metadataAccountKey = "account_id"

// ParseEvent decodes a verified webhook body into the Event variant. Only
// call it after VerifySignature succeeded.
func ParseEvent(payload []byte) (*Event, error) {
	var raw stripe.Event
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrInvalidPayload)
	}

	ev := &Event{
		ID:       raw.ID,
		Type:     string(raw.Type),
		Sequence: raw.Created,
	}
	var object json.RawMessage
	if raw.Data != nil {
		object = raw.Data.Raw
	}

	switch ev.Type {
	case EventTypeSubscriptionCreated, EventTypeSubscriptionUpdated, EventTypeSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(object, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription object: %v", ErrInvalidPayload, err)
		}
		sp := subscriptionFromStripe(&sub)
		if sp.ID == "" {
			return nil, fmt.Errorf("%w: subscription object without id", ErrInvalidPayload)
		}
		sp.Deleted = ev.Type == EventTypeSubscriptionDeleted
		ev.Kind = EventKindSubscriptionChanged
		ev.Subscription = sp

	case EventTypeCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(object, &cs); err != nil {
			return nil, fmt.Errorf("%w: checkout object: %v", ErrInvalidPayload, err)
		}
		ev.Kind = EventKindCheckoutCompleted
		ev.Checkout = checkoutFromStripe(&cs)

	case EventTypeInvoicePaymentFail:
		var inv stripe.Invoice
		if err := json.Unmarshal(object, &inv); err != nil {
			return nil, fmt.Errorf("%w: invoice object: %v", ErrInvalidPayload, err)
		}
		ev.Kind = EventKindInvoicePaymentFailed
		ev.Invoice = invoiceFromStripe(&inv)

	default:
		ev.Kind = EventKindUnknown
	}
	return ev, nil
}

func subscriptionFromStripe(sub *stripe.Subscription) *SubscriptionPayload {
	p := &SubscriptionPayload{
		ID:                strings.TrimSpace(sub.ID),
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		AccountID:         parseAccountID(sub.Metadata[metadataAccountKey]),
	}
	if sub.Customer != nil {
		p.CustomerID = strings.TrimSpace(sub.Customer.ID)
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil && item.Price.ID != "" {
				p.PriceID = item.Price.ID
				break
			}
		}
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		p.PeriodEnd = &end
	}
	return p
}

func checkoutFromStripe(cs *stripe.CheckoutSession) *CheckoutPayload {
	p := &CheckoutPayload{
		ID:   strings.TrimSpace(cs.ID),
		Mode: string(cs.Mode),
	}
	if cs.Subscription != nil {
		p.SubscriptionID = strings.TrimSpace(cs.Subscription.ID)
	}
	if cs.Customer != nil {
		p.CustomerID = strings.TrimSpace(cs.Customer.ID)
	}
	p.AccountID = parseAccountID(cs.ClientReferenceID)
	if p.AccountID == 0 {
		p.AccountID = parseAccountID(cs.Metadata[metadataAccountKey])
	}
	return p
}

func invoiceFromStripe(inv *stripe.Invoice) *InvoicePayload {
	p := &InvoicePayload{ID: strings.TrimSpace(inv.ID)}
	if inv.Subscription != nil {
		p.SubscriptionID = strings.TrimSpace(inv.Subscription.ID)
	}
	if inv.Customer != nil {
		p.CustomerID = strings.TrimSpace(inv.Customer.ID)
	}
	return p
}

func parseAccountID(raw string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
