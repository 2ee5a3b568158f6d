package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Processor is the outbound surface of the payment processor.
type Processor interface {
	CreateCustomer(ctx context.Context, accountID uint, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// FetchSubscription reads the authoritative subscription object.
	FetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionPayload, error)
}

// StripeProcessor implements Processor with the Stripe API.
type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessor returns nil when no secret key is configured, which the
// service reports as ErrConfigurationMissing.
func NewStripeProcessor(secretKey string) *StripeProcessor {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil
	}
	return &StripeProcessor{api: client.New(secretKey, nil)}
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, accountID uint, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata(metadataAccountKey, strconv.FormatUint(uint64(accountID), 10))

	customer, err := p.api.Customers.New(params)
	if err != nil {
		return "", classifyStripeError("create customer", err)
	}
	return customer.ID, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	accountRef := strconv.FormatUint(uint64(req.AccountID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(accountRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metadataAccountKey: accountRef,
				"plan":             req.PlanID,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataAccountKey, accountRef)

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", classifyStripeError("create checkout session", err)
	}
	if sess.URL == "" {
		return "", errors.New("stripe checkout session without redirect url")
	}
	return sess.URL, nil
}

func (p *StripeProcessor) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", classifyStripeError("create portal session", err)
	}
	return sess.URL, nil
}

func (p *StripeProcessor) FetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionPayload, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		// Any failure here leaves the event unprocessed; redelivery retries it.
		return nil, fmt.Errorf("%w: fetch subscription %s: %v", ErrTransientUpstream, subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

// classifyStripeError marks timeouts, rate limits and 5xx answers as
// transient so callers can tell "try again" from "this will never work".
func classifyStripeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: stripe %s: %v", ErrTransientUpstream, op, err)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: stripe %s: %v", ErrTransientUpstream, op, err)
		}
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}
