package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ManuelReschke/CVFox/app/models"
	"gorm.io/gorm"
)

const (
	// maxWriteAttempts bounds the read/compare/write loop when concurrent
	// deliveries for the same account keep winning the conditional write.
	maxWriteAttempts = 3

	defaultProcessorTimeout = 10 * time.Second
	defaultMarkerTTL        = 72 * time.Hour
	defaultProcessingLease  = time.Minute
)

// Options carries the configuration the service needs at runtime.
type Options struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
	ProcessorTimeout time.Duration
	MarkerTTL        time.Duration
	ProcessingLease  time.Duration
	SuccessURL       string
	CancelURL        string
	PortalReturnURL  string
}

// OutcomeRecorder receives one call per handled webhook delivery.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome string)
}

// AccountRef is the caller of an outbound billing action.
type AccountRef struct {
	AccountID uint
	Email     string
}

// Service verifies, deduplicates and reconciles processor events and creates
// checkout and portal sessions.
type Service struct {
	repo      Repository
	markers   MarkerStore
	processor Processor
	catalog   *PlanCatalog
	opts      Options
	recorder  OutcomeRecorder
	now       func() time.Time
}

// NewService wires the billing service. processor may be nil when no
// processor credentials are configured; outbound calls then fail with
// ErrConfigurationMissing.
func NewService(repo Repository, markers MarkerStore, processor Processor, catalog *PlanCatalog, opts Options) *Service {
	if opts.WebhookTolerance <= 0 {
		opts.WebhookTolerance = DefaultSignatureTolerance
	}
	if opts.ProcessorTimeout <= 0 {
		opts.ProcessorTimeout = defaultProcessorTimeout
	}
	if opts.MarkerTTL <= 0 {
		opts.MarkerTTL = defaultMarkerTTL
	}
	if opts.ProcessingLease <= 0 {
		opts.ProcessingLease = defaultProcessingLease
	}
	return &Service{
		repo:      repo,
		markers:   markers,
		processor: processor,
		catalog:   catalog,
		opts:      opts,
		now:       time.Now,
	}
}

// SetOutcomeRecorder attaches a recorder for webhook outcome metrics.
func (s *Service) SetOutcomeRecorder(r OutcomeRecorder) {
	s.recorder = r
}

// Catalog returns the purchasable plans.
func (s *Service) Catalog() *PlanCatalog {
	return s.catalog
}

// HandleWebhook runs one inbound delivery through signature verification,
// decoding, dedupe and reconciliation. Nothing in the body is inspected
// before the signature checks out.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	if strings.TrimSpace(s.opts.WebhookSecret) == "" {
		return nil, ErrConfigurationMissing
	}
	if err := VerifySignature(payload, signatureHeader, s.opts.WebhookSecret, s.now(), s.opts.WebhookTolerance); err != nil {
		s.observe(ctx, "signature_invalid")
		return nil, err
	}

	ev, err := ParseEvent(payload)
	if err != nil {
		s.observe(ctx, "payload_invalid")
		return nil, err
	}

	claim, leaseToken, err := s.markers.Claim(ctx, ev.ID, s.opts.ProcessingLease)
	if err != nil {
		return nil, fmt.Errorf("%w: claim marker for %s: %v", ErrTransientUpstream, ev.ID, err)
	}
	switch claim {
	case ClaimDone:
		log.Printf("[Billing] Event %s (%s) already processed, acknowledging", ev.ID, ev.Type)
		s.observe(ctx, string(OutcomeDuplicate))
		return &WebhookResult{EventID: ev.ID, EventType: ev.Type, Outcome: OutcomeDuplicate}, nil
	case ClaimInProgress:
		return nil, ErrEventInProgress
	}

	state, outcome, err := s.Reconcile(ctx, ev)
	if err != nil {
		if relErr := s.markers.Release(ctx, ev.ID, leaseToken); relErr != nil {
			log.Printf("[Billing] Failed to release marker for event %s: %v", ev.ID, relErr)
		}
		log.Printf("[Billing] Event %s (%s) not processed: %v", ev.ID, ev.Type, err)
		s.recordDelivery(ctx, ev, payload, 0, "error", err)
		s.observe(ctx, "error")
		return nil, err
	}

	if err := s.markers.Complete(ctx, ev.ID, s.opts.MarkerTTL); err != nil {
		// State is already consistent; a redelivery would be dropped as stale.
		log.Printf("[Billing] Failed to mark event %s processed: %v", ev.ID, err)
	}

	var accountID uint
	if state != nil {
		accountID = state.AccountID
	}
	s.recordDelivery(ctx, ev, payload, accountID, string(outcome), nil)
	s.observe(ctx, string(outcome))

	return &WebhookResult{
		EventID:   ev.ID,
		EventType: ev.Type,
		Outcome:   outcome,
		State:     state,
	}, nil
}

// Reconcile folds a decoded event into the account's subscription state.
func (s *Service) Reconcile(ctx context.Context, ev *Event) (*models.SubscriptionState, Outcome, error) {
	switch ev.Kind {
	case EventKindSubscriptionChanged:
		return s.applySubscription(ctx, ev, ev.Subscription, 0)

	case EventKindCheckoutCompleted:
		co := ev.Checkout
		if co == nil || co.Mode != "subscription" || co.SubscriptionID == "" {
			return nil, OutcomeIgnored, nil
		}
		if err := s.linkCustomer(ctx, co.AccountID, co.CustomerID); err != nil {
			return nil, "", err
		}
		sub, err := s.fetchSubscription(ctx, co.SubscriptionID)
		if err != nil {
			return nil, "", err
		}
		return s.applySubscription(ctx, ev, sub, co.AccountID)

	case EventKindInvoicePaymentFailed:
		inv := ev.Invoice
		if inv == nil || inv.SubscriptionID == "" {
			return nil, OutcomeIgnored, nil
		}
		sub, err := s.fetchSubscription(ctx, inv.SubscriptionID)
		if err != nil {
			return nil, "", err
		}
		return s.applySubscription(ctx, ev, sub, 0)

	default:
		log.Printf("[Billing] Ignoring unhandled event type %q (%s)", ev.Type, ev.ID)
		return nil, OutcomeIgnored, nil
	}
}

func (s *Service) applySubscription(ctx context.Context, ev *Event, sub *SubscriptionPayload, hintAccountID uint) (*models.SubscriptionState, Outcome, error) {
	if sub == nil {
		return nil, OutcomeIgnored, nil
	}
	accountID, err := s.resolveAccount(ctx, sub, hintAccountID)
	if err != nil {
		return nil, "", err
	}
	if accountID == 0 {
		log.Printf("[Billing] Event %s: no local account for subscription %s (customer %s)", ev.ID, sub.ID, sub.CustomerID)
		return nil, OutcomeIgnored, nil
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := s.repo.ReadSubscriptionState(ctx, accountID)
		if err != nil {
			return nil, "", fmt.Errorf("read subscription state: %w", err)
		}
		if !current.IsNewerThan(ev.Sequence, ev.ID) {
			log.Printf("[Billing] Event %s (seq %d) is stale for account %d (at seq %d, %s)",
				ev.ID, ev.Sequence, accountID, current.LastEventSequence, current.LastEventID)
			return current, OutcomeStale, nil
		}

		next := s.nextState(current, ev, sub)
		if shadowedByLive(current, next) {
			log.Printf("[Billing] Event %s: subscription %s (%s) does not replace live subscription %s of account %d",
				ev.ID, sub.ID, next.Status, current.ExternalSubscriptionID, accountID)
			return current, OutcomeIgnored, nil
		}
		err = s.repo.WriteSubscriptionState(ctx, next, VersionOf(current))
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("write subscription state: %w", err)
		}
		log.Printf("[Billing] Account %d: %s/%s -> %s/%s (event %s, seq %d)",
			accountID, current.Plan, current.Status, next.Plan, next.Status, ev.ID, ev.Sequence)
		return next, OutcomeApplied, nil
	}
	return nil, "", fmt.Errorf("%w: account %d after %d attempts", ErrConflict, accountID, maxWriteAttempts)
}

// shadowedByLive is true when next would swap a live subscription for a
// different one that does not grant a plan, e.g. the cancellation of a
// subscription the account has already moved away from.
func shadowedByLive(current, next *models.SubscriptionState) bool {
	if current.ExternalSubscriptionID == "" || current.ExternalSubscriptionID == next.ExternalSubscriptionID {
		return false
	}
	if !IsEntitlingStatus(current.Status) {
		return false
	}
	switch next.Status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return false
	}
	return true
}

// nextState builds the complete replacement row for current.
func (s *Service) nextState(current *models.SubscriptionState, ev *Event, sub *SubscriptionPayload) *models.SubscriptionState {
	status := normalizeStatus(sub.Status)
	if sub.Deleted {
		status = models.SubscriptionStatusCanceled
	}

	plan, ok := s.catalog.PlanForPrice(sub.PriceID)
	if !ok && sub.PriceID != "" {
		log.Printf("[Billing] Price %s of subscription %s is not in the plan catalog, using %s", sub.PriceID, sub.ID, plan)
	}

	customerID := sub.CustomerID
	if customerID == "" {
		customerID = current.ExternalCustomerID
	}

	return &models.SubscriptionState{
		ID:                     current.ID,
		AccountID:              current.AccountID,
		Plan:                   plan,
		Status:                 status,
		ExternalSubscriptionID: sub.ID,
		ExternalCustomerID:     customerID,
		PeriodEnd:              sub.PeriodEnd,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		LastEventSequence:      ev.Sequence,
		LastEventID:            ev.ID,
		CreatedAt:              current.CreatedAt,
	}
}

// resolveAccount finds the local account of a subscription: metadata first,
// then the checkout reference, then the linked processor customer.
func (s *Service) resolveAccount(ctx context.Context, sub *SubscriptionPayload, hintAccountID uint) (uint, error) {
	if sub.AccountID != 0 {
		return sub.AccountID, nil
	}
	if hintAccountID != 0 {
		return hintAccountID, nil
	}
	if sub.CustomerID == "" {
		return 0, nil
	}
	account, err := s.repo.GetBillingAccountByCustomerID(ctx, models.BillingProviderStripe, sub.CustomerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup billing account: %w", err)
	}
	return account.UserID, nil
}

func (s *Service) linkCustomer(ctx context.Context, accountID uint, customerID string) error {
	if accountID == 0 || customerID == "" {
		return nil
	}
	account := &models.BillingAccount{
		UserID:             accountID,
		Provider:           models.BillingProviderStripe,
		ProviderCustomerID: customerID,
	}
	if err := s.repo.UpsertBillingAccount(ctx, account); err != nil {
		return fmt.Errorf("link billing customer: %w", err)
	}
	return nil
}

func (s *Service) fetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionPayload, error) {
	if s.processor == nil {
		return nil, ErrConfigurationMissing
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.ProcessorTimeout)
	defer cancel()

	sub, err := s.processor.FetchSubscription(fetchCtx, subscriptionID)
	if err != nil {
		if errors.Is(err, ErrTransientUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetch subscription %s: %v", ErrTransientUpstream, subscriptionID, err)
	}
	return sub, nil
}

// CreateCheckout returns the processor redirect URL for buying planID. It
// never touches SubscriptionState; the result arrives through webhooks.
func (s *Service) CreateCheckout(ctx context.Context, account AccountRef, planID string) (string, error) {
	plan := normalizePlan(planID)
	if plan == models.PlanFree {
		return "", ErrPlanNotAvailable
	}
	price, ok := s.catalog.PriceFor(plan)
	if !ok {
		return "", ErrPlanNotAvailable
	}
	if account.AccountID == 0 {
		return "", errors.New("account_id is required")
	}
	current, err := s.repo.ReadSubscriptionState(ctx, account.AccountID)
	if err != nil {
		return "", fmt.Errorf("read subscription state: %w", err)
	}
	if IsEntitlingStatus(current.Status) {
		return "", ErrSubscriptionActive
	}
	if s.processor == nil {
		return "", ErrConfigurationMissing
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.ProcessorTimeout)
	defer cancel()

	customerID, err := s.ensureCustomer(callCtx, account)
	if err != nil {
		return "", err
	}
	return s.processor.CreateCheckoutSession(callCtx, CheckoutRequest{
		AccountID:  account.AccountID,
		Email:      account.Email,
		CustomerID: customerID,
		PriceID:    price,
		PlanID:     plan,
		SuccessURL: s.opts.SuccessURL,
		CancelURL:  s.opts.CancelURL,
	})
}

// CreatePortal returns the processor's self-service portal URL.
func (s *Service) CreatePortal(ctx context.Context, account AccountRef) (string, error) {
	if s.processor == nil {
		return "", ErrConfigurationMissing
	}
	ba, err := s.repo.GetBillingAccountByUserID(ctx, models.BillingProviderStripe, account.AccountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoBillingCustomer
	}
	if err != nil {
		return "", fmt.Errorf("lookup billing account: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.ProcessorTimeout)
	defer cancel()
	return s.processor.CreatePortalSession(callCtx, ba.ProviderCustomerID, s.opts.PortalReturnURL)
}

// GetSubscriptionState returns the reconciled state of an account.
func (s *Service) GetSubscriptionState(ctx context.Context, accountID uint) (*models.SubscriptionState, error) {
	return s.repo.ReadSubscriptionState(ctx, accountID)
}

func (s *Service) ensureCustomer(ctx context.Context, account AccountRef) (string, error) {
	ba, err := s.repo.GetBillingAccountByUserID(ctx, models.BillingProviderStripe, account.AccountID)
	if err == nil && ba.ProviderCustomerID != "" {
		return ba.ProviderCustomerID, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("lookup billing account: %w", err)
	}

	customerID, err := s.processor.CreateCustomer(ctx, account.AccountID, account.Email)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpsertBillingAccount(ctx, &models.BillingAccount{
		UserID:             account.AccountID,
		Provider:           models.BillingProviderStripe,
		ProviderCustomerID: customerID,
		Email:              strings.TrimSpace(account.Email),
	}); err != nil {
		return "", fmt.Errorf("link billing customer: %w", err)
	}
	return customerID, nil
}

// recordDelivery writes the operator-facing delivery log. Failures are
// logged only; the log row is not part of reconciliation.
func (s *Service) recordDelivery(ctx context.Context, ev *Event, payload []byte, accountID uint, outcome string, procErr error) {
	row := &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		AccountID:       accountID,
		Outcome:         outcome,
		PayloadJSON:     string(payload),
	}
	if procErr != nil {
		row.ProcessingError = procErr.Error()
	} else {
		now := s.now()
		row.ProcessedAt = &now
	}
	if err := s.repo.RecordWebhookEvent(ctx, row); err != nil {
		log.Printf("[Billing] Failed to record delivery of event %s: %v", ev.ID, err)
	}
}

func (s *Service) observe(ctx context.Context, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordOutcome(ctx, outcome)
	}
}
