package billing

import "errors"

var (
	// ErrSignatureInvalid covers every webhook authenticity failure. Expired
	// signatures wrap it as well.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")

	// ErrTransientUpstream means the processor or the data store did not
	// answer in time. The event is left unprocessed so redelivery retries it.
	ErrTransientUpstream = errors.New("transient upstream failure")

	// ErrConflict is returned by a conditional state write that lost a race.
	ErrConflict = errors.New("subscription state changed concurrently")

	ErrConfigurationMissing = errors.New("billing processor not configured")
	ErrPlanNotAvailable     = errors.New("plan not available for checkout")
	ErrNoBillingCustomer    = errors.New("account has no billing customer")
	ErrInvalidPayload       = errors.New("webhook payload invalid")

	// ErrSubscriptionActive rejects a second purchase; plan changes of a live
	// subscription go through the portal.
	ErrSubscriptionActive = errors.New("account already has an active subscription")
)

// ErrEventInProgress means another delivery of the same event currently
// holds the idempotency marker. The caller answers non-2xx so the processor
// redelivers later.
var ErrEventInProgress = errors.New("webhook event is being processed")
