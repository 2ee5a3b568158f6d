package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/CVFox/internal/pkg/billing"
	"github.com/ManuelReschke/CVFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
)

const (
	webhookTimeout     = 15 * time.Second
	billingCallTimeout = 20 * time.Second
	billingPage        = "/user/billing"

	// msgTryAgain is the only processor failure text users ever see.
	msgTryAgain = "Billing is unavailable right now. Please try again shortly."
)

// BillingController serves the webhook endpoint and the checkout, portal and
// state endpoints of the logged-in user.
type BillingController struct {
	svc      *billing.Service
	validate *validator.Validate
}

func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{svc: svc, validate: validator.New()}
}

type checkoutRequest struct {
	Plan string `json:"plan" form:"plan" validate:"required,max=50"`
}

// HandleStripeWebhook answers 2xx only when the event was applied, was a
// duplicate, or was intentionally ignored or stale. Everything else makes
// the processor redeliver.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	// Signatures cover the exact bytes received; never re-encode the body.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res, err := bc.svc.HandleWebhook(ctx, rawBody, signature)
	if err != nil {
		status, code := webhookErrorStatus(err)
		if status >= fiber.StatusInternalServerError {
			log.Printf("[Webhook] Delivery failed (%d %s): %v", status, code, err)
		} else {
			log.Printf("[Webhook] Delivery rejected (%d %s): %v", status, code, err)
		}
		return c.Status(status).JSON(fiber.Map{"error": code})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"event_id":  res.EventID,
		"outcome":   res.Outcome,
		"duplicate": res.Outcome == billing.OutcomeDuplicate,
		"ignored":   res.Outcome == billing.OutcomeIgnored,
		"stale":     res.Outcome == billing.OutcomeStale,
	})
}

func webhookErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrSignatureInvalid):
		return fiber.StatusBadRequest, "invalid_signature"
	case errors.Is(err, billing.ErrInvalidPayload):
		return fiber.StatusBadRequest, "invalid_payload"
	case errors.Is(err, billing.ErrEventInProgress):
		return fiber.StatusConflict, "event_in_progress"
	case errors.Is(err, billing.ErrTransientUpstream), errors.Is(err, billing.ErrConflict):
		return fiber.StatusServiceUnavailable, "temporarily_unavailable"
	case errors.Is(err, billing.ErrConfigurationMissing):
		return fiber.StatusInternalServerError, "webhook_not_configured"
	default:
		return fiber.StatusInternalServerError, "processing_failed"
	}
}

// HandleCheckout starts a checkout from the billing page form.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil || bc.validate.Struct(req) != nil {
		return bc.fail(c, fiber.StatusBadRequest, "invalid_request", "Please choose a plan.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingCallTimeout)
	defer cancel()

	url, err := bc.svc.CreateCheckout(ctx, billing.AccountRef{AccountID: userCtx.UserID, Email: userCtx.Email}, req.Plan)
	if err != nil {
		if errors.Is(err, billing.ErrPlanNotAvailable) {
			return bc.fail(c, fiber.StatusUnprocessableEntity, "plan_not_available", billing.ErrPlanNotAvailable.Error())
		}
		if errors.Is(err, billing.ErrSubscriptionActive) {
			return bc.fail(c, fiber.StatusConflict, "subscription_active", "Your subscription is active. Use the billing portal to change plans.")
		}
		log.Printf("[Billing] Checkout for user %d (plan %q) failed: %v", userCtx.UserID, req.Plan, err)
		return bc.fail(c, fiber.StatusServiceUnavailable, "billing_unavailable", msgTryAgain)
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"url": url})
	}
	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandlePortal opens the processor's self-service portal.
func (bc *BillingController) HandlePortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), billingCallTimeout)
	defer cancel()

	url, err := bc.svc.CreatePortal(ctx, billing.AccountRef{AccountID: userCtx.UserID, Email: userCtx.Email})
	if err != nil {
		if errors.Is(err, billing.ErrNoBillingCustomer) {
			return bc.fail(c, fiber.StatusConflict, "no_billing_account", "There is no subscription to manage yet.")
		}
		log.Printf("[Billing] Portal for user %d failed: %v", userCtx.UserID, err)
		return bc.fail(c, fiber.StatusServiceUnavailable, "billing_unavailable", msgTryAgain)
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"url": url})
	}
	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleBillingState returns the reconciled subscription of the user.
func (bc *BillingController) HandleBillingState(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := bc.svc.GetSubscriptionState(ctx, userCtx.UserID)
	if err != nil {
		log.Printf("[Billing] Reading state of user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_unavailable", "message": msgTryAgain})
	}

	plan := entitlements.ForState(state)
	csrfToken, _ := c.Locals(usercontext.KeyCSRF).(string)
	return c.JSON(fiber.Map{
		"subscription":   state,
		"effective_plan": plan,
		"limits":         entitlements.LimitsFor(plan),
		"plans":          bc.svc.Catalog().Plans(),
		"flash":          flash.Get(c),
		"csrf":           csrfToken,
	})
}

func (bc *BillingController) fail(c *fiber.Ctx, status int, code, message string) error {
	if wantsJSON(c) {
		return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
	}
	return flash.WithError(c, fiber.Map{"type": "error", "message": message}).Redirect(billingPage)
}
