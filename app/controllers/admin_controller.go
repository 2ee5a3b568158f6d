package controllers

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CVFox/app/repository"
	"github.com/ManuelReschke/CVFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
)

const (
	defaultAdminListLimit = 50
	maxAdminListLimit     = 500
)

// AdminController gives operators a view on webhook deliveries, idempotency
// markers and organization audit trails.
type AdminController struct {
	repos    *repository.Repositories
	counters *counter.Counters
}

// NewAdminController creates a new admin controller with repository dependencies
func NewAdminController(repos *repository.Repositories, counters *counter.Counters) *AdminController {
	return &AdminController{repos: repos, counters: counters}
}

// HandleWebhookEvents lists the most recent deliveries.
func (ac *AdminController) HandleWebhookEvents(c *fiber.Ctx) error {
	ctx, cancel := adminContext()
	defer cancel()

	events, err := ac.repos.WebhookEvent.ListRecent(ctx, listLimit(c))
	if err != nil {
		return ac.handleError(c, "Failed to list webhook events", err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleWebhookStats combines the persisted delivery log of the last day with
// the live counters.
func (ac *AdminController) HandleWebhookStats(c *fiber.Ctx) error {
	ctx, cancel := adminContext()
	defer cancel()

	since := time.Now().UTC().Add(-24 * time.Hour)
	byOutcome, err := ac.repos.WebhookEvent.CountByOutcome(ctx, since)
	if err != nil {
		return ac.handleError(c, "Failed to count webhook events", err)
	}
	snapshot, err := ac.counters.Snapshot(ctx)
	if err != nil {
		return ac.handleError(c, "Failed to read counters", err)
	}
	return c.JSON(fiber.Map{
		"since":      since,
		"deliveries": byOutcome,
		"counters":   snapshot,
	})
}

// HandleMarkers lists idempotency markers.
func (ac *AdminController) HandleMarkers(c *fiber.Ctx) error {
	ctx, cancel := adminContext()
	defer cancel()

	markers, err := ac.repos.Marker.List(ctx, listLimit(c))
	if err != nil {
		return ac.handleError(c, "Failed to list markers", err)
	}
	return c.JSON(fiber.Map{"markers": markers})
}

// HandleMarkerDelete drops the marker of one event so its next delivery is
// processed again. Reconciliation stays safe because stale events are still
// dropped by sequence.
func (ac *AdminController) HandleMarkerDelete(c *fiber.Ctx) error {
	eventID := strings.TrimSpace(c.Params("id"))
	if eventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "event id required"})
	}

	ctx, cancel := adminContext()
	defer cancel()

	removed, err := ac.repos.Marker.Delete(ctx, eventID)
	if err != nil {
		return ac.handleError(c, "Failed to delete marker", err)
	}
	log.Printf("[Admin] User %d removed marker of event %s (%d)", usercontext.GetUserID(c), eventID, removed)
	return c.JSON(fiber.Map{"ok": true, "removed": removed})
}

// HandleOrgAudit lists the audit trail of one organization.
func (ac *AdminController) HandleOrgAudit(c *fiber.Ctx) error {
	orgID, ok := parseUintParam(c, "org")
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	ctx, cancel := adminContext()
	defer cancel()

	entries, err := ac.repos.Invitation.ListAudit(ctx, orgID, listLimit(c))
	if err != nil {
		return ac.handleError(c, "Failed to list audit entries", err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// handleError handles errors consistently
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Printf("[Admin] %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}

func adminContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func listLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultAdminListLimit
	}
	if limit > maxAdminListLimit {
		return maxAdminListLimit
	}
	return limit
}
