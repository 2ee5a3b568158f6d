package router

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CVFox/app/controllers"
	"github.com/ManuelReschke/CVFox/app/repository"
	"github.com/ManuelReschke/CVFox/internal/pkg/billing"
	"github.com/ManuelReschke/CVFox/internal/pkg/invitation"
	"github.com/ManuelReschke/CVFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CVFox/internal/pkg/security"
	"github.com/ManuelReschke/CVFox/internal/pkg/session"
)

func newRouterTestApp(t *testing.T) *fiber.App {
	t.Helper()
	session.Use(fibersession.Config{}, time.Hour)
	guard, err := security.NewGuard("router-test-secret", session.SessionActive)
	require.NoError(t, err)

	// No webhook secret: a delivery that gets past routing answers 500.
	billingSvc := billing.NewService(nil, billing.NewMemoryMarkerStore(), nil, billing.NewPlanCatalog(nil), billing.Options{})
	counters := counter.New(nil)

	app := fiber.New()
	InstallRouter(app, Deps{
		Controllers: controllers.New(&repository.Repositories{}, billingSvc, invitation.NewService(nil, nil, nil), nil, counters),
		Guard:       guard,
		Counters:    counters,
	})
	return app
}

func TestRouter_WebhookBypassesToken(t *testing.T) {
	app := newRouterTestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=00")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestRouter_UnsafeRoutesRequireToken(t *testing.T) {
	app := newRouterTestApp(t)

	for _, path := range []string{
		"/logout",
		"/user/billing/checkout",
		"/user/billing/portal",
		"/org/1/invitations/abc/cancel",
		"/admin/billing/markers/evt_1/delete",
		"/api/v1/billing/checkout",
		"/api/v1/org/1/invitations/abc/cancel",
	} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, path, nil))
		require.NoError(t, err, path)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, path)
	}
}

func TestRouter_SafeRoutesStillAuthenticate(t *testing.T) {
	app := newRouterTestApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/user/billing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/billing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
