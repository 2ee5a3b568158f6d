package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CVFox/internal/pkg/security"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
)

func newCSRFTestApp(t *testing.T, sessionID string) (*fiber.App, *security.Guard, *int, *int) {
	t.Helper()
	guard, err := security.NewGuard("test-secret", func(id string) bool { return id == "sess-1" })
	require.NoError(t, err)

	handled := 0
	rejected := 0
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.LocalsKey, usercontext.UserContext{
			UserID: 1, SessionID: sessionID, IsLoggedIn: sessionID != "",
		})
		return c.Next()
	})
	app.Use(RequireCSRF(CSRFConfig{Guard: guard, OnReject: func(*fiber.Ctx) { rejected++ }}))
	app.Get("/form", func(c *fiber.Ctx) error {
		tok, _ := c.Locals(usercontext.KeyCSRF).(string)
		return c.SendString(tok)
	})
	app.Post("/action", func(c *fiber.Ctx) error {
		handled++
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, guard, &handled, &rejected
}

func TestRequireCSRF_SafeMethodExposesToken(t *testing.T) {
	app, guard, _, _ := newCSRFTestApp(t, "sess-1")

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/form", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	want, err := guard.IssueToken("sess-1")
	require.NoError(t, err)
	assert.Equal(t, want, string(body))
}

func TestRequireCSRF_AcceptsEveryTransport(t *testing.T) {
	app, guard, handled, _ := newCSRFTestApp(t, "sess-1")
	tok, err := guard.IssueToken("sess-1")
	require.NoError(t, err)

	header := httptest.NewRequest(fiber.MethodPost, "/action", nil)
	header.Header.Set(security.TokenHeader, tok)

	form := httptest.NewRequest(fiber.MethodPost, "/action",
		strings.NewReader(url.Values{"_csrf": {tok}}.Encode()))
	form.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	jsonBody := httptest.NewRequest(fiber.MethodPost, "/action",
		strings.NewReader(`{"plan":"pro","_csrf":"`+tok+`"}`))
	jsonBody.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)

	for name, req := range map[string]*http.Request{"header": header, "form": form, "json": jsonBody} {
		resp, err := app.Test(req)
		require.NoError(t, err, name)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode, name)
	}
	assert.Equal(t, 3, *handled)
}

func TestRequireCSRF_RejectsBeforeHandler(t *testing.T) {
	app, _, handled, rejected := newCSRFTestApp(t, "sess-1")
	otherGuard, err := security.NewGuard("other-secret", nil)
	require.NoError(t, err)
	foreign, err := otherGuard.IssueToken("sess-1")
	require.NoError(t, err)

	for name, tok := range map[string]string{"missing": "", "wrong": foreign, "garbage": "!!!"} {
		req := httptest.NewRequest(fiber.MethodPost, "/action", nil)
		if tok != "" {
			req.Header.Set(security.TokenHeader, tok)
		}
		resp, err := app.Test(req)
		require.NoError(t, err, name)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, name)

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "forbidden_token", name)
	}
	assert.Equal(t, 0, *handled)
	assert.Equal(t, 3, *rejected)
}

func TestRequireCSRF_AnonymousRequestRejected(t *testing.T) {
	app, guard, handled, _ := newCSRFTestApp(t, "")
	tok, err := guard.IssueToken("sess-1")
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/action", nil)
	req.Header.Set(security.TokenHeader, tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, *handled)
}
