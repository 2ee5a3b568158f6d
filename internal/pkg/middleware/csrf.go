package middleware

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/ManuelReschke/CVFox/internal/pkg/security"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// CSRFConfig configures RequireCSRF.
type CSRFConfig struct {
	Guard *security.Guard
	// OnReject is called once per rejected request, after logging.
	OnReject func(c *fiber.Ctx)
}

// RequireCSRF validates the anti-forgery token on every state-changing
// request before the route handler runs. Safe methods pass and get the
// session's token in Locals("csrf").
func RequireCSRF(cfg CSRFConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := usercontext.GetSessionID(c)

		if isSafeMethod(c.Method()) {
			if sessionID != "" {
				if tok, err := cfg.Guard.IssueToken(sessionID); err == nil {
					c.Locals(usercontext.KeyCSRF, tok)
				}
			}
			return c.Next()
		}

		supplied := security.ExtractToken(
			c.Get(security.TokenHeader),
			c.FormValue(security.TokenFormField),
			jsonBodyToken(c),
		)
		if !cfg.Guard.Validate(sessionID, supplied) {
			log.Printf("[CSRF] Rejected %s %s (session=%t, token=%t)", c.Method(), c.Path(), sessionID != "", supplied != "")
			if cfg.OnReject != nil {
				cfg.OnReject(c)
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden_token",
				"message": security.ErrForbiddenToken.Error(),
			})
		}
		return c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions, fiber.MethodTrace:
		return true
	default:
		return false
	}
}

func jsonBodyToken(c *fiber.Ctx) string {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		return ""
	}
	var body struct {
		Token string `json:"_csrf"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return ""
	}
	return body.Token
}
