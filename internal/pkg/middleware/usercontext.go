package middleware

import (
	"context"
	"time"

	"github.com/ManuelReschke/CVFox/internal/pkg/session"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// PlanResolver returns the effective plan of an account.
type PlanResolver func(ctx context.Context, accountID uint) string

const planLookupTimeout = 2 * time.Second

// UserContextMiddleware sets up the complete user context for every request
// from the session cookie. Plans are resolved per request so a webhook that
// changes a subscription takes effect on the next page load.
func UserContextMiddleware(plans PlanResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		acct := session.GetAccountSession(c)
		if acct == nil {
			c.Locals(usercontext.LocalsKey, usercontext.UserContext{IsLoggedIn: false, IsAdmin: false})
			c.Locals(usercontext.KeyFromProtected, false)
			c.Locals(usercontext.KeyIsAdmin, false)
			return c.Next()
		}

		plan := "free"
		if plans != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), planLookupTimeout)
			if p := plans(ctx, acct.AccountID); p != "" {
				plan = p
			}
			cancel()
		}

		userCtx := usercontext.UserContext{
			UserID:     acct.AccountID,
			SessionID:  acct.ID,
			Username:   acct.Username,
			Email:      acct.Email,
			IsLoggedIn: true,
			IsAdmin:    acct.IsAdmin,
			Plan:       plan,
		}
		c.Locals(usercontext.LocalsKey, userCtx)
		c.Locals(usercontext.KeyFromProtected, true)
		c.Locals(usercontext.KeyUserID, acct.AccountID)
		c.Locals(usercontext.KeyIsAdmin, acct.IsAdmin)

		return c.Next()
	}
}
