package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CVFox/app/models"
	"github.com/ManuelReschke/CVFox/app/repository"
	"github.com/ManuelReschke/CVFox/internal/pkg/invitation"
	"github.com/ManuelReschke/CVFox/internal/pkg/session"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
)

// msgLoginFailed never tells which part of the credentials was wrong.
const msgLoginFailed = "There is a problem with the login process"

// AuthController handles login and logout.
type AuthController struct {
	users    repository.UserRepository
	admins   invitation.AdminAllowList
	validate *validator.Validate
}

func NewAuthController(users repository.UserRepository, admins invitation.AdminAllowList) *AuthController {
	return &AuthController{users: users, admins: admins, validate: validator.New()}
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email,max=200"`
	Password string `json:"password" form:"password" validate:"required,max=200"`
}

// HandleLoginPage reports the login state and pending flash messages.
func (ac *AuthController) HandleLoginPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"logged_in": usercontext.IsLoggedIn(c),
		"flash":     flash.Get(c),
	})
}

// HandleLogin authenticates the account and starts a fresh session. The
// session id is rotated so a token minted before login is never valid after.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil || ac.validate.Struct(req) != nil {
		return ac.loginFailed(c, fiber.StatusBadRequest)
	}

	user, err := ac.users.GetByEmail(req.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Auth] Lookup of %q failed: %v", req.Email, err)
		}
		return ac.loginFailed(c, fiber.StatusUnauthorized)
	}
	if !user.IsActive() || !user.CheckPassword(req.Password) {
		log.Printf("[Auth] Failed login for user %d from %s", user.ID, GetClientIP(c))
		return ac.loginFailed(c, fiber.StatusUnauthorized)
	}

	isAdmin := user.Role == models.ROLE_ADMIN || ac.admins.Contains(user.Email)
	acct, err := session.Login(c, user.ID, user.Email, user.Name, isAdmin)
	if err != nil {
		log.Printf("[Auth] Starting session for user %d failed: %v", user.ID, err)
		return ac.loginFailed(c, fiber.StatusInternalServerError)
	}

	if err := ac.users.UpdateLastLogin(user.ID, time.Now().UTC()); err != nil {
		log.Printf("[Auth] Updating last login of user %d failed: %v", user.ID, err)
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{
			"ok":         true,
			"user_id":    user.ID,
			"expires_at": acct.ExpiresAt,
		})
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Welcome back!"}).
		Redirect(billingPage, fiber.StatusSeeOther)
}

// HandleLogout destroys the session. It runs behind the token check like
// every other state-changing route.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := session.Logout(c); err != nil {
		log.Printf("[Auth] Logout failed: %v", err)
	}
	c.Locals(usercontext.KeyFromProtected, false)

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"ok": true})
	}
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Logged out."}).
		Redirect("/login", fiber.StatusSeeOther)
}

func (ac *AuthController) loginFailed(c *fiber.Ctx, status int) error {
	if wantsJSON(c) {
		return c.Status(status).JSON(fiber.Map{"error": "login_failed", "message": msgLoginFailed})
	}
	return flash.WithError(c, fiber.Map{"type": "error", "message": msgLoginFailed}).
		Redirect("/login", fiber.StatusSeeOther)
}

