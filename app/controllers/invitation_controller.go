package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CVFox/internal/pkg/invitation"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
)

// InvitationController manages organization invitations.
type InvitationController struct {
	svc *invitation.Service
}

func NewInvitationController(svc *invitation.Service) *InvitationController {
	return &InvitationController{svc: svc}
}

// HandleCancel cancels a pending invitation. The anti-forgery check already
// ran in middleware; everything after it is decided by the service.
func (ic *InvitationController) HandleCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	orgID, ok := parseUintParam(c, "org")
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inv, err := ic.svc.Cancel(ctx, invitation.Actor{UserID: userCtx.UserID, Email: userCtx.Email}, orgID, c.Params("id"))
	if err != nil {
		status, code := invitationErrorStatus(err)
		message := err.Error()
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Printf("[Invitation] Cancel of %s in org %d by user %d failed: %v", c.Params("id"), orgID, userCtx.UserID, err)
			message = "could not cancel invitation"
		case errors.Is(err, invitation.ErrInvitationWrongOrg):
			message = invitation.ErrInvitationNotFound.Error()
		}
		return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
	}

	return c.JSON(fiber.Map{"ok": true, "invitation": inv})
}

func invitationErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, invitation.ErrAuthenticationRequired):
		return fiber.StatusUnauthorized, "authentication_required"
	case errors.Is(err, invitation.ErrForbidden):
		return fiber.StatusForbidden, "forbidden"
	// A foreign invitation is reported like a missing one.
	case errors.Is(err, invitation.ErrInvitationNotFound), errors.Is(err, invitation.ErrInvitationWrongOrg):
		return fiber.StatusNotFound, "invitation_not_found"
	case errors.Is(err, invitation.ErrInvitationAlreadyCanceled):
		return fiber.StatusConflict, "already_canceled"
	case errors.Is(err, invitation.ErrInvitationNotPending):
		return fiber.StatusConflict, "not_pending"
	default:
		return fiber.StatusInternalServerError, "cancel_failed"
	}
}
