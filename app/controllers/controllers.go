package controllers

import (
	"github.com/ManuelReschke/CVFox/app/repository"
	"github.com/ManuelReschke/CVFox/internal/pkg/billing"
	"github.com/ManuelReschke/CVFox/internal/pkg/invitation"
	"github.com/ManuelReschke/CVFox/internal/pkg/metrics/counter"
)

// Controllers bundles every HTTP controller the router mounts.
type Controllers struct {
	Auth       *AuthController
	Billing    *BillingController
	Invitation *InvitationController
	Admin      *AdminController
}

// New wires the controllers against their services.
func New(repos *repository.Repositories, billingSvc *billing.Service, invitations *invitation.Service, admins invitation.AdminAllowList, counters *counter.Counters) *Controllers {
	return &Controllers{
		Auth:       NewAuthController(repos.User, admins),
		Billing:    NewBillingController(billingSvc),
		Invitation: NewInvitationController(invitations),
		Admin:      NewAdminController(repos, counters),
	}
}
