package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CVFox/app/models"
	"gorm.io/gorm"
)

type invitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository creates a new invitation repository instance
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

func (r *invitationRepository) Create(inv *models.Invitation) error {
	return r.db.Create(inv).Error
}

func (r *invitationRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepository) CancelWithAudit(ctx context.Context, inv *models.Invitation, actorID uint, at time.Time, entry *models.AuditEntry) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The status guard makes two concurrent cancels produce one audit entry.
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", inv.ID, models.InvitationStatusPending).
			Updates(map[string]interface{}{
				"status":         models.InvitationStatusCanceled,
				"canceled_at":    at,
				"canceled_by_id": actorID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		inv.Status = models.InvitationStatusCanceled
		inv.CanceledAt = &at
		inv.CanceledByID = &actorID
	}
	return changed, nil
}

func (r *invitationRepository) ListAudit(ctx context.Context, orgID uint, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
