package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CVFox/app/models"
	"gorm.io/gorm"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new delivery log repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// ListRecent returns the latest deliveries without their payloads
func (r *webhookEventRepository) ListRecent(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	var events []models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Select("id", "provider", "provider_event_id", "event_type", "account_id", "outcome", "processed_at", "processing_error", "created_at", "updated_at").
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// CountByOutcome groups deliveries since a point in time by outcome
func (r *webhookEventRepository) CountByOutcome(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []struct {
		Outcome string
		Count   int64
	}
	err := r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).
		Select("outcome, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Outcome] = row.Count
	}
	return out, nil
}
