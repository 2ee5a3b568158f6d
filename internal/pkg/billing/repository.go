package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/CVFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateVersion identifies the last event applied to a stored state row. A
// conditional write only succeeds while the row still carries this version.
type StateVersion struct {
	Exists   bool
	Sequence int64
	EventID  string
}

// VersionOf returns the version a state was read at.
func VersionOf(s *models.SubscriptionState) StateVersion {
	if s == nil {
		return StateVersion{}
	}
	return StateVersion{
		Exists:   s.ID != 0,
		Sequence: s.LastEventSequence,
		EventID:  s.LastEventID,
	}
}

// Repository provides DB operations used by the billing service.
type Repository interface {
	// ReadSubscriptionState returns the stored state, or the empty state of
	// the account when nothing was reconciled yet.
	ReadSubscriptionState(ctx context.Context, accountID uint) (*models.SubscriptionState, error)
	// WriteSubscriptionState replaces the whole row in one statement, only if
	// the stored version still equals expected. Returns ErrConflict otherwise.
	WriteSubscriptionState(ctx context.Context, next *models.SubscriptionState, expected StateVersion) error
	GetBillingAccountByUserID(ctx context.Context, provider string, userID uint) (*models.BillingAccount, error)
	GetBillingAccountByCustomerID(ctx context.Context, provider, customerID string) (*models.BillingAccount, error)
	UpsertBillingAccount(ctx context.Context, account *models.BillingAccount) error
	RecordWebhookEvent(ctx context.Context, event *models.BillingWebhookEvent) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ReadSubscriptionState(ctx context.Context, accountID uint) (*models.SubscriptionState, error) {
	var state models.SubscriptionState
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.EmptySubscriptionState(accountID), nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *gormRepository) WriteSubscriptionState(ctx context.Context, next *models.SubscriptionState, expected StateVersion) error {
	db := r.db.WithContext(ctx)

	if !expected.Exists {
		// First write for this account: the unique account_id index makes a
		// concurrent first write lose with zero affected rows.
		row := *next
		row.ID = 0
		tx := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoNothing: true,
		}).Create(&row)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			return ErrConflict
		}
		next.ID = row.ID
		return nil
	}

	tx := db.Model(&models.SubscriptionState{}).
		Where("account_id = ? AND last_event_sequence = ? AND last_event_id = ?",
			next.AccountID, expected.Sequence, expected.EventID).
		Updates(map[string]interface{}{
			"plan":                     next.Plan,
			"status":                   next.Status,
			"external_subscription_id": next.ExternalSubscriptionID,
			"external_customer_id":     next.ExternalCustomerID,
			"period_end":               next.PeriodEnd,
			"cancel_at_period_end":     next.CancelAtPeriodEnd,
			"last_event_sequence":      next.LastEventSequence,
			"last_event_id":            next.LastEventID,
			"updated_at":               time.Now(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *gormRepository) GetBillingAccountByUserID(ctx context.Context, provider string, userID uint) (*models.BillingAccount, error) {
	var account models.BillingAccount
	err := r.db.WithContext(ctx).Where("provider = ? AND user_id = ?", provider, userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetBillingAccountByCustomerID(ctx context.Context, provider, customerID string) (*models.BillingAccount, error) {
	var account models.BillingAccount
	err := r.db.WithContext(ctx).Where("provider = ? AND provider_customer_id = ?", provider, customerID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) UpsertBillingAccount(ctx context.Context, account *models.BillingAccount) error {
	db := r.db.WithContext(ctx)
	// Webhooks link a customer without knowing the email; keep the stored one.
	updates := []string{"provider_customer_id", "updated_at"}
	if account.Email != "" {
		updates = append(updates, "email")
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "provider"},
		},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(account).Error; err != nil {
		return err
	}

	return db.Where("provider = ? AND user_id = ?", account.Provider, account.UserID).First(account).Error
}

func (r *gormRepository) RecordWebhookEvent(ctx context.Context, event *models.BillingWebhookEvent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"account_id",
			"outcome",
			"processed_at",
			"processing_error",
			"updated_at",
		}),
	}).Create(event).Error
}
