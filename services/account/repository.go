package account

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository describes database operations available for social accounts.
type Repository interface {
	ByBrand(ctx context.Context, brandID string) ([]SocialAccount, error)
	ByBrandProvider(ctx context.Context, brandID, provider string) (*SocialAccount, error)
	UpdateTokens(ctx context.Context, accountID, sealedAccess string, sealedRefresh *string, expiresAt time.Time) error
	MarkDisconnected(ctx context.Context, accountID, reason string) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ByBrand(ctx context.Context, brandID string) ([]SocialAccount, error) {
	var accounts []SocialAccount
	err := r.db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *gormRepository) ByBrandProvider(ctx context.Context, brandID, provider string) (*SocialAccount, error) {
	var acct SocialAccount
	err := r.db.WithContext(ctx).
		Where("brand_id = ? AND provider = ?", brandID, provider).
		First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acct, nil
}

// UpdateTokens is scoped to one account id so concurrent refreshers stay
// last-write-wins on a single row.
func (r *gormRepository) UpdateTokens(ctx context.Context, accountID, sealedAccess string, sealedRefresh *string, expiresAt time.Time) error {
	updates := map[string]any{
		"access_token":     sealedAccess,
		"token_expires_at": expiresAt,
		"status":           Connected,
		"last_error":       nil,
	}
	if sealedRefresh != nil {
		updates["refresh_token"] = *sealedRefresh
	}
	return r.db.WithContext(ctx).
		Model(&SocialAccount{}).
		Where("id = ?", accountID).
		Updates(updates).Error
}

func (r *gormRepository) MarkDisconnected(ctx context.Context, accountID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&SocialAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"status":     Disconnected,
			"last_error": reason,
		}).Error
}
