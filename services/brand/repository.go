package brand

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("brand.module",
	fx.Provide(NewRepository),
)

// Repository exposes the brand lookups the pipeline needs.
type Repository interface {
	ByID(ctx context.Context, brandID string) (*Brand, error)
	// RecipientEmails returns the distinct admin and editor emails that
	// receive publish notifications for a brand.
	RecipientEmails(ctx context.Context, brandID string) ([]string, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ByID(ctx context.Context, brandID string) (*Brand, error) {
	var b Brand
	err := r.db.WithContext(ctx).First(&b, "id = ?", brandID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *gormRepository) RecipientEmails(ctx context.Context, brandID string) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).
		Model(&BrandMember{}).
		Distinct("email").
		Where("brand_id = ? AND role IN ?", brandID, []MemberRole{RoleAdmin, RoleEditor}).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}
