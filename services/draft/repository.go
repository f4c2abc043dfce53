package draft

import (
	"context"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("draft.module",
	fx.Provide(NewRepository),
)

type Repository interface {
	Create(ctx context.Context, d *Draft) error
	FindByID(ctx context.Context, id string) (*Draft, error)
	// FindDue returns approved, publishable drafts whose scheduled time has
	// passed, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]Draft, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// SetPublishedAtIfUnset stamps the first moment the draft reached a
	// published or partially published outcome. Later aggregations keep
	// the original stamp.
	SetPublishedAtIfUnset(ctx context.Context, id string, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, d *Draft) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id string) (*Draft, error) {
	var d Draft
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *gormRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]Draft, error) {
	var drafts []Draft
	err := r.db.WithContext(ctx).
		Where("approved = ?", true).
		Where("status IN ?", []Status{StatusScheduled, StatusPartiallyPublished, StatusFailed}).
		Where("scheduled_for IS NOT NULL AND scheduled_for <= ?", now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func (r *gormRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	return r.db.WithContext(ctx).
		Model(&Draft{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *gormRepository) SetPublishedAtIfUnset(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&Draft{}).
		Where("id = ? AND published_at IS NULL", id).
		Update("published_at", at).Error
}
