package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// crud is the shared persistence for catalog entities keyed by uuid and owned
// by an emisor.
type crud[T any] struct{ db *gorm.DB }

func (r crud[T]) Create(ctx context.Context, v *T) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r crud[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var v T
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r crud[T]) Update(ctx context.Context, v *T) error {
	return r.db.WithContext(ctx).Save(v).Error
}

// Delete returns gorm.ErrRecordNotFound when nothing matched.
func (r crud[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r crud[T]) ListByEmisor(ctx context.Context, emisorID uuid.UUID) ([]T, error) {
	var out []T
	err := r.db.WithContext(ctx).Where("emisor_id = ?", emisorID).Order("created_at ASC").Find(&out).Error
	return out, err
}
