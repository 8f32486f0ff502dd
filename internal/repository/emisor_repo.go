package repository

import (
	"context"

	"factumovil/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmisorRepository interface {
	Create(ctx context.Context, e *model.Emisor) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Emisor, error)
	List(ctx context.Context) ([]model.Emisor, error)
	Update(ctx context.Context, e *model.Emisor) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type emisorRepo struct {
	crud[model.Emisor]
}

func NewEmisorRepository(db *gorm.DB) EmisorRepository {
	return &emisorRepo{crud[model.Emisor]{db: db}}
}

func (r *emisorRepo) List(ctx context.Context) ([]model.Emisor, error) {
	var out []model.Emisor
	err := r.db.WithContext(ctx).Order("nombre ASC").Find(&out).Error
	return out, err
}
