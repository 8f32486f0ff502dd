package repository

import (
	"context"

	"factumovil/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductoRepository is the catalog store. ListByEmisor returns the snapshot
// used to reconcile loose product references.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	ListByEmisor(ctx context.Context, emisorID uuid.UUID) ([]model.Producto, error)
	Update(ctx context.Context, p *model.Producto) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type productoRepo struct {
	crud[model.Producto]
}

func NewProductoRepository(db *gorm.DB) ProductoRepository {
	return &productoRepo{crud[model.Producto]{db: db}}
}
