package repository

import (
	"context"

	"factumovil/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	ListByEmisor(ctx context.Context, emisorID uuid.UUID) ([]model.Cliente, error)
	Update(ctx context.Context, c *model.Cliente) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type clienteRepo struct {
	crud[model.Cliente]
}

func NewClienteRepository(db *gorm.DB) ClienteRepository {
	return &clienteRepo{crud[model.Cliente]{db: db}}
}
