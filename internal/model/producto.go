package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Unidades de medida accepted by SUNAT for this business.
const (
	UnidadUnidad    = "UNIDAD"
	UnidadKilogramo = "KILOGRAMO"
	UnidadCaja      = "CAJA"
	UnidadBolsa     = "BOLSA"
)

// Producto is a catalog entry owned by one emisor. Two products of the same
// emisor whose descriptions match case-insensitively are the same product.
type Producto struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EmisorID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Descripcion string          `gorm:"not null"`
	Unidad      string          `gorm:"type:varchar(20);not null"`
	PrecioBase  decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	// TieneIGV has no column default on purpose: gorm would replace a false
	// value with the default on insert.
	TieneIGV  bool `gorm:"not null;column:tiene_igv"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Producto) BeforeCreate(_ *gorm.DB) error {
	assignID(&p.ID)
	return nil
}
