package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cliente is a buyer known to an emisor. Either document may be missing;
// walk-in buyers are registered by name only.
type Cliente struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmisorID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Nombre    string    `gorm:"not null"`
	DNI       *string   `gorm:"type:varchar(8);index;column:dni"`
	RUC       *string   `gorm:"type:varchar(11);index;column:ruc"`
	Telefono  *string   `gorm:"type:varchar(20)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Cliente) BeforeCreate(_ *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Documento returns the RUC when present, else the DNI, else "".
func (c *Cliente) Documento() string {
	if c.RUC != nil && *c.RUC != "" {
		return *c.RUC
	}
	if c.DNI != nil {
		return *c.DNI
	}
	return ""
}
