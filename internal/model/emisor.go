package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Emisor is the business that issues documents. SUNAT credentials are stored
// encrypted by the credential vault and never leave the backend in clear text
// except on the way to the SUNAT sidecar.
type Emisor struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre             string    `gorm:"not null"`
	RUC                string    `gorm:"type:varchar(11);uniqueIndex;not null;column:ruc"`
	SunatUserEncrypted string    `gorm:"type:text;column:sunat_user_encrypted"`
	SunatPassEncrypted string    `gorm:"type:text;column:sunat_pass_encrypted"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Emisor) TableName() string { return "emisores" }

func (e *Emisor) BeforeCreate(_ *gorm.DB) error {
	assignID(&e.ID)
	return nil
}
