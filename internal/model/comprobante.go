package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tipos de comprobante.
const (
	TipoBoleta      = "BOLETA"
	TipoFactura     = "FACTURA"
	TipoNotaCredito = "NOTA_CREDITO"
)

// Estados de comprobante.
const (
	EstadoBorrador   = "BORRADOR"
	EstadoProcesando = "PROCESANDO"
	EstadoAceptado   = "ACEPTADO"
	EstadoRechazado  = "RECHAZADO"
	EstadoAnulado    = "ANULADO"
	EstadoFallo      = "FALLO"
)

// MensajeTimeout is recorded on documents whose SUNAT task never finished.
const MensajeTimeout = "Timeout: la operación tardó demasiado"

// Series per document type.
const (
	SerieBoleta      = "B001"
	SerieFactura     = "F001"
	SerieNotaCredito = "NC01"
)

// Comprobante stores a sales document together with the client snapshot
// captured at emission, so deleting the client does not alter it.
type Comprobante struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EmisorID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_comprobante_numeracion,priority:1"`
	ClienteID        *uuid.UUID      `gorm:"type:uuid;index"`
	ClienteNombre    string          `gorm:"not null;default:''"`
	ClienteDocumento *string         `gorm:"type:varchar(11)"`
	Tipo             string          `gorm:"type:varchar(20);not null"`
	Serie            string          `gorm:"type:varchar(4);not null;uniqueIndex:idx_comprobante_numeracion,priority:2"`
	Numero           string          `gorm:"type:varchar(8);not null;uniqueIndex:idx_comprobante_numeracion,priority:3"`
	Fecha            time.Time       `gorm:"not null"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IGV              decimal.Decimal `gorm:"type:decimal(12,2);not null;column:igv"`
	Total            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado           string          `gorm:"type:varchar(20);not null;index"`
	TaskID           *string         `gorm:"type:varchar(64)"`
	// PDFBase64 is the proof returned by SUNAT, or generated locally for credit notes.
	PDFBase64    *string `gorm:"type:text;column:pdf_base64"`
	PDFNombre    *string `gorm:"column:pdf_nombre"`
	SunatMensaje *string
	// ComprobanteReferencia is "<serie>-<numero>" of the reversed document (credit notes only).
	ComprobanteReferencia *string `gorm:"type:varchar(20)"`
	MotivoCodigo          *string `gorm:"type:varchar(2)"`
	CreatedAt             time.Time
	UpdatedAt             time.Time

	Items []ComprobanteItem `gorm:"foreignKey:ComprobanteID;constraint:OnDelete:CASCADE"`
}

func (c *Comprobante) BeforeCreate(_ *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// SerieNumero formats the document identity as printed on the proof.
func (c *Comprobante) SerieNumero() string {
	return c.Serie + "-" + c.Numero
}

// ComprobanteItem is one line of a Comprobante. ProductoID is nil for free-text lines.
type ComprobanteItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ComprobanteID  uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductoID     *uuid.UUID      `gorm:"type:uuid"`
	Descripcion    string          `gorm:"not null"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Unidad         string          `gorm:"type:varchar(20);not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(14,6);not null"`
	TieneIGV       bool            `gorm:"not null;column:tiene_igv"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (i *ComprobanteItem) BeforeCreate(_ *gorm.DB) error {
	assignID(&i.ID)
	return nil
}
