package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemComprobanteRequest struct {
	ProductoID     *string         `json:"producto_id"     validate:"omitempty,uuid"`
	Descripcion    string          `json:"descripcion"     validate:"max=250"`
	Cantidad       decimal.Decimal `json:"cantidad"        validate:"min=0"`
	Unidad         string          `json:"unidad"          validate:"omitempty,oneof=UNIDAD KILOGRAMO CAJA BOLSA"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"min=0"`
	TieneIGV       bool            `json:"tiene_igv"`
	Total          decimal.Decimal `json:"total"           validate:"min=0"`
}

// EmitirComprobanteRequest is the confirmed form. The client is given either
// by catalog id or by document number plus name; totals are always
// recomputed server side.
type EmitirComprobanteRequest struct {
	EmisorID         string                   `json:"emisor_id"         validate:"required,uuid"`
	Tipo             string                   `json:"tipo"              validate:"required,oneof=BOLETA FACTURA"`
	Fecha            string                   `json:"fecha"             validate:"omitempty,datetime=2006-01-02"`
	ClienteID        *string                  `json:"cliente_id"        validate:"omitempty,uuid"`
	ClienteDocumento string                   `json:"cliente_documento" validate:"max=11"`
	ClienteNombre    string                   `json:"cliente_nombre"    validate:"max=200"`
	ClienteTelefono  *string                  `json:"cliente_telefono"  validate:"omitempty,max=20"`
	ClienteEmail     *string                  `json:"cliente_email"     validate:"omitempty,email"`
	Items            []ItemComprobanteRequest `json:"items"             validate:"dive"`
}

type NotaCreditoRequest struct {
	Motivo string `json:"motivo" validate:"required,oneof=01 02 03 06"`
}

type ComprobanteFilter struct {
	EmisorID string `form:"emisor_id" validate:"required,uuid"`
	Tipo     string `form:"tipo"      validate:"omitempty,oneof=BOLETA FACTURA NOTA_CREDITO"`
	Estado   string `form:"estado"`
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemComprobanteResponse struct {
	ProductoID     *string         `json:"producto_id"`
	Descripcion    string          `json:"descripcion"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	Unidad         string          `json:"unidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	TieneIGV       bool            `json:"tiene_igv"`
	Total          decimal.Decimal `json:"total"`
}

type ComprobanteResponse struct {
	ID                    string                    `json:"id"`
	EmisorID              string                    `json:"emisor_id"`
	ClienteID             *string                   `json:"cliente_id"`
	ClienteNombre         string                    `json:"cliente_nombre"`
	ClienteDocumento      *string                   `json:"cliente_documento"`
	Tipo                  string                    `json:"tipo"`
	Serie                 string                    `json:"serie"`
	Numero                string                    `json:"numero"`
	Fecha                 string                    `json:"fecha"`
	Subtotal              decimal.Decimal           `json:"subtotal"`
	IGV                   decimal.Decimal           `json:"igv"`
	Total                 decimal.Decimal           `json:"total"`
	Estado                string                    `json:"estado"`
	TaskID                *string                   `json:"task_id,omitempty"`
	SunatMensaje          *string                   `json:"sunat_mensaje,omitempty"`
	ComprobanteReferencia *string                   `json:"comprobante_referencia,omitempty"`
	MotivoCodigo          *string                   `json:"motivo_codigo,omitempty"`
	PDFUrl                *string                   `json:"pdf_url,omitempty"`
	Items                 []ItemComprobanteResponse `json:"items"`
	CreatedAt             string                    `json:"created_at"`
}

type ComprobanteListResponse struct {
	Data  []ComprobanteResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// ValidacionResponse mirrors the sidecar's pre-validation answer.
type ValidacionResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
