package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearProductoRequest struct {
	EmisorID    string          `json:"emisor_id"   validate:"required,uuid"`
	Descripcion string          `json:"descripcion" validate:"required,max=250"`
	Unidad      string          `json:"unidad"      validate:"omitempty,oneof=UNIDAD KILOGRAMO CAJA BOLSA"`
	PrecioBase  decimal.Decimal `json:"precio_base" validate:"min=0"`
	// TieneIGV defaults to true when omitted.
	TieneIGV *bool `json:"tiene_igv"`
}

type ActualizarProductoRequest struct {
	Descripcion *string          `json:"descripcion" validate:"omitempty,max=250"`
	Unidad      *string          `json:"unidad"      validate:"omitempty,oneof=UNIDAD KILOGRAMO CAJA BOLSA"`
	PrecioBase  *decimal.Decimal `json:"precio_base"`
	TieneIGV    *bool            `json:"tiene_igv"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID          string          `json:"id"`
	EmisorID    string          `json:"emisor_id"`
	Descripcion string          `json:"descripcion"`
	Unidad      string          `json:"unidad"`
	PrecioBase  decimal.Decimal `json:"precio_base"`
	TieneIGV    bool            `json:"tiene_igv"`
}
