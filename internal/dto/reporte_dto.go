package dto

import "github.com/shopspring/decimal"

type VentasMesResponse struct {
	Mes      string          `json:"mes"` // YYYY-MM
	Cantidad int             `json:"cantidad"`
	Total    decimal.Decimal `json:"total"`
	IGV      decimal.Decimal `json:"igv"`
}

type TopProductoResponse struct {
	Descripcion string          `json:"descripcion"`
	Cantidad    decimal.Decimal `json:"cantidad"`
	Total       decimal.Decimal `json:"total"`
}
