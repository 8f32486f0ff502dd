package dto

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ─── AI draft (input) ────────────────────────────────────────────────────────
// The extraction model answers best-effort JSON: every field may be missing,
// null, a number written as a string, or plain garbage. Numero and Texto
// absorb that at decode time so nothing downstream sees a raw value.

type BorradorIA struct {
	Cliente   *ClienteIA   `json:"cliente"`
	Productos []ProductoIA `json:"productos"`
	// Total is what the model read on the paper; never trusted over the recomputed sum.
	Total Numero `json:"total"`
}

type ClienteIA struct {
	Fecha    Texto `json:"fecha"` // DD/MM/YY or DD/MM/YYYY
	Cliente  Texto `json:"cliente"`
	DNI      Texto `json:"dni"`
	RUC      Texto `json:"ruc"`
	Telefono Texto `json:"telefono"`
}

type ProductoIA struct {
	ProductID    Texto  `json:"productId"`
	Cantidad     Numero `json:"cantidad"`
	UnidadMedida Texto  `json:"unidad_medida"`
	Descripcion  Texto  `json:"descripcion"`
	PrecioBase   Numero `json:"precio_base"`
	IGV          Numero `json:"igv"` // 18 or 0
	PrecioTotal  Numero `json:"precio_total"`
}

// Numero is an optional amount. Valido is false for null, missing or unparsable input.
type Numero struct {
	Valor  decimal.Decimal
	Valido bool
}

func NuevoNumero(d decimal.Decimal) Numero { return Numero{Valor: d, Valido: true} }

func (n *Numero) UnmarshalJSON(b []byte) error {
	*n = Numero{}
	s := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "S/."), "S/")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	*n = NuevoNumero(d)
	return nil
}

func (n Numero) MarshalJSON() ([]byte, error) {
	if !n.Valido {
		return []byte("null"), nil
	}
	return []byte(n.Valor.String()), nil
}

// Texto is an optional string. Numbers are accepted and kept verbatim; blank is absent.
type Texto struct {
	Valor  string
	Valido bool
}

func NuevoTexto(s string) Texto {
	s = strings.TrimSpace(s)
	return Texto{Valor: s, Valido: s != ""}
}

func (t *Texto) UnmarshalJSON(b []byte) error {
	*t = Texto{}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = NuevoTexto(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*t = NuevoTexto(num.String())
	}
	return nil
}

func (t Texto) MarshalJSON() ([]byte, error) {
	if !t.Valido {
		return []byte("null"), nil
	}
	return json.Marshal(t.Valor)
}

// ─── Merged draft (output) ───────────────────────────────────────────────────

// ItemBorrador is a form line prefilled from an extraction. Referencia is a
// temporary id the UI uses until the document is emitted.
type ItemBorrador struct {
	Referencia     string          `json:"referencia"`
	ProductoID     *string         `json:"producto_id"`
	Descripcion    string          `json:"descripcion"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	Unidad         string          `json:"unidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	TieneIGV       bool            `json:"tiene_igv"`
	Total          decimal.Decimal `json:"total"`
}

type BorradorComprobante struct {
	Fecha            string           `json:"fecha"` // YYYY-MM-DD
	ClienteID        *string          `json:"cliente_id"`
	ClienteNombre    string           `json:"cliente_nombre"`
	ClienteDocumento string           `json:"cliente_documento"`
	ClienteTelefono  *string          `json:"cliente_telefono"`
	Items            []ItemBorrador   `json:"items"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	IGV              decimal.Decimal  `json:"igv"`
	Total            decimal.Decimal  `json:"total"`
	TotalDeclarado   *decimal.Decimal `json:"total_declarado,omitempty"`
	// Discrepancia flags a declared total that differs from the recomputed one.
	Discrepancia bool `json:"discrepancia"`
}
