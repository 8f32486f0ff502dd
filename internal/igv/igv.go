// Package igv computes Peruvian sales tax (IGV) totals and keeps a line's
// quantity, unit price, line total and tax flag consistent while one of them
// is edited. All arithmetic is exact decimal; callers round for display only.
package igv

import "github.com/shopspring/decimal"

var (
	// Tasa is the IGV rate.
	Tasa = decimal.RequireFromString("0.18")
	// Factor multiplies a taxable base into a gross amount.
	Factor = decimal.NewFromInt(1).Add(Tasa)
)

// Linea is the tax-relevant view of a document line.
type Linea struct {
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	TieneIGV       bool
	Total          decimal.Decimal
}

// Totales holds the document aggregates.
type Totales struct {
	Gravada   decimal.Decimal // taxable base
	Exonerada decimal.Decimal // exempt base
	IGV       decimal.Decimal
	Total     decimal.Decimal
}

// Subtotal is the pre-tax amount (taxable plus exempt).
func (t Totales) Subtotal() decimal.Decimal {
	return t.Gravada.Add(t.Exonerada)
}

// Calcular derives the aggregates from unit price times quantity of every line.
func Calcular(lineas []Linea) Totales {
	t := Totales{
		Gravada:   decimal.Zero,
		Exonerada: decimal.Zero,
	}
	for _, l := range lineas {
		base := l.Cantidad.Mul(l.PrecioUnitario)
		if l.TieneIGV {
			t.Gravada = t.Gravada.Add(base)
		} else {
			t.Exonerada = t.Exonerada.Add(base)
		}
	}
	t.IGV = t.Gravada.Mul(Tasa)
	t.Total = t.Gravada.Add(t.Exonerada).Add(t.IGV)
	return t
}

// EditarTotal fixes the line total and derives the unit price from it.
func EditarTotal(l Linea, total decimal.Decimal) Linea {
	l.Total = total
	l.PrecioUnitario = precioDesdeTotal(total, l.Cantidad, l.TieneIGV)
	return l
}

// EditarPrecioUnitario fixes the unit price and derives the line total.
func EditarPrecioUnitario(l Linea, precio decimal.Decimal) Linea {
	l.PrecioUnitario = precio
	l.Total = totalDesdePrecio(precio, l.Cantidad, l.TieneIGV)
	return l
}

// EditarCantidad keeps the unit price and recomputes the line total.
func EditarCantidad(l Linea, cantidad decimal.Decimal) Linea {
	l.Cantidad = cantidad
	l.Total = totalDesdePrecio(l.PrecioUnitario, cantidad, l.TieneIGV)
	return l
}

// CambiarIGV keeps the line total fixed and re-derives the unit price under
// the new tax flag.
func CambiarIGV(l Linea, tieneIGV bool) Linea {
	l.TieneIGV = tieneIGV
	l.PrecioUnitario = precioDesdeTotal(l.Total, l.Cantidad, tieneIGV)
	return l
}

func precioDesdeTotal(total, cantidad decimal.Decimal, tieneIGV bool) decimal.Decimal {
	if cantidad.IsZero() {
		return decimal.Zero
	}
	base := total
	if tieneIGV {
		base = total.Div(Factor)
	}
	return base.Div(cantidad)
}

func totalDesdePrecio(precio, cantidad decimal.Decimal, tieneIGV bool) decimal.Decimal {
	base := cantidad.Mul(precio)
	if tieneIGV {
		return base.Mul(Factor)
	}
	return base
}

// Redondear rounds a monetary amount to cents for display and wire payloads.
func Redondear(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
