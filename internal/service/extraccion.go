package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/igv"
	"factumovil/internal/infra"
	"factumovil/internal/model"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// Extractor reads a draft document out of a photo or a voice note.
// Satisfied by *infra.Extractor.
type Extractor interface {
	ExtraerImagen(ctx context.Context, imagen []byte, mimeType string, catalogo []model.Producto) (*dto.BorradorIA, error)
	ExtraerAudio(ctx context.Context, audio []byte, formato string, catalogo []model.Producto) (*dto.BorradorIA, error)
}

// ErrExtraccionDeshabilitada is returned when no model is configured.
var ErrExtraccionDeshabilitada = errors.New("extraccion con IA deshabilitada")

// toleranciaDiscrepancia is how far the declared total may drift from the recomputed one.
var toleranciaDiscrepancia = decimal.RequireFromString("0.01")

// Fusionador maps an AI draft onto the emission form. It only looks the
// catalog up; records are created when the form is submitted.
type Fusionador struct {
	conciliador *Conciliador
	clock       clockwork.Clock
}

func NewFusionador(conciliador *Conciliador, clock clockwork.Clock) *Fusionador {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Fusionador{conciliador: conciliador, clock: clock}
}

// Fusionar builds the prefilled form. Totals are always recomputed from the
// lines; the draft's own total only raises Discrepancia.
func (f *Fusionador) Fusionar(cat *Catalogo, b *dto.BorradorIA) *dto.BorradorComprobante {
	out := &dto.BorradorComprobante{
		Fecha: fechaDe(f.clock.Now()).Format(time.DateOnly),
		Items: make([]dto.ItemBorrador, 0, len(b.Productos)),
	}

	if c := b.Cliente; c != nil {
		if fecha, ok := parseFechaBorrador(c.Fecha.Valor); ok {
			out.Fecha = fecha.Format(time.DateOnly)
		}
		out.ClienteNombre = c.Cliente.Valor
		out.ClienteDocumento = c.DNI.Valor
		if out.ClienteDocumento == "" {
			out.ClienteDocumento = c.RUC.Valor
		}
		if c.Telefono.Valido {
			tel := c.Telefono.Valor
			out.ClienteTelefono = &tel
		}
		if cl := f.conciliador.EmparejarCliente(cat, nil, out.ClienteDocumento); cl != nil {
			id := cl.ID.String()
			out.ClienteID = &id
			if out.ClienteNombre == "" {
				out.ClienteNombre = cl.Nombre
			}
		}
	}

	lineas := make([]igv.Linea, 0, len(b.Productos))
	for _, p := range b.Productos {
		item, linea := f.fusionarItem(cat, p)
		out.Items = append(out.Items, item)
		lineas = append(lineas, linea)
	}

	tot := igv.Calcular(lineas)
	out.Subtotal = igv.Redondear(tot.Subtotal())
	out.IGV = igv.Redondear(tot.IGV)
	out.Total = out.Subtotal.Add(out.IGV)
	if b.Total.Valido {
		declarado := b.Total.Valor
		out.TotalDeclarado = &declarado
		out.Discrepancia = declarado.Sub(out.Total).Abs().GreaterThan(toleranciaDiscrepancia)
	}
	return out
}

func (f *Fusionador) fusionarItem(cat *Catalogo, p dto.ProductoIA) (dto.ItemBorrador, igv.Linea) {
	cantidad := decimal.NewFromInt(1)
	if p.Cantidad.Valido && p.Cantidad.Valor.IsPositive() {
		cantidad = p.Cantidad.Valor
	}
	l := igv.Linea{
		Cantidad: cantidad,
		TieneIGV: !p.IGV.Valido || !p.IGV.Valor.IsZero(),
	}
	item := dto.ItemBorrador{
		Referencia:  "ia-" + uuid.NewString(),
		Descripcion: p.Descripcion.Valor,
		Unidad:      mapearUnidad(p.UnidadMedida.Valor),
	}

	var id *uuid.UUID
	if p.ProductID.Valido {
		if parsed, err := uuid.Parse(p.ProductID.Valor); err == nil {
			id = &parsed
		}
	}
	precio := decimal.Zero
	if p.PrecioBase.Valido {
		precio = p.PrecioBase.Valor
	}
	if prod := f.conciliador.EmparejarProducto(cat, id, p.Descripcion.Valor); prod != nil {
		pid := prod.ID.String()
		item.ProductoID = &pid
		item.Descripcion = prod.Descripcion
		item.Unidad = prod.Unidad
		precio = prod.PrecioBase
		l.TieneIGV = prod.TieneIGV
	}

	if p.PrecioTotal.Valido && p.PrecioTotal.Valor.IsPositive() {
		l = igv.EditarTotal(l, p.PrecioTotal.Valor)
	} else {
		l = igv.EditarPrecioUnitario(l, precio)
	}

	item.Cantidad = l.Cantidad
	item.PrecioUnitario = l.PrecioUnitario.Round(6)
	item.TieneIGV = l.TieneIGV
	item.Total = igv.Redondear(l.Total)
	return item, l
}

// mapearUnidad folds the model's free-text unit onto the known set.
func mapearUnidad(u string) string {
	switch s := strings.ToUpper(strings.TrimSpace(u)); {
	case strings.HasPrefix(s, "KG"), strings.HasPrefix(s, "KILO"):
		return model.UnidadKilogramo
	case strings.HasPrefix(s, "CAJA"):
		return model.UnidadCaja
	case strings.HasPrefix(s, "BOLSA"):
		return model.UnidadBolsa
	}
	return model.UnidadUnidad
}

// parseFechaBorrador reads DD/MM/YY or DD/MM/YYYY.
func parseFechaBorrador(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"02/01/2006", "2/1/2006", "02/01/06", "2/1/06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ── Service ───────────────────────────────────────────────────────────────────

type ExtraccionService interface {
	DesdeImagen(ctx context.Context, emisorID uuid.UUID, imagen []byte, mimeType string) (*dto.BorradorComprobante, error)
	DesdeAudio(ctx context.Context, emisorID uuid.UUID, audio []byte, formato string) (*dto.BorradorComprobante, error)
}

type extraccionService struct {
	extractor   Extractor
	conciliador *Conciliador
	fusionador  *Fusionador
}

func NewExtraccionService(extractor Extractor, conciliador *Conciliador, fusionador *Fusionador) ExtraccionService {
	return &extraccionService{extractor: extractor, conciliador: conciliador, fusionador: fusionador}
}

func (s *extraccionService) DesdeImagen(ctx context.Context, emisorID uuid.UUID, imagen []byte, mimeType string) (*dto.BorradorComprobante, error) {
	return s.extraer(ctx, emisorID, func(cat []model.Producto) (*dto.BorradorIA, error) {
		return s.extractor.ExtraerImagen(ctx, imagen, mimeType, cat)
	})
}

func (s *extraccionService) DesdeAudio(ctx context.Context, emisorID uuid.UUID, audio []byte, formato string) (*dto.BorradorComprobante, error) {
	return s.extraer(ctx, emisorID, func(cat []model.Producto) (*dto.BorradorIA, error) {
		return s.extractor.ExtraerAudio(ctx, audio, formato, cat)
	})
}

func (s *extraccionService) extraer(ctx context.Context, emisorID uuid.UUID, llamar func([]model.Producto) (*dto.BorradorIA, error)) (*dto.BorradorComprobante, error) {
	cat, err := s.conciliador.CargarCatalogo(ctx, emisorID)
	if err != nil {
		return nil, err
	}
	borrador, err := llamar(cat.Productos())
	if err != nil {
		if errors.Is(err, infra.ErrExtractorDisabled) {
			return nil, ErrExtraccionDeshabilitada
		}
		return nil, err
	}
	return s.fusionador.Fusionar(cat, borrador), nil
}
