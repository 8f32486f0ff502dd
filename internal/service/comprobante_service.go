package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/igv"
	"factumovil/internal/infra"
	"factumovil/internal/model"
	"factumovil/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DespachadorEmision queues a stored document for background emission.
type DespachadorEmision interface {
	EncolarEmision(ctx context.Context, comprobanteID uuid.UUID, clienteEmail *string) error
}

type ComprobanteService interface {
	Emitir(ctx context.Context, req dto.EmitirComprobanteRequest) (*dto.ComprobanteResponse, error)
	// ProcesarEmision runs the SUNAT exchange for a stored PROCESANDO document.
	ProcesarEmision(ctx context.Context, id uuid.UUID) (*model.Comprobante, error)
	PreValidar(ctx context.Context, req dto.EmitirComprobanteRequest) (*dto.ValidacionResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ComprobanteResponse, error)
	Listar(ctx context.Context, filter dto.ComprobanteFilter) (*dto.ComprobanteListResponse, error)
	ObtenerPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error)
	EmitirNotaCredito(ctx context.Context, id uuid.UUID, req dto.NotaCreditoRequest) (*dto.ComprobanteResponse, error)
}

// intentosNumeracion bounds retries when a concurrent emission takes the same number.
const intentosNumeracion = 3

const digitosComprobante = 8

type comprobanteService struct {
	repo        repository.ComprobanteRepository
	emisores    repository.EmisorRepository
	clientes    repository.ClienteRepository
	conciliador *Conciliador
	orquestador *Orquestador
	gateway     SunatGateway
	boveda      Boveda
	despachador DespachadorEmision
	clock       clockwork.Clock
	log         zerolog.Logger
}

// NewComprobanteService wires the emission pipeline. With a nil despachador
// documents are emitted inline and Emitir returns the terminal state.
func NewComprobanteService(
	repo repository.ComprobanteRepository,
	emisores repository.EmisorRepository,
	clientes repository.ClienteRepository,
	conciliador *Conciliador,
	orquestador *Orquestador,
	gateway SunatGateway,
	boveda Boveda,
	despachador DespachadorEmision,
	clock clockwork.Clock,
) ComprobanteService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &comprobanteService{
		repo:        repo,
		emisores:    emisores,
		clientes:    clientes,
		conciliador: conciliador,
		orquestador: orquestador,
		gateway:     gateway,
		boveda:      boveda,
		despachador: despachador,
		clock:       clock,
		log:         infra.Componente("comprobantes"),
	}
}

// ── Emitir ────────────────────────────────────────────────────────────────────
//   1. Validate the form (nothing is written on failure)
//   2. Load the catalog snapshot and check the client against it
//   3. Reconcile client and products, creating what is missing
//   4. Recompute totals and take the next number of the series
//   5. Store as PROCESANDO
//   6. Queue for emission, or emit inline when there is no queue

func (s *comprobanteService) Emitir(ctx context.Context, req dto.EmitirComprobanteRequest) (*dto.ComprobanteResponse, error) {
	// 1.
	if verr := validarFormulario(req); verr != nil {
		return nil, verr
	}
	emisorID, _ := uuid.Parse(req.EmisorID)
	emisor, err := s.emisores.FindByID(ctx, emisorID)
	if err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}
	fecha, err := s.fechaEmision(req.Fecha)
	if err != nil {
		return nil, err
	}

	// 2.
	cat, err := s.conciliador.CargarCatalogo(ctx, emisor.ID)
	if err != nil {
		return nil, err
	}
	refCliente, verr := validarCliente(req, cat)
	if verr != nil {
		return nil, verr
	}

	// 3.
	cliente, err := s.conciliador.ResolverCliente(ctx, cat, refCliente)
	if err != nil {
		return nil, err
	}
	refs := make([]ReferenciaProducto, len(req.Items))
	for i, it := range req.Items {
		refs[i] = ReferenciaProducto{
			ID:          parseUUIDOpcional(it.ProductoID),
			Descripcion: it.Descripcion,
			Unidad:      unidadOPorDefecto(it.Unidad),
			PrecioBase:  it.PrecioUnitario,
			TieneIGV:    it.TieneIGV,
		}
	}
	productoIDs, err := s.conciliador.ResolverProductos(ctx, cat, refs)
	if err != nil {
		return nil, err
	}

	// 4.
	base := armarComprobante(emisor.ID, req, fecha, productoIDs)
	base.ClienteNombre = strings.TrimSpace(refCliente.Nombre)
	if doc := strings.TrimSpace(refCliente.Documento); tipoDocumento(doc) != docNinguno {
		base.ClienteDocumento = &doc
	}
	if cliente != nil {
		id := cliente.ID
		base.ClienteID = &id
		if base.ClienteNombre == "" {
			base.ClienteNombre = cliente.Nombre
		}
		if base.ClienteDocumento == nil {
			if doc := cliente.Documento(); doc != "" {
				base.ClienteDocumento = &doc
			}
		}
	}

	// 5.
	serie := model.SerieBoleta
	if base.Tipo == model.TipoFactura {
		serie = model.SerieFactura
	}
	comp, err := s.crearNumerado(ctx, func() (*model.Comprobante, error) {
		n, err := s.repo.SiguienteNumero(ctx, emisor.ID, serie)
		if err != nil {
			return nil, err
		}
		c := *base
		c.Items = append([]model.ComprobanteItem(nil), base.Items...)
		c.Serie = serie
		c.Numero = formatNumero(n, digitosComprobante)
		return &c, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("comprobante_id", comp.ID.String()).Str("serie_numero", comp.SerieNumero()).Msg("comprobante registrado")

	// 6.
	if s.despachador != nil {
		if err := s.despachador.EncolarEmision(ctx, comp.ID, req.ClienteEmail); err != nil {
			// Stays PROCESANDO; the sweeper closes it as FALLO.
			s.log.Error().Err(err).Str("comprobante_id", comp.ID.String()).Msg("no se pudo encolar la emision")
		}
		return comprobanteToResponse(comp), nil
	}
	final, err := s.ProcesarEmision(ctx, comp.ID)
	if final == nil {
		return nil, err
	}
	// Terminal SUNAT outcomes are reported through Estado and SunatMensaje.
	var sub *SubmissionError
	var tout *TaskTimeoutError
	if err != nil && !errors.As(err, &sub) && !errors.As(err, &tout) {
		return nil, err
	}
	return comprobanteToResponse(final), nil
}

// crearNumerado stores the document armar builds. armar runs again, taking
// a fresh number, when another emission stored the same one first.
func (s *comprobanteService) crearNumerado(ctx context.Context, armar func() (*model.Comprobante, error)) (*model.Comprobante, error) {
	for intento := 1; ; intento++ {
		comp, err := armar()
		if err != nil {
			return nil, err
		}
		err = s.repo.Create(ctx, comp)
		if err == nil {
			return comp, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) || intento == intentosNumeracion {
			return nil, fmt.Errorf("guardando comprobante: %w", err)
		}
		s.log.Warn().Str("serie_numero", comp.SerieNumero()).Int("intento", intento).Msg("numero ocupado, reintentando")
	}
}

func (s *comprobanteService) ProcesarEmision(ctx context.Context, id uuid.UUID) (*model.Comprobante, error) {
	comp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, ErrComprobanteNoEncontrado)
	}
	if comp.Estado != model.EstadoProcesando {
		// Redelivered job; the document already reached a terminal state.
		return comp, nil
	}
	emisor, err := s.emisores.FindByID(ctx, comp.EmisorID)
	if err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}
	cred := descifrarCredenciales(s.boveda, emisor)
	var cliente *model.Cliente
	if comp.ClienteID != nil {
		cliente, err = s.clientes.FindByID(ctx, *comp.ClienteID)
		if err != nil {
			// The stored snapshot still names the client.
			s.log.Warn().Err(err).Str("comprobante_id", comp.ID.String()).Msg("cliente no disponible, usando copia del comprobante")
			cliente = nil
		}
	}
	// Keep the sweeper off a document that sat in the queue.
	if err := s.repo.MarcarEnCurso(ctx, comp.ID, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("marcando emision en curso: %w", err)
	}

	emErr := s.orquestador.Emitir(ctx, comp, cliente, cred)
	if errors.Is(emErr, context.Canceled) || errors.Is(emErr, context.DeadlineExceeded) {
		return comp, emErr
	}
	if err := s.repo.Update(ctx, comp); err != nil {
		return nil, fmt.Errorf("guardando resultado de emision: %w", err)
	}
	return comp, emErr
}

// PreValidar asks the sidecar to check the document without numbering or storing it.
func (s *comprobanteService) PreValidar(ctx context.Context, req dto.EmitirComprobanteRequest) (*dto.ValidacionResponse, error) {
	if verr := validarFormulario(req); verr != nil {
		return nil, verr
	}
	emisorID, _ := uuid.Parse(req.EmisorID)
	emisor, err := s.emisores.FindByID(ctx, emisorID)
	if err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}
	fecha, err := s.fechaEmision(req.Fecha)
	if err != nil {
		return nil, err
	}
	cat, err := s.conciliador.CargarCatalogo(ctx, emisor.ID)
	if err != nil {
		return nil, err
	}
	ref, verr := validarCliente(req, cat)
	if verr != nil {
		return nil, verr
	}
	cred := descifrarCredenciales(s.boveda, emisor)

	comp := armarComprobante(emisor.ID, req, fecha, make([]*uuid.UUID, len(req.Items)))
	comp.ClienteNombre = ref.Nombre
	comp.Serie = model.SerieBoleta
	if comp.Tipo == model.TipoFactura {
		comp.Serie = model.SerieFactura
	}
	comp.Numero = formatNumero(0, digitosComprobante)
	cliente := s.conciliador.EmparejarCliente(cat, ref.ID, ref.Documento)
	if cliente == nil {
		if doc := strings.TrimSpace(ref.Documento); doc != "" {
			comp.ClienteDocumento = &doc
		}
	}

	res, err := s.gateway.Validar(ctx, ConstruirSolicitud(comp, cliente, cred))
	if err != nil {
		return nil, &SubmissionError{Mensaje: err.Error(), Err: err}
	}
	return &dto.ValidacionResponse{Valid: res.Valid, Errors: res.Errors, Warnings: res.Warnings}, nil
}

func (s *comprobanteService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ComprobanteResponse, error) {
	comp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, ErrComprobanteNoEncontrado)
	}
	return comprobanteToResponse(comp), nil
}

func (s *comprobanteService) Listar(ctx context.Context, filter dto.ComprobanteFilter) (*dto.ComprobanteListResponse, error) {
	comps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ComprobanteResponse, 0, len(comps))
	for i := range comps {
		data = append(data, *comprobanteToResponse(&comps[i]))
	}
	return &dto.ComprobanteListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ObtenerPDF returns the decoded proof and its file name.
func (s *comprobanteService) ObtenerPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	comp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", noEncontrado(err, ErrComprobanteNoEncontrado)
	}
	if comp.PDFBase64 == nil || *comp.PDFBase64 == "" {
		return nil, "", ErrPDFNoDisponible
	}
	pdf, err := base64.StdEncoding.DecodeString(*comp.PDFBase64)
	if err != nil {
		return nil, "", fmt.Errorf("PDF corrupto: %w", err)
	}
	nombre := comp.SerieNumero() + ".pdf"
	if comp.PDFNombre != nil && *comp.PDFNombre != "" {
		nombre = *comp.PDFNombre
	}
	return pdf, nombre, nil
}

// EmitirNotaCredito reverses an accepted document. The note is numbered in
// NC01, gets a locally generated PDF and is accepted on creation. The
// original keeps its state.
func (s *comprobanteService) EmitirNotaCredito(ctx context.Context, id uuid.UUID, req dto.NotaCreditoRequest) (*dto.ComprobanteResponse, error) {
	orig, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, ErrComprobanteNoEncontrado)
	}
	existe, err := s.repo.ExisteNotaCredito(ctx, orig.EmisorID, orig.SerieNumero())
	if err != nil {
		return nil, err
	}
	if existe {
		return nil, NewValidationError("comprobante", "El comprobante ya tiene una nota de crédito")
	}
	emisor, err := s.emisores.FindByID(ctx, orig.EmisorID)
	if err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}

	nc, err := s.crearNumerado(ctx, func() (*model.Comprobante, error) {
		n, err := s.repo.ContarNotasCredito(ctx, orig.EmisorID)
		if err != nil {
			return nil, err
		}
		nc, err := DerivarNotaCredito(orig, req.Motivo, n, s.clock.Now())
		if err != nil {
			return nil, err
		}
		pdf, err := infra.GenerarNotaCreditoPDF(nc, emisor)
		if err != nil {
			return nil, fmt.Errorf("generando PDF: %w", err)
		}
		contenido := base64.StdEncoding.EncodeToString(pdf)
		nombre := nc.SerieNumero() + ".pdf"
		nc.PDFBase64 = &contenido
		nc.PDFNombre = &nombre
		return nc, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("comprobante_id", nc.ID.String()).Str("referencia", orig.SerieNumero()).Msg("nota de credito emitida")
	return comprobanteToResponse(nc), nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

// validarFormulario checks what can be checked without the catalog.
func validarFormulario(req dto.EmitirComprobanteRequest) *ValidationError {
	verr := &ValidationError{}
	if len(req.Items) == 0 {
		verr.Add("items", "Agrega al menos un producto")
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Descripcion) == "" && it.ProductoID == nil {
			verr.Add(fmt.Sprintf("items[%d].descripcion", i), "Falta la descripción")
		}
		if !it.Total.IsPositive() {
			verr.Add(fmt.Sprintf("items[%d].total", i), "El total debe ser mayor a 0")
		} else if it.Total.Sub(totalLinea(it)).Abs().GreaterThan(toleranciaDiscrepancia) {
			verr.Add(fmt.Sprintf("items[%d].total", i), "El total no coincide con cantidad por precio unitario")
		}
	}
	doc := strings.TrimSpace(req.ClienteDocumento)
	if doc != "" && tipoDocumento(doc) == docNinguno {
		verr.Add("cliente_documento", "El documento debe ser un DNI de 8 dígitos o un RUC de 11")
	}
	if req.Tipo == model.TipoFactura && doc != "" && tipoDocumento(doc) != docRUC {
		verr.Add("cliente_documento", "La factura requiere un RUC de 11 dígitos")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// validarCliente completes the client reference from the snapshot and
// rejects a form whose client cannot be identified.
func validarCliente(req dto.EmitirComprobanteRequest, cat *Catalogo) (ReferenciaCliente, *ValidationError) {
	ref := ReferenciaCliente{
		ID:        parseUUIDOpcional(req.ClienteID),
		Documento: strings.TrimSpace(req.ClienteDocumento),
		Nombre:    strings.TrimSpace(req.ClienteNombre),
		Telefono:  req.ClienteTelefono,
	}
	var conocido *model.Cliente
	if ref.ID != nil {
		conocido = cat.ClientePorID(*ref.ID)
	}
	if conocido == nil && ref.Documento != "" {
		conocido = cat.ClientePorDocumento(ref.Documento)
	}

	verr := &ValidationError{}
	if ref.Nombre == "" && conocido == nil {
		verr.Add("cliente_nombre", "Ingresa el nombre del cliente")
	}
	if req.Tipo == model.TipoFactura {
		ruc := ""
		if tipoDocumento(ref.Documento) == docRUC {
			ruc = ref.Documento
		} else if conocido != nil && conocido.RUC != nil {
			ruc = *conocido.RUC
		}
		if ruc == "" {
			verr.Add("cliente_documento", "La factura requiere un RUC de 11 dígitos")
		}
	}
	if !verr.Empty() {
		return ref, verr
	}
	if ref.Nombre == "" {
		ref.Nombre = conocido.Nombre
	}
	return ref, nil
}

// totalLinea derives the line total from quantity and unit price.
func totalLinea(it dto.ItemComprobanteRequest) decimal.Decimal {
	l := igv.Linea{Cantidad: it.Cantidad, TieneIGV: it.TieneIGV}
	return igv.EditarPrecioUnitario(l, it.PrecioUnitario).Total
}

// armarComprobante builds the unnumbered document. Line totals are derived
// from quantity and unit price; the header is recomputed and rounded to cents.
func armarComprobante(emisorID uuid.UUID, req dto.EmitirComprobanteRequest, fecha time.Time, productoIDs []*uuid.UUID) *model.Comprobante {
	lineas := make([]igv.Linea, len(req.Items))
	items := make([]model.ComprobanteItem, len(req.Items))
	for i, it := range req.Items {
		lineas[i] = igv.Linea{Cantidad: it.Cantidad, PrecioUnitario: it.PrecioUnitario, TieneIGV: it.TieneIGV}
		items[i] = model.ComprobanteItem{
			ProductoID:     productoIDs[i],
			Descripcion:    strings.TrimSpace(it.Descripcion),
			Cantidad:       it.Cantidad,
			Unidad:         unidadOPorDefecto(it.Unidad),
			PrecioUnitario: it.PrecioUnitario,
			TieneIGV:       it.TieneIGV,
			Total:          igv.Redondear(totalLinea(it)),
		}
	}
	tot := igv.Calcular(lineas)
	subtotal := igv.Redondear(tot.Subtotal())
	impuesto := igv.Redondear(tot.IGV)
	return &model.Comprobante{
		EmisorID: emisorID,
		Tipo:     req.Tipo,
		Fecha:    fecha,
		Subtotal: subtotal,
		IGV:      impuesto,
		Total:    subtotal.Add(impuesto),
		Estado:   model.EstadoProcesando,
		Items:    items,
	}
}

// fechaEmision parses the form date, defaulting to today in Peru.
func (s *comprobanteService) fechaEmision(fecha string) (time.Time, error) {
	if strings.TrimSpace(fecha) == "" {
		return fechaDe(s.clock.Now()), nil
	}
	t, err := time.Parse(time.DateOnly, fecha)
	if err != nil {
		return time.Time{}, NewValidationError("fecha", "Fecha inválida")
	}
	return t, nil
}

func unidadOPorDefecto(u string) string {
	switch u {
	case model.UnidadUnidad, model.UnidadKilogramo, model.UnidadCaja, model.UnidadBolsa:
		return u
	}
	return model.UnidadUnidad
}

func parseUUIDOpcional(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func comprobanteToResponse(c *model.Comprobante) *dto.ComprobanteResponse {
	resp := &dto.ComprobanteResponse{
		ID:                    c.ID.String(),
		EmisorID:              c.EmisorID.String(),
		ClienteNombre:         c.ClienteNombre,
		ClienteDocumento:      c.ClienteDocumento,
		Tipo:                  c.Tipo,
		Serie:                 c.Serie,
		Numero:                c.Numero,
		Fecha:                 c.Fecha.Format(time.DateOnly),
		Subtotal:              c.Subtotal,
		IGV:                   c.IGV,
		Total:                 c.Total,
		Estado:                c.Estado,
		TaskID:                c.TaskID,
		SunatMensaje:          c.SunatMensaje,
		ComprobanteReferencia: c.ComprobanteReferencia,
		MotivoCodigo:          c.MotivoCodigo,
		Items:                 make([]dto.ItemComprobanteResponse, 0, len(c.Items)),
		CreatedAt:             c.CreatedAt.Format(time.RFC3339),
	}
	if c.ClienteID != nil {
		id := c.ClienteID.String()
		resp.ClienteID = &id
	}
	if c.PDFBase64 != nil && *c.PDFBase64 != "" {
		u := "/v1/comprobantes/" + c.ID.String() + "/pdf"
		resp.PDFUrl = &u
	}
	for _, it := range c.Items {
		item := dto.ItemComprobanteResponse{
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			Unidad:         it.Unidad,
			PrecioUnitario: it.PrecioUnitario,
			TieneIGV:       it.TieneIGV,
			Total:          it.Total,
		}
		if it.ProductoID != nil {
			id := it.ProductoID.String()
			item.ProductoID = &id
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}
