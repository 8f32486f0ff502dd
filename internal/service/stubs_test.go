package service_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/infra"
	"factumovil/internal/model"
	"factumovil/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── In-memory EmisorRepository stub ──────────────────────────────────────────

type stubEmisorRepo struct {
	mu       sync.Mutex
	emisores map[uuid.UUID]*model.Emisor
	findErr  error
}

func newStubEmisorRepo() *stubEmisorRepo {
	return &stubEmisorRepo{emisores: make(map[uuid.UUID]*model.Emisor)}
}

func (r *stubEmisorRepo) Create(_ context.Context, e *model.Emisor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.emisores {
		if x.RUC == e.RUC {
			return gorm.ErrDuplicatedKey
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	cloned := *e
	r.emisores[e.ID] = &cloned
	return nil
}

func (r *stubEmisorRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Emisor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	e, ok := r.emisores[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *e
	return &cloned, nil
}

func (r *stubEmisorRepo) List(_ context.Context) ([]model.Emisor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Emisor, 0, len(r.emisores))
	for _, e := range r.emisores {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RUC < out[j].RUC })
	return out, nil
}

func (r *stubEmisorRepo) Update(_ context.Context, e *model.Emisor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *e
	r.emisores[e.ID] = &cloned
	return nil
}

func (r *stubEmisorRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emisores[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.emisores, id)
	return nil
}

var _ repository.EmisorRepository = (*stubEmisorRepo)(nil)

// ── In-memory ProductoRepository stub ────────────────────────────────────────

type stubProductoRepo struct {
	mu        sync.Mutex
	productos map[uuid.UUID]*model.Producto
	creados   int
	failWith  error
}

func newStubProductoRepo() *stubProductoRepo {
	return &stubProductoRepo{productos: make(map[uuid.UUID]*model.Producto)}
}

func (r *stubProductoRepo) Create(_ context.Context, p *model.Producto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.creados++
	cloned := *p
	r.productos[p.ID] = &cloned
	return nil
}

func (r *stubProductoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.productos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *p
	return &cloned, nil
}

func (r *stubProductoRepo) ListByEmisor(_ context.Context, emisorID uuid.UUID) ([]model.Producto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Producto
	for _, p := range r.productos {
		if p.EmisorID == emisorID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descripcion < out[j].Descripcion })
	return out, nil
}

func (r *stubProductoRepo) Update(_ context.Context, p *model.Producto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *p
	r.productos[p.ID] = &cloned
	return nil
}

func (r *stubProductoRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.productos[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.productos, id)
	return nil
}

func (r *stubProductoRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creados
}

var _ repository.ProductoRepository = (*stubProductoRepo)(nil)

// ── In-memory ClienteRepository stub ─────────────────────────────────────────

type stubClienteRepo struct {
	mu       sync.Mutex
	clientes map[uuid.UUID]*model.Cliente
	creados  int
	failWith error
	findErr  error
}

func newStubClienteRepo() *stubClienteRepo {
	return &stubClienteRepo{clientes: make(map[uuid.UUID]*model.Cliente)}
}

func (r *stubClienteRepo) Create(_ context.Context, c *model.Cliente) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.creados++
	cloned := *c
	r.clientes[c.ID] = &cloned
	return nil
}

func (r *stubClienteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Cliente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	c, ok := r.clientes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cloned := *c
	return &cloned, nil
}

func (r *stubClienteRepo) ListByEmisor(_ context.Context, emisorID uuid.UUID) ([]model.Cliente, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Cliente
	for _, c := range r.clientes {
		if c.EmisorID == emisorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubClienteRepo) Update(_ context.Context, c *model.Cliente) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *c
	r.clientes[c.ID] = &cloned
	return nil
}

func (r *stubClienteRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clientes[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.clientes, id)
	return nil
}

func (r *stubClienteRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creados
}

var _ repository.ClienteRepository = (*stubClienteRepo)(nil)

// ── In-memory ComprobanteRepository stub ─────────────────────────────────────

type stubComprobanteRepo struct {
	mu           sync.Mutex
	comprobantes map[uuid.UUID]*model.Comprobante
	// numeroViejo, when set, is handed out once by SiguienteNumero to
	// simulate a concurrent emission taking the number first.
	numeroViejo int
	updates     int
}

func newStubComprobanteRepo() *stubComprobanteRepo {
	return &stubComprobanteRepo{comprobantes: make(map[uuid.UUID]*model.Comprobante)}
}

func clonarComprobante(c *model.Comprobante) *model.Comprobante {
	cloned := *c
	cloned.Items = append([]model.ComprobanteItem(nil), c.Items...)
	return &cloned
}

func (r *stubComprobanteRepo) Create(_ context.Context, c *model.Comprobante) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.comprobantes {
		if x.EmisorID == c.EmisorID && x.Serie == c.Serie && x.Numero == c.Numero {
			return gorm.ErrDuplicatedKey
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	for i := range c.Items {
		if c.Items[i].ID == uuid.Nil {
			c.Items[i].ID = uuid.New()
		}
		c.Items[i].ComprobanteID = c.ID
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.comprobantes[c.ID] = clonarComprobante(c)
	return nil
}

func (r *stubComprobanteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Comprobante, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comprobantes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return clonarComprobante(c), nil
}

func (r *stubComprobanteRepo) Update(_ context.Context, c *model.Comprobante) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	c.UpdatedAt = time.Now()
	r.comprobantes[c.ID] = clonarComprobante(c)
	return nil
}

func (r *stubComprobanteRepo) List(_ context.Context, f dto.ComprobanteFilter) ([]model.Comprobante, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Comprobante
	for _, c := range r.comprobantes {
		if c.EmisorID.String() != f.EmisorID {
			continue
		}
		if f.Tipo != "" && c.Tipo != f.Tipo {
			continue
		}
		if f.Estado != "" && c.Estado != f.Estado {
			continue
		}
		out = append(out, *clonarComprobante(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerieNumero() < out[j].SerieNumero() })
	return out, int64(len(out)), nil
}

func (r *stubComprobanteRepo) SiguienteNumero(_ context.Context, emisorID uuid.UUID, serie string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.numeroViejo > 0 {
		n := r.numeroViejo
		r.numeroViejo = 0
		return n, nil
	}
	max := 0
	for _, c := range r.comprobantes {
		if c.EmisorID != emisorID || c.Serie != serie {
			continue
		}
		if n, err := strconv.Atoi(c.Numero); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (r *stubComprobanteRepo) ContarNotasCredito(_ context.Context, emisorID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.comprobantes {
		if c.EmisorID == emisorID && c.Tipo == model.TipoNotaCredito {
			n++
		}
	}
	return n, nil
}

func (r *stubComprobanteRepo) ExisteNotaCredito(_ context.Context, emisorID uuid.UUID, referencia string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comprobantes {
		if c.EmisorID == emisorID && c.Tipo == model.TipoNotaCredito &&
			c.ComprobanteReferencia != nil && *c.ComprobanteReferencia == referencia {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubComprobanteRepo) MarcarEnCurso(_ context.Context, id uuid.UUID, ahora time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.comprobantes[id]; ok && c.Estado == model.EstadoProcesando {
		c.UpdatedAt = ahora
	}
	return nil
}

func (r *stubComprobanteRepo) CerrarSiProcesando(_ context.Context, id uuid.UUID, estado, mensaje string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comprobantes[id]
	if !ok || c.Estado != model.EstadoProcesando {
		return false, nil
	}
	c.Estado = estado
	c.SunatMensaje = &mensaje
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *stubComprobanteRepo) ListProcesandoAntesDe(_ context.Context, limite time.Time, n int) ([]model.Comprobante, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Comprobante
	for _, c := range r.comprobantes {
		if c.Estado == model.EstadoProcesando && c.UpdatedAt.Before(limite) && len(out) < n {
			out = append(out, *clonarComprobante(c))
		}
	}
	return out, nil
}

func (r *stubComprobanteRepo) ListAceptados(_ context.Context, emisorID uuid.UUID, desde, hasta time.Time) ([]model.Comprobante, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Comprobante
	for _, c := range r.comprobantes {
		if c.EmisorID != emisorID || c.Estado != model.EstadoAceptado || c.Tipo == model.TipoNotaCredito {
			continue
		}
		if c.Fecha.Before(desde) || !c.Fecha.Before(hasta) {
			continue
		}
		out = append(out, *clonarComprobante(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Fecha.Equal(out[j].Fecha) {
			return out[i].Fecha.Before(out[j].Fecha)
		}
		return out[i].SerieNumero() < out[j].SerieNumero()
	})
	return out, nil
}

func (r *stubComprobanteRepo) all() []*model.Comprobante {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Comprobante, 0, len(r.comprobantes))
	for _, c := range r.comprobantes {
		out = append(out, clonarComprobante(c))
	}
	return out
}

var _ repository.ComprobanteRepository = (*stubComprobanteRepo)(nil)

// ── Scripted SUNAT gateway ───────────────────────────────────────────────────

// stubGateway replays estados one per poll, repeating the last one.
type stubGateway struct {
	mu          sync.Mutex
	emitirErr   error
	estadoErr   error
	estados     []infra.TareaEstado
	polls       int
	solicitudes []infra.EmitirRequest
	// alEmitir runs before a submission is recorded.
	alEmitir func()
}

func (g *stubGateway) Emitir(_ context.Context, req infra.EmitirRequest) (string, error) {
	if g.alEmitir != nil {
		g.alEmitir()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.solicitudes = append(g.solicitudes, req)
	if g.emitirErr != nil {
		return "", g.emitirErr
	}
	return "task-1", nil
}

func (g *stubGateway) EstadoTarea(_ context.Context, taskID string) (*infra.TareaEstado, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls++
	if g.estadoErr != nil {
		return nil, g.estadoErr
	}
	i := g.polls - 1
	if i >= len(g.estados) {
		i = len(g.estados) - 1
	}
	e := g.estados[i]
	e.TaskID = taskID
	return &e, nil
}

func (g *stubGateway) Validar(_ context.Context, req infra.EmitirRequest) (*infra.ValidacionResultado, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.solicitudes = append(g.solicitudes, req)
	return &infra.ValidacionResultado{Valid: true}, nil
}

func (g *stubGateway) Health(_ context.Context) (*infra.SunatHealth, error) {
	return &infra.SunatHealth{Status: "ok"}, nil
}

func (g *stubGateway) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}

// ── Recording dispatcher ─────────────────────────────────────────────────────

type stubDespachador struct {
	mu        sync.Mutex
	encolados []uuid.UUID
	err       error
}

func (d *stubDespachador) EncolarEmision(_ context.Context, id uuid.UUID, _ *string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.encolados = append(d.encolados, id)
	return nil
}

var errRepo = errors.New("db caida")
