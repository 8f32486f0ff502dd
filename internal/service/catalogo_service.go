package service

import (
	"context"
	"errors"
	"strings"

	"factumovil/internal/dto"
	"factumovil/internal/model"
	"factumovil/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── Productos ─────────────────────────────────────────────────────────────────

type ProductoService interface {
	Crear(ctx context.Context, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	Listar(ctx context.Context, emisorID uuid.UUID) ([]dto.ProductoResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
}

type productoService struct {
	repo     repository.ProductoRepository
	emisores repository.EmisorRepository
}

func NewProductoService(repo repository.ProductoRepository, emisores repository.EmisorRepository) ProductoService {
	return &productoService{repo: repo, emisores: emisores}
}

func (s *productoService) Crear(ctx context.Context, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	emisorID, _ := uuid.Parse(req.EmisorID)
	if _, err := s.emisores.FindByID(ctx, emisorID); err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}
	desc := strings.TrimSpace(req.Descripcion)
	if desc == "" {
		return nil, NewValidationError("descripcion", "Falta la descripción")
	}
	tieneIGV := true
	if req.TieneIGV != nil {
		tieneIGV = *req.TieneIGV
	}
	p := &model.Producto{
		EmisorID:    emisorID,
		Descripcion: desc,
		Unidad:      unidadOPorDefecto(req.Unidad),
		PrecioBase:  req.PrecioBase,
		TieneIGV:    tieneIGV,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return productoToResponse(p), nil
}

func (s *productoService) Listar(ctx context.Context, emisorID uuid.UUID) ([]dto.ProductoResponse, error) {
	ps, err := s.repo.ListByEmisor(ctx, emisorID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductoResponse, 0, len(ps))
	for i := range ps {
		out = append(out, *productoToResponse(&ps[i]))
	}
	return out, nil
}

func (s *productoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, ErrProductoNoEncontrado)
	}
	if req.Descripcion != nil {
		desc := strings.TrimSpace(*req.Descripcion)
		if desc == "" {
			return nil, NewValidationError("descripcion", "Falta la descripción")
		}
		p.Descripcion = desc
	}
	if req.Unidad != nil {
		p.Unidad = unidadOPorDefecto(*req.Unidad)
	}
	if req.PrecioBase != nil {
		if req.PrecioBase.IsNegative() {
			return nil, NewValidationError("precio_base", "El precio no puede ser negativo")
		}
		p.PrecioBase = *req.PrecioBase
	}
	if req.TieneIGV != nil {
		p.TieneIGV = *req.TieneIGV
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return productoToResponse(p), nil
}

// Eliminar removes the catalog entry only; stored documents keep their lines.
func (s *productoService) Eliminar(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductoNoEncontrado
		}
		return err
	}
	return nil
}

func productoToResponse(p *model.Producto) *dto.ProductoResponse {
	return &dto.ProductoResponse{
		ID:          p.ID.String(),
		EmisorID:    p.EmisorID.String(),
		Descripcion: p.Descripcion,
		Unidad:      p.Unidad,
		PrecioBase:  p.PrecioBase,
		TieneIGV:    p.TieneIGV,
	}
}

// ── Clientes ──────────────────────────────────────────────────────────────────

type ClienteService interface {
	Crear(ctx context.Context, req dto.CrearClienteRequest) (*dto.ClienteResponse, error)
	Listar(ctx context.Context, emisorID uuid.UUID) ([]dto.ClienteResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarClienteRequest) (*dto.ClienteResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
}

type clienteService struct {
	repo     repository.ClienteRepository
	emisores repository.EmisorRepository
}

func NewClienteService(repo repository.ClienteRepository, emisores repository.EmisorRepository) ClienteService {
	return &clienteService{repo: repo, emisores: emisores}
}

func (s *clienteService) Crear(ctx context.Context, req dto.CrearClienteRequest) (*dto.ClienteResponse, error) {
	emisorID, _ := uuid.Parse(req.EmisorID)
	if _, err := s.emisores.FindByID(ctx, emisorID); err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}
	nombre := strings.TrimSpace(req.Nombre)
	if nombre == "" {
		return nil, NewValidationError("nombre", "Ingresa el nombre del cliente")
	}
	c := &model.Cliente{
		EmisorID: emisorID,
		Nombre:   nombre,
		DNI:      vacioANil(req.DNI),
		RUC:      vacioANil(req.RUC),
		Telefono: vacioANil(req.Telefono),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return clienteToResponse(c), nil
}

func (s *clienteService) Listar(ctx context.Context, emisorID uuid.UUID) ([]dto.ClienteResponse, error) {
	cs, err := s.repo.ListByEmisor(ctx, emisorID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ClienteResponse, 0, len(cs))
	for i := range cs {
		out = append(out, *clienteToResponse(&cs[i]))
	}
	return out, nil
}

// Actualizar treats an empty string as clearing the field.
func (s *clienteService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarClienteRequest) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, ErrClienteNoEncontrado)
	}
	if req.Nombre != nil {
		nombre := strings.TrimSpace(*req.Nombre)
		if nombre == "" {
			return nil, NewValidationError("nombre", "Ingresa el nombre del cliente")
		}
		c.Nombre = nombre
	}
	if req.DNI != nil {
		c.DNI = vacioANil(req.DNI)
	}
	if req.RUC != nil {
		c.RUC = vacioANil(req.RUC)
	}
	if req.Telefono != nil {
		c.Telefono = vacioANil(req.Telefono)
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return clienteToResponse(c), nil
}

// Eliminar leaves past documents intact; they carry their own client snapshot.
func (s *clienteService) Eliminar(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClienteNoEncontrado
		}
		return err
	}
	return nil
}

func clienteToResponse(c *model.Cliente) *dto.ClienteResponse {
	return &dto.ClienteResponse{
		ID:       c.ID.String(),
		EmisorID: c.EmisorID.String(),
		Nombre:   c.Nombre,
		DNI:      c.DNI,
		RUC:      c.RUC,
		Telefono: c.Telefono,
	}
}

func vacioANil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
