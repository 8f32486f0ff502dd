package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/infra"
	"factumovil/internal/model"
	"factumovil/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Boveda encrypts SUNAT credentials at rest. Satisfied by *infra.Vault.
type Boveda interface {
	Encrypt(plain string) (string, error)
	Decrypt(encoded string) string
}

type EmisorService interface {
	Crear(ctx context.Context, req dto.CrearEmisorRequest) (*dto.EmisorResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.EmisorResponse, error)
	Listar(ctx context.Context) ([]dto.EmisorResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarEmisorRequest) (*dto.EmisorResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
}

type emisorService struct {
	repo   repository.EmisorRepository
	boveda Boveda
}

func NewEmisorService(repo repository.EmisorRepository, boveda Boveda) EmisorService {
	return &emisorService{repo: repo, boveda: boveda}
}

func (s *emisorService) Crear(ctx context.Context, req dto.CrearEmisorRequest) (*dto.EmisorResponse, error) {
	usuario, err := s.boveda.Encrypt(strings.TrimSpace(req.SunatUsuario))
	if err != nil {
		return nil, fmt.Errorf("cifrando usuario SUNAT: %w", err)
	}
	clave, err := s.boveda.Encrypt(req.SunatClave)
	if err != nil {
		return nil, fmt.Errorf("cifrando clave SUNAT: %w", err)
	}
	e := &model.Emisor{
		Nombre:             strings.TrimSpace(req.Nombre),
		RUC:                req.RUC,
		SunatUserEncrypted: usuario,
		SunatPassEncrypted: clave,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewValidationError("ruc", "Ya existe un emisor con ese RUC")
		}
		return nil, err
	}
	return s.toResponse(e), nil
}

func (s *emisorService) Obtener(ctx context.Context, id uuid.UUID) (*dto.EmisorResponse, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}
	return s.toResponse(e), nil
}

// Listar decrypts the SUNAT users of all emisores concurrently.
func (s *emisorService) Listar(ctx context.Context) ([]dto.EmisorResponse, error) {
	emisores, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EmisorResponse, len(emisores))
	var g errgroup.Group
	g.SetLimit(8)
	for i := range emisores {
		g.Go(func() error {
			out[i] = *s.toResponse(&emisores[i])
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (s *emisorService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarEmisorRequest) (*dto.EmisorResponse, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, noEncontrado(err, ErrEmisorNoEncontrado)
	}
	if req.Nombre != nil {
		e.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.SunatUsuario != nil {
		if e.SunatUserEncrypted, err = s.boveda.Encrypt(strings.TrimSpace(*req.SunatUsuario)); err != nil {
			return nil, fmt.Errorf("cifrando usuario SUNAT: %w", err)
		}
	}
	if req.SunatClave != nil {
		if e.SunatPassEncrypted, err = s.boveda.Encrypt(*req.SunatClave); err != nil {
			return nil, fmt.Errorf("cifrando clave SUNAT: %w", err)
		}
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return s.toResponse(e), nil
}

func (s *emisorService) Eliminar(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmisorNoEncontrado
		}
		return err
	}
	return nil
}

func (s *emisorService) toResponse(e *model.Emisor) *dto.EmisorResponse {
	return &dto.EmisorResponse{
		ID:           e.ID.String(),
		Nombre:       e.Nombre,
		RUC:          e.RUC,
		SunatUsuario: s.boveda.Decrypt(e.SunatUserEncrypted),
		TieneClave:   e.SunatPassEncrypted != "",
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}

// descifrarCredenciales opens both stored secrets for one sidecar call.
// An undecryptable secret is sent empty and SUNAT rejects the login.
func descifrarCredenciales(b Boveda, e *model.Emisor) infra.SunatCredenciales {
	cred := infra.SunatCredenciales{RUC: e.RUC}
	var g errgroup.Group
	g.Go(func() error {
		cred.Usuario = b.Decrypt(e.SunatUserEncrypted)
		return nil
	})
	g.Go(func() error {
		cred.Password = b.Decrypt(e.SunatPassEncrypted)
		return nil
	})
	_ = g.Wait()
	return cred
}
