package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReporteService interface {
	// VentasPorMes returns the twelve months of anio, empty months included.
	VentasPorMes(ctx context.Context, emisorID uuid.UUID, anio int) ([]dto.VentasMesResponse, error)
	TopProductos(ctx context.Context, emisorID uuid.UUID, anio, limit int) ([]dto.TopProductoResponse, error)
}

type reporteService struct {
	repo repository.ComprobanteRepository
}

func NewReporteService(repo repository.ComprobanteRepository) ReporteService {
	return &reporteService{repo: repo}
}

func (s *reporteService) VentasPorMes(ctx context.Context, emisorID uuid.UUID, anio int) ([]dto.VentasMesResponse, error) {
	desde := time.Date(anio, time.January, 1, 0, 0, 0, 0, time.UTC)
	comps, err := s.repo.ListAceptados(ctx, emisorID, desde, desde.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}

	meses := make([]dto.VentasMesResponse, 12)
	for i := range meses {
		meses[i] = dto.VentasMesResponse{
			Mes:   fmt.Sprintf("%04d-%02d", anio, i+1),
			Total: decimal.Zero,
			IGV:   decimal.Zero,
		}
	}
	for _, c := range comps {
		m := &meses[c.Fecha.Month()-1]
		m.Cantidad++
		m.Total = m.Total.Add(c.Total)
		m.IGV = m.IGV.Add(c.IGV)
	}
	return meses, nil
}

func (s *reporteService) TopProductos(ctx context.Context, emisorID uuid.UUID, anio, limit int) ([]dto.TopProductoResponse, error) {
	desde := time.Date(anio, time.January, 1, 0, 0, 0, 0, time.UTC)
	comps, err := s.repo.ListAceptados(ctx, emisorID, desde, desde.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}

	porClave := make(map[string]*dto.TopProductoResponse)
	for _, c := range comps {
		for _, it := range c.Items {
			clave := normalizarDescripcion(it.Descripcion)
			if clave == "" {
				continue
			}
			p, ok := porClave[clave]
			if !ok {
				p = &dto.TopProductoResponse{Descripcion: it.Descripcion, Cantidad: decimal.Zero, Total: decimal.Zero}
				porClave[clave] = p
			}
			p.Cantidad = p.Cantidad.Add(it.Cantidad)
			p.Total = p.Total.Add(it.Total)
		}
	}

	out := make([]dto.TopProductoResponse, 0, len(porClave))
	for _, p := range porClave {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Descripcion < out[j].Descripcion
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
