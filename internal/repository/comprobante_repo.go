package repository

import (
	"context"
	"strconv"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ComprobanteRepository interface {
	// Create inserts the document with its items. A taken (emisor, serie,
	// numero) fails with gorm.ErrDuplicatedKey.
	Create(ctx context.Context, c *model.Comprobante) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Comprobante, error)
	// Update saves the document header; items are immutable once stored.
	Update(ctx context.Context, c *model.Comprobante) error
	List(ctx context.Context, filter dto.ComprobanteFilter) ([]model.Comprobante, int64, error)

	// SiguienteNumero returns max(numero)+1 for the emisor's series, 1 if none.
	SiguienteNumero(ctx context.Context, emisorID uuid.UUID, serie string) (int, error)
	ContarNotasCredito(ctx context.Context, emisorID uuid.UUID) (int64, error)
	// ExisteNotaCredito reports whether a credit note already reverses referencia ("<serie>-<numero>").
	ExisteNotaCredito(ctx context.Context, emisorID uuid.UUID, referencia string) (bool, error)

	// MarcarEnCurso bumps updated_at of a PROCESANDO document when a worker
	// starts polling it.
	MarcarEnCurso(ctx context.Context, id uuid.UUID, ahora time.Time) error
	// CerrarSiProcesando moves the document to estado only while it is still
	// PROCESANDO. It reports whether the row changed.
	CerrarSiProcesando(ctx context.Context, id uuid.UUID, estado, mensaje string) (bool, error)
	// ListProcesandoAntesDe feeds the stale sweeper.
	ListProcesandoAntesDe(ctx context.Context, limite time.Time, n int) ([]model.Comprobante, error)
	// ListAceptados returns accepted documents (with items) dated in [desde, hasta).
	ListAceptados(ctx context.Context, emisorID uuid.UUID, desde, hasta time.Time) ([]model.Comprobante, error)
}

type comprobanteRepo struct{ db *gorm.DB }

func NewComprobanteRepository(db *gorm.DB) ComprobanteRepository {
	return &comprobanteRepo{db: db}
}

func (r *comprobanteRepo) Create(ctx context.Context, c *model.Comprobante) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *comprobanteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Comprobante, error) {
	var c model.Comprobante
	if err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *comprobanteRepo) Update(ctx context.Context, c *model.Comprobante) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error
}

func (r *comprobanteRepo) MarcarEnCurso(ctx context.Context, id uuid.UUID, ahora time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Comprobante{}).
		Where("id = ? AND estado = ?", id, model.EstadoProcesando).
		Update("updated_at", ahora).Error
}

func (r *comprobanteRepo) CerrarSiProcesando(ctx context.Context, id uuid.UUID, estado, mensaje string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Comprobante{}).
		Where("id = ? AND estado = ?", id, model.EstadoProcesando).
		Updates(map[string]any{"estado": estado, "sunat_mensaje": mensaje})
	return res.RowsAffected == 1, res.Error
}

func (r *comprobanteRepo) List(ctx context.Context, filter dto.ComprobanteFilter) ([]model.Comprobante, int64, error) {
	var out []model.Comprobante
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Comprobante{}).Where("emisor_id = ?", filter.EmisorID)
	if filter.Tipo != "" {
		q = q.Where("tipo = ?", filter.Tipo)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Items").
		Order("fecha DESC, created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&out).Error
	return out, total, err
}

func (r *comprobanteRepo) SiguienteNumero(ctx context.Context, emisorID uuid.UUID, serie string) (int, error) {
	var numeros []string
	err := r.db.WithContext(ctx).Model(&model.Comprobante{}).
		Where("emisor_id = ? AND serie = ?", emisorID, serie).
		Order("numero DESC").Limit(1).
		Pluck("numero", &numeros).Error
	if err != nil {
		return 0, err
	}
	if len(numeros) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(numeros[0])
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func (r *comprobanteRepo) ContarNotasCredito(ctx context.Context, emisorID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Comprobante{}).
		Where("emisor_id = ? AND tipo = ?", emisorID, model.TipoNotaCredito).
		Count(&n).Error
	return n, err
}

func (r *comprobanteRepo) ExisteNotaCredito(ctx context.Context, emisorID uuid.UUID, referencia string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Comprobante{}).
		Where("emisor_id = ? AND tipo = ? AND comprobante_referencia = ?", emisorID, model.TipoNotaCredito, referencia).
		Count(&n).Error
	return n > 0, err
}

func (r *comprobanteRepo) ListProcesandoAntesDe(ctx context.Context, limite time.Time, n int) ([]model.Comprobante, error) {
	var out []model.Comprobante
	err := r.db.WithContext(ctx).
		Where("estado = ? AND updated_at < ?", model.EstadoProcesando, limite).
		Order("updated_at ASC").Limit(n).
		Find(&out).Error
	return out, err
}

func (r *comprobanteRepo) ListAceptados(ctx context.Context, emisorID uuid.UUID, desde, hasta time.Time) ([]model.Comprobante, error) {
	var out []model.Comprobante
	err := r.db.WithContext(ctx).Preload("Items").
		Where("emisor_id = ? AND estado = ? AND tipo <> ? AND fecha >= ? AND fecha < ?",
			emisorID, model.EstadoAceptado, model.TipoNotaCredito, desde, hasta).
		Order("fecha ASC, serie ASC, numero ASC").
		Find(&out).Error
	return out, err
}
