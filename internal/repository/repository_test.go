package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"factumovil/internal/dto"
	"factumovil/internal/infra"
	"factumovil/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))
	return db
}

func seedEmisor(t *testing.T, db *gorm.DB) *model.Emisor {
	t.Helper()
	e := &model.Emisor{Nombre: "Bodega Rosa", RUC: "20123456789"}
	require.NoError(t, NewEmisorRepository(db).Create(context.Background(), e))
	return e
}

func comprobante(emisorID uuid.UUID, tipo, serie, numero string) *model.Comprobante {
	return &model.Comprobante{
		EmisorID:      emisorID,
		ClienteNombre: "CLIENTE",
		Tipo:          tipo,
		Serie:         serie,
		Numero:        numero,
		Fecha:         time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		Subtotal:      decimal.NewFromInt(15),
		IGV:           decimal.RequireFromString("2.7"),
		Total:         decimal.RequireFromString("17.7"),
		Estado:        model.EstadoAceptado,
		Items: []model.ComprobanteItem{{
			Descripcion:    "PAN",
			Cantidad:       decimal.NewFromInt(3),
			Unidad:         model.UnidadUnidad,
			PrecioUnitario: decimal.NewFromInt(5),
			TieneIGV:       true,
			Total:          decimal.RequireFromString("17.7"),
		}},
	}
}

func TestComprobanteRepo_SiguienteNumero(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	n, err := repo.SiguienteNumero(ctx, e.ID, model.SerieBoleta)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Create(ctx, comprobante(e.ID, model.TipoBoleta, "B001", "00000009")))
	require.NoError(t, repo.Create(ctx, comprobante(e.ID, model.TipoBoleta, "B001", "00000010")))
	require.NoError(t, repo.Create(ctx, comprobante(e.ID, model.TipoFactura, "F001", "00000100")))

	n, err = repo.SiguienteNumero(ctx, e.ID, model.SerieBoleta)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	otro := seedEmisorRUC(t, db, "20999999999")
	n, err = repo.SiguienteNumero(ctx, otro.ID, model.SerieBoleta)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "numbering is per emisor")
}

func seedEmisorRUC(t *testing.T, db *gorm.DB, ruc string) *model.Emisor {
	t.Helper()
	e := &model.Emisor{Nombre: "Otro", RUC: ruc}
	require.NoError(t, NewEmisorRepository(db).Create(context.Background(), e))
	return e
}

func TestComprobanteRepo_DuplicateNumberRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	require.NoError(t, repo.Create(ctx, comprobante(e.ID, model.TipoBoleta, "B001", "00000001")))
	err := repo.Create(ctx, comprobante(e.ID, model.TipoBoleta, "B001", "00000001"))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestComprobanteRepo_FindUpdateAndCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	c := comprobante(e.ID, model.TipoBoleta, "B001", "00000001")
	c.Estado = model.EstadoProcesando
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Total.Equal(decimal.RequireFromString("17.7")))

	got.Estado = model.EstadoAceptado
	got.Items = nil
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAceptado, again.Estado)
	assert.Len(t, again.Items, 1, "update must not touch items")

	nc := comprobante(e.ID, model.TipoNotaCredito, "NC01", "0001")
	ref := c.SerieNumero()
	nc.ComprobanteReferencia = &ref
	require.NoError(t, repo.Create(ctx, nc))
	n, err := repo.ContarNotasCredito(ctx, e.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	existe, err := repo.ExisteNotaCredito(ctx, e.ID, "B001-00000001")
	require.NoError(t, err)
	assert.True(t, existe)
	existe, err = repo.ExisteNotaCredito(ctx, e.ID, "B001-00000002")
	require.NoError(t, err)
	assert.False(t, existe)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestComprobanteRepo_ListAndReports(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	require.NoError(t, repo.Create(ctx, comprobante(e.ID, model.TipoBoleta, "B001", "00000001")))
	falla := comprobante(e.ID, model.TipoBoleta, "B001", "00000002")
	falla.Estado = model.EstadoFallo
	require.NoError(t, repo.Create(ctx, falla))
	require.NoError(t, repo.Create(ctx, comprobante(e.ID, model.TipoNotaCredito, "NC01", "0001")))

	list, total, err := repo.List(ctx, dto.ComprobanteFilter{EmisorID: e.ID.String(), Tipo: model.TipoBoleta, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	desde := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	aceptados, err := repo.ListAceptados(ctx, e.ID, desde, desde.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, aceptados, 1)
	assert.Equal(t, "00000001", aceptados[0].Numero)
	assert.Len(t, aceptados[0].Items, 1)
}

func TestComprobanteRepo_ListProcesandoAntesDe(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	c := comprobante(e.ID, model.TipoBoleta, "B001", "00000001")
	c.Estado = model.EstadoProcesando
	require.NoError(t, repo.Create(ctx, c))

	none, err := repo.ListProcesandoAntesDe(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	stale, err := repo.ListProcesandoAntesDe(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestComprobanteRepo_CerrarSiProcesandoRespetaAceptado(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	c := comprobante(e.ID, model.TipoBoleta, "B001", "00000001")
	c.Estado = model.EstadoProcesando
	require.NoError(t, repo.Create(ctx, c))
	stale, err := repo.ListProcesandoAntesDe(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	// The worker finishes between the sweeper's read and its write.
	worker, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	pdf := "JVBERg=="
	worker.Estado = model.EstadoAceptado
	worker.PDFBase64 = &pdf
	require.NoError(t, repo.Update(ctx, worker))

	cerrado, err := repo.CerrarSiProcesando(ctx, stale[0].ID, model.EstadoFallo, model.MensajeTimeout)
	require.NoError(t, err)
	assert.False(t, cerrado)

	final, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAceptado, final.Estado)
	require.NotNil(t, final.PDFBase64)
	assert.Equal(t, pdf, *final.PDFBase64)
}

func TestComprobanteRepo_CerrarSiProcesando(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	c := comprobante(e.ID, model.TipoBoleta, "B001", "00000001")
	c.Estado = model.EstadoProcesando
	require.NoError(t, repo.Create(ctx, c))

	cerrado, err := repo.CerrarSiProcesando(ctx, c.ID, model.EstadoFallo, model.MensajeTimeout)
	require.NoError(t, err)
	assert.True(t, cerrado)

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EstadoFallo, got.Estado)
	require.NotNil(t, got.SunatMensaje)
	assert.Equal(t, model.MensajeTimeout, *got.SunatMensaje)
	assert.Len(t, got.Items, 1)

	cerrado, err = repo.CerrarSiProcesando(ctx, c.ID, model.EstadoFallo, model.MensajeTimeout)
	require.NoError(t, err)
	assert.False(t, cerrado, "already terminal")
}

func TestComprobanteRepo_MarcarEnCursoSacaDelBarrido(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	repo := NewComprobanteRepository(db)

	c := comprobante(e.ID, model.TipoBoleta, "B001", "00000001")
	c.Estado = model.EstadoProcesando
	require.NoError(t, repo.Create(ctx, c))

	limite := time.Now().Add(time.Hour)
	stale, err := repo.ListProcesandoAntesDe(ctx, limite, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, repo.MarcarEnCurso(ctx, c.ID, limite.Add(time.Minute)))
	stale, err = repo.ListProcesandoAntesDe(ctx, limite, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestCatalogRepos_CRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := seedEmisor(t, db)
	productos := NewProductoRepository(db)
	clientes := NewClienteRepository(db)

	p := &model.Producto{EmisorID: e.ID, Descripcion: "ARROZ", Unidad: model.UnidadKilogramo, PrecioBase: decimal.RequireFromString("4.2"), TieneIGV: false}
	require.NoError(t, productos.Create(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)

	got, err := productos.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.TieneIGV, "false tax flag must survive insert")

	dni := "12345678"
	c := &model.Cliente{EmisorID: e.ID, Nombre: "ANA", DNI: &dni}
	require.NoError(t, clientes.Create(ctx, c))

	list, err := clientes.ListByEmisor(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "12345678", *list[0].DNI)

	require.NoError(t, clientes.Delete(ctx, c.ID))
	assert.ErrorIs(t, clientes.Delete(ctx, c.ID), gorm.ErrRecordNotFound)

	emisores, err := NewEmisorRepository(db).List(ctx)
	require.NoError(t, err)
	assert.Len(t, emisores, 1)
}
