package service

import (
	"context"
	"fmt"
	"strings"

	"factumovil/internal/infra"
	"factumovil/internal/model"
	"factumovil/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReferenciaCliente is a loose pointer to a client as typed in the form or
// read by the extractor.
type ReferenciaCliente struct {
	ID        *uuid.UUID
	Documento string
	Nombre    string
	Telefono  *string
}

// ReferenciaProducto is one document line's product. The remaining fields
// seed the product when it has to be created.
type ReferenciaProducto struct {
	ID          *uuid.UUID
	Descripcion string
	Unidad      string
	PrecioBase  decimal.Decimal
	TieneIGV    bool
}

// Conciliador maps references onto catalog records, creating a record only
// when nothing in the snapshot matches.
type Conciliador struct {
	clientes  repository.ClienteRepository
	productos repository.ProductoRepository
	log       zerolog.Logger
}

func NewConciliador(clientes repository.ClienteRepository, productos repository.ProductoRepository) *Conciliador {
	return &Conciliador{
		clientes:  clientes,
		productos: productos,
		log:       infra.Componente("conciliador"),
	}
}

// ResolverCliente returns the matched or created client, or nil for an
// anonymous sale. Order: explicit id in the snapshot, document match,
// create with document, create by name.
func (c *Conciliador) ResolverCliente(ctx context.Context, cat *Catalogo, ref ReferenciaCliente) (*model.Cliente, error) {
	cat.resolviendo.Lock()
	defer cat.resolviendo.Unlock()

	if ref.ID != nil {
		if cl := cat.ClientePorID(*ref.ID); cl != nil {
			return cl, nil
		}
	}

	doc := strings.TrimSpace(ref.Documento)
	nombre := strings.TrimSpace(ref.Nombre)
	tipo := tipoDocumento(doc)

	if tipo != docNinguno {
		if cl := cat.ClientePorDocumento(doc); cl != nil {
			return cl, nil
		}
	}
	if tipo == docNinguno && nombre == "" {
		return nil, nil
	}

	nuevo := model.Cliente{EmisorID: cat.EmisorID, Nombre: nombre, Telefono: ref.Telefono}
	switch tipo {
	case docDNI:
		nuevo.DNI = &doc
	case docRUC:
		nuevo.RUC = &doc
	}
	if err := c.clientes.Create(ctx, &nuevo); err != nil {
		return nil, &ReconciliationError{Entidad: "cliente", Err: err}
	}
	cat.agregarCliente(nuevo)
	c.log.Info().Str("cliente_id", nuevo.ID.String()).Str("emisor_id", cat.EmisorID.String()).Msg("cliente creado")
	return &nuevo, nil
}

// ResolverProductos resolves every line and returns the product id per line
// (nil for a line with neither id nor description). Unmatched descriptions
// are deduplicated and created concurrently; the first failure is returned
// and products already created stay in the catalog.
func (c *Conciliador) ResolverProductos(ctx context.Context, cat *Catalogo, refs []ReferenciaProducto) ([]*uuid.UUID, error) {
	cat.resolviendo.Lock()
	defer cat.resolviendo.Unlock()

	ids := make([]*uuid.UUID, len(refs))
	pendientes := make(map[string][]int)
	var orden []string

	for i, ref := range refs {
		if ref.ID != nil {
			id := *ref.ID
			ids[i] = &id
			continue
		}
		clave := normalizarDescripcion(ref.Descripcion)
		if clave == "" {
			continue
		}
		if p := cat.ProductoPorDescripcion(clave); p != nil {
			id := p.ID
			ids[i] = &id
			continue
		}
		if _, ok := pendientes[clave]; !ok {
			orden = append(orden, clave)
		}
		pendientes[clave] = append(pendientes[clave], i)
	}
	if len(orden) == 0 {
		return ids, nil
	}

	creados := make([]model.Producto, len(orden))
	g, gctx := errgroup.WithContext(ctx)
	for k, clave := range orden {
		ref := refs[pendientes[clave][0]]
		g.Go(func() error {
			unidad := ref.Unidad
			if unidad == "" {
				unidad = model.UnidadUnidad
			}
			p := model.Producto{
				EmisorID:    cat.EmisorID,
				Descripcion: strings.TrimSpace(ref.Descripcion),
				Unidad:      unidad,
				PrecioBase:  ref.PrecioBase,
				TieneIGV:    ref.TieneIGV,
			}
			if err := c.productos.Create(gctx, &p); err != nil {
				return err
			}
			creados[k] = p
			return nil
		})
	}
	err := g.Wait()

	var ok []model.Producto
	for _, p := range creados {
		if p.ID != uuid.Nil {
			ok = append(ok, p)
		}
	}
	cat.agregarProductos(ok...)
	if err != nil {
		return nil, &ReconciliationError{Entidad: "producto", Err: err}
	}

	for k, clave := range orden {
		for _, i := range pendientes[clave] {
			id := creados[k].ID
			ids[i] = &id
		}
	}
	c.log.Info().Int("creados", len(orden)).Str("emisor_id", cat.EmisorID.String()).Msg("productos creados")
	return ids, nil
}

// EmparejarProducto looks a product up without creating anything: by id
// first, then by description.
func (c *Conciliador) EmparejarProducto(cat *Catalogo, id *uuid.UUID, descripcion string) *model.Producto {
	if id != nil {
		if p := cat.ProductoPorID(*id); p != nil {
			return p
		}
	}
	return cat.ProductoPorDescripcion(descripcion)
}

// EmparejarCliente looks a client up by id or document without creating anything.
func (c *Conciliador) EmparejarCliente(cat *Catalogo, id *uuid.UUID, documento string) *model.Cliente {
	if id != nil {
		if cl := cat.ClientePorID(*id); cl != nil {
			return cl
		}
	}
	return cat.ClientePorDocumento(strings.TrimSpace(documento))
}

// CargarCatalogo loads the emisor's products and clients into a new snapshot.
func (c *Conciliador) CargarCatalogo(ctx context.Context, emisorID uuid.UUID) (*Catalogo, error) {
	var (
		productos []model.Producto
		clientes  []model.Cliente
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		productos, err = c.productos.ListByEmisor(gctx, emisorID)
		return err
	})
	g.Go(func() error {
		var err error
		clientes, err = c.clientes.ListByEmisor(gctx, emisorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cargando catalogo: %w", err)
	}
	return NuevoCatalogo(emisorID, productos, clientes), nil
}
