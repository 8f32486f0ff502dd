package service

import (
	"strings"
	"sync"

	"factumovil/internal/model"

	"github.com/google/uuid"
)

// Catalogo is an emisor's products and clients as loaded when a submission
// starts. Records created while reconciling are appended, so a reference
// repeated within the same snapshot resolves to the same record. Two
// snapshots loaded concurrently do not see each other's creates.
type Catalogo struct {
	EmisorID uuid.UUID

	// serializes whole resolve calls against this snapshot
	resolviendo sync.Mutex

	mu        sync.RWMutex
	productos []model.Producto
	clientes  []model.Cliente
}

func NuevoCatalogo(emisorID uuid.UUID, productos []model.Producto, clientes []model.Cliente) *Catalogo {
	return &Catalogo{
		EmisorID:  emisorID,
		productos: append([]model.Producto(nil), productos...),
		clientes:  append([]model.Cliente(nil), clientes...),
	}
}

func (c *Catalogo) Productos() []model.Producto {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Producto(nil), c.productos...)
}

func (c *Catalogo) Clientes() []model.Cliente {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Cliente(nil), c.clientes...)
}

func (c *Catalogo) ProductoPorID(id uuid.UUID) *model.Producto {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.productos {
		if c.productos[i].ID == id {
			p := c.productos[i]
			return &p
		}
	}
	return nil
}

// ProductoPorDescripcion matches case-insensitively after collapsing whitespace.
func (c *Catalogo) ProductoPorDescripcion(desc string) *model.Producto {
	clave := normalizarDescripcion(desc)
	if clave == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.productos {
		if normalizarDescripcion(c.productos[i].Descripcion) == clave {
			p := c.productos[i]
			return &p
		}
	}
	return nil
}

func (c *Catalogo) ClientePorID(id uuid.UUID) *model.Cliente {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.clientes {
		if c.clientes[i].ID == id {
			cl := c.clientes[i]
			return &cl
		}
	}
	return nil
}

// ClientePorDocumento matches an 8-digit number against DNI and an 11-digit
// number against RUC. Anything else never matches.
func (c *Catalogo) ClientePorDocumento(doc string) *model.Cliente {
	tipo := tipoDocumento(doc)
	if tipo == docNinguno {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.clientes {
		cl := c.clientes[i]
		switch {
		case tipo == docDNI && cl.DNI != nil && *cl.DNI == doc,
			tipo == docRUC && cl.RUC != nil && *cl.RUC == doc:
			return &cl
		}
	}
	return nil
}

func (c *Catalogo) agregarProductos(ps ...model.Producto) {
	c.mu.Lock()
	c.productos = append(c.productos, ps...)
	c.mu.Unlock()
}

func (c *Catalogo) agregarCliente(cl model.Cliente) {
	c.mu.Lock()
	c.clientes = append(c.clientes, cl)
	c.mu.Unlock()
}

func normalizarDescripcion(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

type documento int

const (
	docNinguno documento = iota
	docDNI
	docRUC
)

func tipoDocumento(doc string) documento {
	for _, r := range doc {
		if r < '0' || r > '9' {
			return docNinguno
		}
	}
	switch len(doc) {
	case 8:
		return docDNI
	case 11:
		return docRUC
	}
	return docNinguno
}
