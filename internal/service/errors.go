package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"factumovil/internal/model"

	"gorm.io/gorm"
)

var (
	ErrComprobanteNoEncontrado = errors.New("comprobante no encontrado")
	ErrEmisorNoEncontrado      = errors.New("emisor no encontrado")
	ErrProductoNoEncontrado    = errors.New("producto no encontrado")
	ErrClienteNoEncontrado     = errors.New("cliente no encontrado")
	ErrPDFNoDisponible         = errors.New("PDF no disponible")
)

// noEncontrado turns a missing row into sentinel; other errors pass through.
func noEncontrado(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// ValidationError is a client-fixable problem with the submitted form.
// Nothing is persisted or sent to SUNAT when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validacion: " + strings.Join(parts, "; ")
}

// ReconciliationError reports a failed client or product create during
// submission. The document itself was not stored.
type ReconciliationError struct {
	Entidad string // "cliente" | "producto"
	Err     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("no se pudo registrar el %s: %v", e.Entidad, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// SubmissionError is a terminal emission failure. The document keeps its
// number and ends in FALLO or RECHAZADO; Mensaje is SUNAT's text verbatim.
type SubmissionError struct {
	Mensaje string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Mensaje
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TaskTimeoutError means the SUNAT task did not finish within the hard ceiling.
type TaskTimeoutError struct {
	TaskID string
}

func (e *TaskTimeoutError) Error() string {
	return model.MensajeTimeout
}
