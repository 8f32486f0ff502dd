// Package apierror holds the JSON bodies of every 4xx/5xx response. Handlers
// never serialize raw errors; database and sidecar details stay in the log.
package apierror

// Error codes let the mobile client branch without parsing Detail.
const (
	CodigoValidacion   = "validacion"
	CodigoNoEncontrado = "no_encontrado"
	CodigoConciliacion = "conciliacion"
	CodigoSunat        = "sunat"
	CodigoTimeout      = "timeout"
	CodigoInterno      = "interno"
)

type APIError struct {
	Detail string `json:"detail"`
	Codigo string `json:"codigo,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(codigo, msg string) *APIError {
	return &APIError{Detail: msg, Codigo: codigo}
}

// ValidationError carries one message per offending field.
type ValidationError struct {
	Detail string            `json:"detail"`
	Codigo string            `json:"codigo"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Codigo: CodigoValidacion, Fields: fields}
}
