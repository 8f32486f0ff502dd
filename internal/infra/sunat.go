package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Task states reported by the SUNAT sidecar.
const (
	TareaPendiente   = "pending"
	TareaProcesando  = "processing"
	TareaCompletada  = "completed"
	TareaFallida     = "failed"
	tipoDocBoleta    = "BOLETA"
	tipoDocFactura   = "FACTURA"
	sunatEmitirPath  = "/api/v1/emitir"
	sunatStatusPath  = "/api/v1/status/"
	sunatValidarPath = "/api/v1/validate"
	sunatHealthPath  = "/api/v1/health"
)

// SunatCliente identifies the buyer. FACTURA carries only the RUC.
type SunatCliente struct {
	DNI    string `json:"dni,omitempty"`
	RUC    string `json:"ruc,omitempty"`
	Nombre string `json:"nombre,omitempty"`
}

type SunatProducto struct {
	Cantidad     float64 `json:"cantidad"`
	UnidadMedida string  `json:"unidad_medida"`
	Descripcion  string  `json:"descripcion"`
	PrecioBase   float64 `json:"precio_base"`
	IGV          int     `json:"igv"` // 18 or 0
	PrecioTotal  float64 `json:"precio_total"`
}

type SunatResumen struct {
	Serie    string  `json:"serie"`
	Numero   string  `json:"numero"`
	SubTotal float64 `json:"sub_total"`
	IGVTotal float64 `json:"igv_total"`
	Total    float64 `json:"total"`
}

type SunatCredenciales struct {
	RUC      string `json:"ruc"`
	Usuario  string `json:"usuario"`
	Password string `json:"password"`
}

// EmitirRequest is the submission payload of POST /api/v1/emitir.
type EmitirRequest struct {
	TipoDocumento string            `json:"tipo_documento"`
	Fecha         string            `json:"fecha"` // DD/MM/YYYY
	Cliente       SunatCliente      `json:"cliente"`
	Productos     []SunatProducto   `json:"productos"`
	Resumen       SunatResumen      `json:"resumen"`
	IDRemitente   string            `json:"id_remitente"`
	Credenciales  SunatCredenciales `json:"credenciales"`
}

type SunatPDF struct {
	Filename          string `json:"filename"`
	Content           string `json:"content"` // base64
	Size              int64  `json:"size"`
	MimeType          string `json:"mime_type"`
	NumeroComprobante string `json:"numero_comprobante,omitempty"`
}

type TareaResultado struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	Serie   string    `json:"serie,omitempty"`
	Numero  string    `json:"numero,omitempty"`
	Total   *float64  `json:"total,omitempty"`
	PDF     *SunatPDF `json:"pdf,omitempty"`
}

// TareaEstado is the body of GET /api/v1/status/{task_id}.
type TareaEstado struct {
	TaskID          string          `json:"task_id"`
	Status          string          `json:"status"`
	Result          *TareaResultado `json:"result,omitempty"`
	StartedAt       string          `json:"started_at,omitempty"`
	CompletedAt     string          `json:"completed_at,omitempty"`
	DurationSeconds *float64        `json:"duration_seconds,omitempty"`
}

type ValidacionResultado struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type SunatHealth struct {
	Status        string `json:"status"`
	SeleniumReady bool   `json:"selenium_ready"`
}

// SunatRemoteError carries the sidecar's own message for a rejected call.
type SunatRemoteError struct {
	StatusCode int
	Message    string
}

func (e *SunatRemoteError) Error() string {
	return fmt.Sprintf("sunat: sidecar returned %d: %s", e.StatusCode, e.Message)
}

// SunatClient talks to the SUNAT sidecar, which drives the SUNAT portal and
// reports progress as an asynchronous task.
type SunatClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSunatClient(baseURL string) *SunatClient {
	return &SunatClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Emitir submits a document and returns the task id. Only 202 Accepted counts
// as success.
func (c *SunatClient) Emitir(ctx context.Context, req EmitirRequest) (string, error) {
	resp, err := c.postJSON(ctx, sunatEmitirPath, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", remoteError(resp)
	}
	var body struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("sunat: decode emitir response: %w", err)
	}
	if body.TaskID == "" {
		return "", fmt.Errorf("sunat: emitir response without task_id")
	}
	return body.TaskID, nil
}

// EstadoTarea fetches the current state of a submission task.
func (c *SunatClient) EstadoTarea(ctx context.Context, taskID string) (*TareaEstado, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sunatStatusPath+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("sunat: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sunat: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}
	var estado TareaEstado
	if err := json.NewDecoder(resp.Body).Decode(&estado); err != nil {
		return nil, fmt.Errorf("sunat: decode status: %w", err)
	}
	return &estado, nil
}

// Validar asks the sidecar to check a payload without submitting it.
func (c *SunatClient) Validar(ctx context.Context, req EmitirRequest) (*ValidacionResultado, error) {
	resp, err := c.postJSON(ctx, sunatValidarPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}
	var out ValidacionResultado
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("sunat: decode validation: %w", err)
	}
	return &out, nil
}

// Health reports the sidecar's own readiness.
func (c *SunatClient) Health(ctx context.Context) (*SunatHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sunatHealthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("sunat: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sunat: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}
	var h SunatHealth
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("sunat: decode health: %w", err)
	}
	return &h, nil
}

func (c *SunatClient) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sunat: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sunat: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sunat: sidecar unreachable: %w", err)
	}
	return resp, nil
}

// remoteError extracts the sidecar's message. FastAPI style bodies carry it
// under "detail"; anything else is returned as plain text.
func remoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
		msg = body.Detail
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &SunatRemoteError{StatusCode: resp.StatusCode, Message: msg}
}
