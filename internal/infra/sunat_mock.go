package infra

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// A one-page blank PDF, enough for viewers and mail clients to accept the attachment.
const mockPDF = "%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 226 340]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n%%EOF\n"

// MockSunatClient stands in for the sidecar in development (SUNAT_MOCK=true).
// Every submission is accepted and completes on the first status poll with
// the series, number and total it was sent. A task can be polled once.
type MockSunatClient struct {
	mu     sync.Mutex
	tareas map[string]EmitirRequest
}

func NewMockSunatClient() *MockSunatClient {
	return &MockSunatClient{tareas: make(map[string]EmitirRequest)}
}

func (m *MockSunatClient) Emitir(_ context.Context, req EmitirRequest) (string, error) {
	id := "mock-" + uuid.NewString()
	m.mu.Lock()
	m.tareas[id] = req
	m.mu.Unlock()
	return id, nil
}

func (m *MockSunatClient) EstadoTarea(_ context.Context, taskID string) (*TareaEstado, error) {
	// Tasks complete on the first poll, so the entry is not needed after it.
	m.mu.Lock()
	req, ok := m.tareas[taskID]
	delete(m.tareas, taskID)
	m.mu.Unlock()
	if !ok {
		return nil, &SunatRemoteError{StatusCode: 404, Message: "Tarea no encontrada"}
	}

	tipo := tipoDocBoleta
	if req.TipoDocumento == tipoDocFactura {
		tipo = tipoDocFactura
	}
	total := req.Resumen.Total
	pdf := []byte(mockPDF)
	return &TareaEstado{
		TaskID: taskID,
		Status: TareaCompletada,
		Result: &TareaResultado{
			Success: true,
			Message: fmt.Sprintf("%s emitida correctamente (MOCK)", tipo),
			Serie:   req.Resumen.Serie,
			Numero:  req.Resumen.Numero,
			Total:   &total,
			PDF: &SunatPDF{
				Filename:          fmt.Sprintf("mock-%s-%s.pdf", req.Resumen.Serie, req.Resumen.Numero),
				Content:           base64.StdEncoding.EncodeToString(pdf),
				Size:              int64(len(pdf)),
				MimeType:          "application/pdf",
				NumeroComprobante: req.Resumen.Serie + "-" + req.Resumen.Numero,
			},
		},
	}, nil
}

func (m *MockSunatClient) Validar(_ context.Context, req EmitirRequest) (*ValidacionResultado, error) {
	out := &ValidacionResultado{Valid: true, Errors: []string{}, Warnings: []string{"Validación simulada (MOCK)"}}
	if len(req.Productos) == 0 {
		out.Valid = false
		out.Errors = append(out.Errors, "Debe incluir al menos un producto")
	}
	return out, nil
}

func (m *MockSunatClient) Health(_ context.Context) (*SunatHealth, error) {
	return &SunatHealth{Status: "mock", SeleniumReady: true}, nil
}
