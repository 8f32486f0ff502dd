package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"factumovil/internal/infra"
	"factumovil/internal/model"
	"factumovil/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── stubs ────────────────────────────────────────────────────────────────────

type stubProcesador struct {
	comp *model.Comprobante
	err  error
	ids  []uuid.UUID
}

func (p *stubProcesador) ProcesarEmision(_ context.Context, id uuid.UUID) (*model.Comprobante, error) {
	p.ids = append(p.ids, id)
	return p.comp, p.err
}

type dlqEntry struct {
	queue, reason string
	payload       json.RawMessage
}

type stubDLQ struct {
	mu      sync.Mutex
	entries []dlqEntry
}

func (d *stubDLQ) Send(_ context.Context, queue, _ string, payload json.RawMessage, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, dlqEntry{queue: queue, reason: reason, payload: payload})
}

type stubEmails struct{ jobs []EmailJobPayload }

func (e *stubEmails) EncolarEmail(_ context.Context, p EmailJobPayload) error {
	e.jobs = append(e.jobs, p)
	return nil
}

type stubMailer struct {
	enabled  bool
	to, file string
	pdf      []byte
}

func (m *stubMailer) Enabled() bool { return m.enabled }

func (m *stubMailer) SendComprobante(to, _, _, filename string, pdf []byte) error {
	m.to, m.file, m.pdf = to, filename, pdf
	return nil
}

type stubPDFs struct{ err error }

func (s stubPDFs) ObtenerPDF(_ context.Context, _ uuid.UUID) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("%PDF-1.4"), "B001-00000001.pdf", nil
}

// stubRepo implements only what the sweeper touches.
type stubRepo struct {
	repository.ComprobanteRepository
	mu     sync.Mutex
	stale  []model.Comprobante
	limite time.Time
	// terminados were finished by a worker after the listing.
	terminados map[uuid.UUID]bool
	cerrados   []cierre
}

type cierre struct {
	id              uuid.UUID
	estado, mensaje string
}

func (r *stubRepo) ListProcesandoAntesDe(_ context.Context, limite time.Time, _ int) ([]model.Comprobante, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limite = limite
	out := r.stale
	r.stale = nil
	return out, nil
}

func (r *stubRepo) CerrarSiProcesando(_ context.Context, id uuid.UUID, estado, mensaje string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminados[id] {
		return false, nil
	}
	r.cerrados = append(r.cerrados, cierre{id: id, estado: estado, mensaje: mensaje})
	return true, nil
}

func aceptado() *model.Comprobante {
	return &model.Comprobante{
		ID: uuid.New(), Serie: "B001", Numero: "00000001",
		Estado: model.EstadoAceptado, Total: decimal.RequireFromString("17.7"),
	}
}

func payloadEmision(t *testing.T, id uuid.UUID, email *string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(EmisionJobPayload{ComprobanteID: id.String(), ClienteEmail: email})
	require.NoError(t, err)
	return b
}

// ── EmisionWorker ────────────────────────────────────────────────────────────

func TestEmisionWorker_AceptadoEncolaEmail(t *testing.T) {
	comp := aceptado()
	proc := &stubProcesador{comp: comp}
	emails := &stubEmails{}
	dlq := &stubDLQ{}
	email := "cliente@example.com"

	NewEmisionWorker(proc, emails, dlq).Process(context.Background(), payloadEmision(t, comp.ID, &email))

	require.Equal(t, []uuid.UUID{comp.ID}, proc.ids)
	require.Len(t, emails.jobs, 1)
	assert.Equal(t, email, emails.jobs[0].ToEmail)
	assert.Equal(t, comp.ID.String(), emails.jobs[0].ComprobanteID)
	assert.Contains(t, emails.jobs[0].Body, "17.70")
	assert.Empty(t, dlq.entries)
}

func TestEmisionWorker_SinEmailNoEncola(t *testing.T) {
	comp := aceptado()
	emails := &stubEmails{}
	NewEmisionWorker(&stubProcesador{comp: comp}, emails, &stubDLQ{}).Process(context.Background(), payloadEmision(t, comp.ID, nil))
	assert.Empty(t, emails.jobs)
}

func TestEmisionWorker_FalloTerminalVaAlDLQ(t *testing.T) {
	comp := aceptado()
	comp.Estado = model.EstadoFallo
	proc := &stubProcesador{comp: comp, err: errors.New("RUC inválido")}
	emails := &stubEmails{}
	dlq := &stubDLQ{}
	email := "cliente@example.com"

	NewEmisionWorker(proc, emails, dlq).Process(context.Background(), payloadEmision(t, comp.ID, &email))

	require.Len(t, dlq.entries, 1)
	assert.Equal(t, QueueEmision, dlq.entries[0].queue)
	assert.Contains(t, dlq.entries[0].reason, "FALLO B001-00000001")
	assert.Contains(t, dlq.entries[0].reason, "RUC inválido")
	assert.Empty(t, emails.jobs)
}

func TestEmisionWorker_CancelacionNoVaAlDLQ(t *testing.T) {
	dlq := &stubDLQ{}
	proc := &stubProcesador{comp: aceptado(), err: context.Canceled}
	NewEmisionWorker(proc, nil, dlq).Process(context.Background(), payloadEmision(t, uuid.New(), nil))
	assert.Empty(t, dlq.entries)
}

func TestEmisionWorker_PayloadInvalido(t *testing.T) {
	dlq := &stubDLQ{}
	proc := &stubProcesador{}
	w := NewEmisionWorker(proc, nil, dlq)

	w.Process(context.Background(), json.RawMessage(`{"comprobante_id":"no-es-uuid"}`))
	w.Process(context.Background(), json.RawMessage(`not json`))

	assert.Empty(t, proc.ids)
	assert.Len(t, dlq.entries, 2)
}

// ── EmailWorker ──────────────────────────────────────────────────────────────

func emailPayload(t *testing.T) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(EmailJobPayload{ComprobanteID: uuid.NewString(), ToEmail: "a@b.pe", Subject: "s", Body: "b"})
	require.NoError(t, err)
	return b
}

func TestEmailWorker_EnviaPDF(t *testing.T) {
	m := &stubMailer{enabled: true}
	NewEmailWorker(m, stubPDFs{}).Process(context.Background(), emailPayload(t))
	assert.Equal(t, "a@b.pe", m.to)
	assert.Equal(t, "B001-00000001.pdf", m.file)
	assert.Equal(t, []byte("%PDF-1.4"), m.pdf)
}

func TestEmailWorker_SMTPDeshabilitadoOPDFFaltante(t *testing.T) {
	m := &stubMailer{}
	NewEmailWorker(m, stubPDFs{}).Process(context.Background(), emailPayload(t))
	assert.Empty(t, m.to)

	m.enabled = true
	NewEmailWorker(m, stubPDFs{err: errors.New("PDF no disponible")}).Process(context.Background(), emailPayload(t))
	assert.Empty(t, m.to)
}

// ── processJob routing ───────────────────────────────────────────────────────

type recordingHandler struct{ got []json.RawMessage }

func (h *recordingHandler) Process(_ context.Context, raw json.RawMessage) {
	h.got = append(h.got, raw)
}

func TestProcessJob_RoutesByType(t *testing.T) {
	em, ml := &recordingHandler{}, &recordingHandler{}
	h := Handlers{Emision: em, Email: ml}
	lg := infra.Componente("test")

	processJob(context.Background(), h, QueueEmision, `{"type":"emision","payload":{"comprobante_id":"x"}}`, lg)
	processJob(context.Background(), h, QueueEmail, `{"type":"email","payload":{}}`, lg)
	processJob(context.Background(), h, QueueEmail, `{"type":"desconocido","payload":{}}`, lg)
	processJob(context.Background(), h, QueueEmail, `garbage`, lg)

	require.Len(t, em.got, 1)
	assert.JSONEq(t, `{"comprobante_id":"x"}`, string(em.got[0]))
	assert.Len(t, ml.got, 1)
}

// ── Sweeper ──────────────────────────────────────────────────────────────────

func TestBarrer_MarcaFallo(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	repo := &stubRepo{stale: []model.Comprobante{
		{ID: uuid.New(), Serie: "B001", Numero: "00000003", Estado: model.EstadoProcesando},
		{ID: uuid.New(), Serie: "F001", Numero: "00000001", Estado: model.EstadoProcesando},
	}}
	dlq := &stubDLQ{}

	n, err := Barrer(context.Background(), SweeperConfig{
		Repo: repo, TaskTimeout: 300 * time.Second, Clock: clockwork.NewFakeClockAt(now), DLQ: dlq,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, now.Add(-7*time.Minute), repo.limite)
	require.Len(t, repo.cerrados, 2)
	for _, c := range repo.cerrados {
		assert.Equal(t, model.EstadoFallo, c.estado)
		assert.Equal(t, model.MensajeTimeout, c.mensaje)
	}
	assert.Len(t, dlq.entries, 2)
}

func TestBarrer_OmiteDocumentoYaTerminado(t *testing.T) {
	listo := uuid.New()
	colgado := uuid.New()
	repo := &stubRepo{
		stale: []model.Comprobante{
			{ID: listo, Serie: "B001", Numero: "00000004", Estado: model.EstadoProcesando},
			{ID: colgado, Serie: "B001", Numero: "00000005", Estado: model.EstadoProcesando},
		},
		terminados: map[uuid.UUID]bool{listo: true},
	}
	dlq := &stubDLQ{}

	n, err := Barrer(context.Background(), SweeperConfig{
		Repo: repo, TaskTimeout: 300 * time.Second, Clock: clockwork.NewFakeClock(), DLQ: dlq,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	require.Len(t, repo.cerrados, 1)
	assert.Equal(t, colgado, repo.cerrados[0].id)
	require.Len(t, dlq.entries, 1)
	assert.Contains(t, string(dlq.entries[0].payload), colgado.String())
}

func TestStartSweeper_CorrePorTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	repo := &stubRepo{stale: []model.Comprobante{{ID: uuid.New(), Estado: model.EstadoProcesando}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartSweeper(ctx, SweeperConfig{Repo: repo, TaskTimeout: time.Minute, Clock: fc})
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(sweepTickInterval)

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.cerrados) == 1
	}, time.Second, 10*time.Millisecond)
}
