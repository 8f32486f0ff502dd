package worker

// email_worker.go
// Processes email jobs from QueueEmail: loads the stored proof and sends it
// as an attachment.

import (
	"context"
	"encoding/json"

	"factumovil/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ComprobanteID string `json:"comprobante_id"`
	ToEmail       string `json:"to_email"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
}

// Remitente is satisfied by *infra.Mailer.
type Remitente interface {
	Enabled() bool
	SendComprobante(to, subject, body, filename string, pdf []byte) error
}

// FuentePDF returns a document's stored proof and its file name.
type FuentePDF interface {
	ObtenerPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error)
}

type EmailWorker struct {
	mailer Remitente
	pdfs   FuentePDF
	log    zerolog.Logger
}

func NewEmailWorker(mailer Remitente, pdfs FuentePDF) *EmailWorker {
	return &EmailWorker{mailer: mailer, pdfs: pdfs, log: infra.Componente("email_worker")}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		w.log.Error().Err(err).Msg("invalid payload")
		return
	}
	if payload.ToEmail == "" {
		w.log.Warn().Msg("empty to_email, skipping")
		return
	}
	if !w.mailer.Enabled() {
		w.log.Debug().Str("to", payload.ToEmail).Msg("SMTP not configured, skipping")
		return
	}
	id, err := uuid.Parse(payload.ComprobanteID)
	if err != nil {
		w.log.Error().Str("comprobante_id", payload.ComprobanteID).Msg("invalid comprobante id")
		return
	}

	pdf, nombre, err := w.pdfs.ObtenerPDF(ctx, id)
	if err != nil {
		w.log.Error().Err(err).Str("comprobante_id", id.String()).Msg("proof not available")
		return
	}
	if err := w.mailer.SendComprobante(payload.ToEmail, payload.Subject, payload.Body, nombre, pdf); err != nil {
		w.log.Error().Err(err).Str("to", payload.ToEmail).Msg("failed to send email")
		return
	}
	w.log.Info().Str("to", payload.ToEmail).Str("comprobante_id", id.String()).Msg("comprobante sent")
}
