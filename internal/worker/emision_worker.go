package worker

// emision_worker.go
// Runs the SUNAT exchange for documents queued on QueueEmision and, once
// accepted, hands the proof to the email queue when the buyer left an address.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"factumovil/internal/infra"
	"factumovil/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EmisionJobPayload is the job envelope sent to QueueEmision.
type EmisionJobPayload struct {
	ComprobanteID string  `json:"comprobante_id"`
	ClienteEmail  *string `json:"cliente_email,omitempty"`
}

// ProcesadorEmision drives one stored document to a terminal state.
type ProcesadorEmision interface {
	ProcesarEmision(ctx context.Context, id uuid.UUID) (*model.Comprobante, error)
}

// EncoladorEmail is satisfied by *Dispatcher.
type EncoladorEmail interface {
	EncolarEmail(ctx context.Context, payload EmailJobPayload) error
}

type EmisionWorker struct {
	procesador ProcesadorEmision
	emails     EncoladorEmail
	dlq        DeadLetter
	log        zerolog.Logger
}

// NewEmisionWorker wires the emission job handler. emails may be nil when
// SMTP is not configured.
func NewEmisionWorker(procesador ProcesadorEmision, emails EncoladorEmail, dlq DeadLetter) *EmisionWorker {
	return &EmisionWorker{
		procesador: procesador,
		emails:     emails,
		dlq:        dlq,
		log:        infra.Componente("emision_worker"),
	}
}

func (w *EmisionWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload EmisionJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		w.log.Error().Err(err).Msg("invalid payload")
		w.dlq.Send(ctx, QueueEmision, jobEmision, raw, "payload invalido: "+err.Error())
		return
	}
	id, err := uuid.Parse(payload.ComprobanteID)
	if err != nil {
		w.log.Error().Str("comprobante_id", payload.ComprobanteID).Msg("invalid comprobante id")
		w.dlq.Send(ctx, QueueEmision, jobEmision, raw, "comprobante_id invalido")
		return
	}
	lg := w.log.With().Str("comprobante_id", id.String()).Logger()

	comp, err := w.procesador.ProcesarEmision(ctx, id)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Left PROCESANDO; the sweeper closes it.
		lg.Warn().Err(err).Msg("emision interrumpida")
		return
	}
	if err != nil {
		reason := err.Error()
		if comp != nil {
			reason = fmt.Sprintf("%s %s: %s", comp.Estado, comp.SerieNumero(), err)
		}
		lg.Warn().Err(err).Msg("emision fallida")
		w.dlq.Send(ctx, QueueEmision, jobEmision, raw, reason)
		return
	}
	lg.Info().Str("estado", comp.Estado).Str("serie_numero", comp.SerieNumero()).Msg("emision procesada")

	if comp.Estado != model.EstadoAceptado || payload.ClienteEmail == nil || *payload.ClienteEmail == "" || w.emails == nil {
		return
	}
	if err := w.emails.EncolarEmail(ctx, EmailJobPayload{
		ComprobanteID: id.String(),
		ToEmail:       *payload.ClienteEmail,
		Subject:       fmt.Sprintf("Comprobante %s", comp.SerieNumero()),
		Body:          fmt.Sprintf("Adjuntamos su comprobante electrónico %s por un total de S/ %s.", comp.SerieNumero(), comp.Total.StringFixed(2)),
	}); err != nil {
		lg.Error().Err(err).Msg("no se pudo encolar el email")
	}
}
