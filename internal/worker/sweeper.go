package worker

// sweeper.go
// Closes documents stuck in PROCESANDO, e.g. after a crash mid-poll or a
// failed enqueue. Anything older than the SUNAT task ceiling plus a grace
// period can no longer be waiting on a live poll loop.

import (
	"context"
	"encoding/json"
	"time"

	"factumovil/internal/infra"
	"factumovil/internal/model"
	"factumovil/internal/repository"

	"github.com/jonboulle/clockwork"
)

const (
	sweepTickInterval = time.Minute
	sweepBatchSize    = 50
	sweepGrace        = 2 * time.Minute
)

type SweeperConfig struct {
	Repo repository.ComprobanteRepository
	// TaskTimeout is the orchestrator's polling ceiling.
	TaskTimeout time.Duration
	Clock       clockwork.Clock
	DLQ         DeadLetter // optional
}

// StartSweeper ticks every minute until ctx ends.
func StartSweeper(ctx context.Context, cfg SweeperConfig) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	go func() {
		lg := infra.Componente("sweeper")
		ticker := cfg.Clock.NewTicker(sweepTickInterval)
		defer ticker.Stop()
		lg.Info().Msg("started")

		for {
			select {
			case <-ctx.Done():
				lg.Info().Msg("shutting down")
				return
			case <-ticker.Chan():
				if _, err := Barrer(ctx, cfg); err != nil {
					lg.Error().Err(err).Msg("sweep failed")
				}
			}
		}
	}()
}

// Barrer marks stale PROCESANDO documents as FALLO and returns how many it closed.
func Barrer(ctx context.Context, cfg SweeperConfig) (int, error) {
	lg := infra.Componente("sweeper")
	limite := cfg.Clock.Now().Add(-(cfg.TaskTimeout + sweepGrace))
	comps, err := cfg.Repo.ListProcesandoAntesDe(ctx, limite, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	cerrados := 0
	for i := range comps {
		comp := &comps[i]
		cerrado, err := cfg.Repo.CerrarSiProcesando(ctx, comp.ID, model.EstadoFallo, model.MensajeTimeout)
		if err != nil {
			lg.Error().Err(err).Str("comprobante_id", comp.ID.String()).Msg("could not close stale document")
			continue
		}
		if !cerrado {
			// A worker stored the result after the listing.
			continue
		}
		cerrados++
		lg.Warn().Str("comprobante_id", comp.ID.String()).Str("serie_numero", comp.SerieNumero()).Msg("stale document marked FALLO")
		if cfg.DLQ != nil {
			payload, _ := json.Marshal(EmisionJobPayload{ComprobanteID: comp.ID.String()})
			cfg.DLQ.Send(ctx, QueueEmision, jobEmision, payload, model.MensajeTimeout)
		}
	}
	return cerrados, nil
}
