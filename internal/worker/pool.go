package worker

import (
	"context"
	"encoding/json"
	"time"

	"factumovil/internal/infra"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	QueueEmision = "jobs:emision"
	QueueEmail   = "jobs:email"
)

const (
	jobEmision = "emision"
	jobEmail   = "email"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JobHandler processes one decoded job payload.
type JobHandler interface {
	Process(ctx context.Context, raw json.RawMessage)
}

// Handlers routes job types to their processors. A nil handler drops the job.
type Handlers struct {
	Emision JobHandler
	Email   JobHandler
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EncolarEmision queues a stored PROCESANDO document for the SUNAT exchange.
func (d *Dispatcher) EncolarEmision(ctx context.Context, comprobanteID uuid.UUID, clienteEmail *string) error {
	return d.enqueue(ctx, QueueEmision, jobEmision, EmisionJobPayload{
		ComprobanteID: comprobanteID.String(),
		ClienteEmail:  clienteEmail,
	})
}

// EncolarEmail queues delivery of a document proof.
func (d *Dispatcher) EncolarEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, jobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, h Handlers) {
	lg := infra.Componente("worker")
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, h, lg)
	}
	lg.Info().Int("workers", numWorkers).Msg("worker pool started")
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, h Handlers, lg zerolog.Logger) {
	queues := []string{QueueEmision, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			lg.Debug().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil || len(result) < 2 {
				continue
			}
			processJob(ctx, h, result[0], result[1], lg)
		}
	}
}

func processJob(ctx context.Context, h Handlers, queue, raw string, lg zerolog.Logger) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		lg.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	var handler JobHandler
	switch job.Type {
	case jobEmision:
		handler = h.Emision
	case jobEmail:
		handler = h.Email
	}
	if handler == nil {
		lg.Warn().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		return
	}
	handler.Process(ctx, job.Payload)
}
