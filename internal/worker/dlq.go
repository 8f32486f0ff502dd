package worker

// dlq.go: dead letter list per source queue (dlq:{queue}). Emission is
// never retried automatically, so every terminal failure lands here for
// manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"factumovil/internal/infra"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC 3339
}

// DeadLetter receives jobs that reached a terminal failure.
type DeadLetter interface {
	Send(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string)
}

type DLQ struct {
	rdb   *redis.Client
	clock clockwork.Clock
	log   zerolog.Logger
}

func NewDLQ(rdb *redis.Client, clock clockwork.Clock) *DLQ {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DLQ{rdb: rdb, clock: clock, log: infra.Componente("dlq")}
}

// Send pushes a failed job. Errors are logged, never returned: the document
// state in the database is the source of truth.
func (q *DLQ) Send(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      q.clock.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		q.log.Error().Err(err).Str("queue", queue).Msg("failed to marshal entry")
		return
	}

	key := DLQPrefix + queue
	if err := q.rdb.LPush(ctx, key, data).Err(); err != nil {
		q.log.Error().Err(err).Str("dlq_key", key).Msg("failed to push to DLQ")
		return
	}
	q.log.Warn().Str("queue", queue).Str("job_type", jobType).Str("reason", reason).Msg("job moved to dead letter queue")
}

// Len returns the number of entries in a queue's DLQ, for the health check.
func (q *DLQ) Len(ctx context.Context, queue string) (int64, error) {
	return q.rdb.LLen(ctx, DLQPrefix+queue).Result()
}
