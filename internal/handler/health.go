package handler

import (
	"context"
	"net/http"
	"time"

	"factumovil/internal/infra"
	"factumovil/internal/service"
	"factumovil/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthDeps are the probes behind GET /health. Redis, CB, Sunat and DLQ are optional.
type HealthDeps struct {
	DB    *gorm.DB
	Redis *redis.Client
	CB    *infra.CircuitBreaker
	Sunat service.SunatGateway
	DLQ   *worker.DLQ
}

// Health reports DB, Redis and SUNAT sidecar status. Only the database is
// required for a 200; the rest is informational.
func Health(d HealthDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{}

		dbStatus := "connected"
		sqlDB, err := d.DB.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}
		body["db"] = dbStatus

		switch {
		case d.Redis == nil:
			body["redis"] = "disabled"
		case d.Redis.Ping(ctx).Err() != nil:
			body["redis"] = "error"
		default:
			body["redis"] = "connected"
		}

		if d.CB != nil {
			body["sunat_circuit"] = d.CB.State().String()
		}
		if d.Sunat != nil {
			if h, err := d.Sunat.Health(ctx); err != nil {
				body["sunat"] = "error"
			} else {
				body["sunat"] = h.Status
			}
		}
		if d.DLQ != nil {
			if n, err := d.DLQ.Len(ctx, worker.QueueEmision); err == nil {
				body["dlq_emision"] = n
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" {
			status = http.StatusServiceUnavailable
		}
		body["ok"] = status == http.StatusOK
		c.JSON(status, body)
	}
}
