package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factumovil/internal/config"
	"factumovil/internal/infra"
	"factumovil/internal/router"
	"factumovil/internal/worker"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	// Structured logger (dev: pretty, prod: JSON)
	infra.SetupLogger(cfg.LogLevel, cfg.IsProduction())

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it emissions run inline in the request.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	} else {
		log.Warn().Msg("REDIS_URL empty: async queue disabled")
	}

	svcs := router.NewServices(cfg, db, rdb)

	// Worker handlers are wired here (composition root).
	if rdb != nil {
		var emails worker.EncoladorEmail
		if svcs.Mailer.Enabled() {
			emails = svcs.Dispatcher
		}
		worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, worker.Handlers{
			Emision: worker.NewEmisionWorker(svcs.Comprobantes, emails, svcs.DLQ),
			Email:   worker.NewEmailWorker(svcs.Mailer, svcs.Comprobantes),
		})
	}
	sweeper := worker.SweeperConfig{
		Repo:        svcs.ComprobanteRepo,
		TaskTimeout: cfg.SunatTimeout,
		Clock:       svcs.Clock,
	}
	if svcs.DLQ != nil {
		sweeper.DLQ = svcs.DLQ
	}
	worker.StartSweeper(ctx, sweeper)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.New(cfg, db, rdb, svcs),
		ReadHeaderTimeout: 10 * time.Second,
		// Inline emissions poll SUNAT for up to SUNAT_TIMEOUT.
		WriteTimeout: cfg.SunatTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("FactuMovil backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	cancel()
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
