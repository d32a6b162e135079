package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/compensation"
	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/internal/shared/db"
	"github.com/radieske/provably-fair-dice/internal/shared/kafka"
	"github.com/radieske/provably-fair-dice/internal/shared/logger"
	"github.com/radieske/provably-fair-dice/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "compensation-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// o worker só faz sentido contra o ledger persistente do dice-service
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: commit manual, só depois da mutação resolvida
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicCompensationRequired, "compensation-worker")
	defer reader.Close()

	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "compensation_worker_applied_total", Help: "compensações reaplicadas"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{Name: "compensation_worker_retries_total", Help: "tentativas com falha transitória"})
	parked := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "compensation_worker_parked_total", Help: "mensagens que exigem ação manual"}, []string{"reason"})
	prometheus.MustRegister(applied, retries, parked)

	w := &compensation.Worker{
		Log:        log,
		Reader:     reader,
		Ledger:     ledger.NewPostgres(pg),
		Retries:    cfg.CompensationRetries,
		Backoff:    300 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		OnApplied:  func() { applied.Inc() },
		OnParked:   func(reason string) { parked.WithLabelValues(reason).Inc() },
		OnRetry:    func() { retries.Inc() },
	}

	srv := metrics.StartMetricsServer(cfg.MetricsPort, log, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("compensation-worker started", zap.String("consume", cfg.TopicCompensationRequired))
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("compensation-worker stopped")
}
