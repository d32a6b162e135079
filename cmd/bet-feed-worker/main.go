package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/bet-feed/cache"
	"github.com/radieske/provably-fair-dice/internal/bet-feed/consumer"
	"github.com/radieske/provably-fair-dice/internal/bet-feed/pubsub"
	sharedcache "github.com/radieske/provably-fair-dice/internal/shared/cache"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/internal/shared/kafka"
	"github.com/radieske/provably-fair-dice/internal/shared/logger"
	"github.com/radieske/provably-fair-dice/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "bet-feed-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	redisClient, err := sharedcache.ConnectRedis(context.Background(), cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// consumer group bet-feed: cada aposta entra uma vez na lista de recentes
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "bet-feed")
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_feed_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_feed_cache_pushes_total", Help: "apostas gravadas na lista de recentes"})
	broadcast := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_feed_broadcasts_total", Help: "apostas publicadas no canal do websocket"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_feed_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, broadcast, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Cache:       cache.NewRedisCache(redisClient, cfg.RecentFeedSize),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient, cfg.RedisFeedChannel),
		OnConsumed:  func() { consumed.Inc() },
		OnCached:    func() { cached.Inc() },
		OnBroadcast: func() { broadcast.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	srv := metrics.StartMetricsServer(cfg.MetricsPort, log, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("bet-feed-worker started",
		zap.String("consume", cfg.TopicBetSettled),
		zap.String("channel", cfg.RedisFeedChannel),
		zap.Int64("recentSize", cfg.RecentFeedSize))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("bet-feed-worker stopped")
}
