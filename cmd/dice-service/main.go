package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/accounts"
	dhttp "github.com/radieske/provably-fair-dice/internal/dice-service/http"
	kpub "github.com/radieske/provably-fair-dice/internal/dice-service/producer"
	"github.com/radieske/provably-fair-dice/internal/dice-service/ws"
	"github.com/radieske/provably-fair-dice/internal/fairness"
	"github.com/radieske/provably-fair-dice/internal/history"
	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/seeds"
	"github.com/radieske/provably-fair-dice/internal/settlement"
	"github.com/radieske/provably-fair-dice/internal/shared/cache"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/internal/shared/db"
	"github.com/radieske/provably-fair-dice/internal/shared/kafka"
	"github.com/radieske/provably-fair-dice/internal/shared/logger"
	"github.com/radieske/provably-fair-dice/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dice-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	cat, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		log.Fatal("catalog", zap.Error(err))
	}
	alg, err := fairness.ParseAlgorithm(cfg.OutcomeHMAC)
	if err != nil {
		log.Fatal("outcome hmac", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis é opcional: sem ele não há cache de contas nem feed ao vivo
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, live feed and account cache disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// Backends: postgres (padrão) ou memória
	var (
		pg      *sql.DB
		seedSt  seeds.Store
		led     ledger.Store
		dir     accounts.Directory
		hist    history.Store
		seedMgr *seeds.Manager
	)
	switch cfg.StoreBackend {
	case "memory":
		seedSt = seeds.NewMemory()
		led = ledger.NewMemory()
		dir = accounts.NewStatic(cat)
		seedMgr = seeds.NewManager(seedSt, log)
		hist = history.NewMemory(seedMgr)
		log.Warn("memory backend: state is lost on restart")
	case "postgres":
		pg, err = db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		if err := db.Migrate(ctx, pg); err != nil {
			log.Fatal("postgres migrate", zap.Error(err))
		}
		seedSt = seeds.NewPostgres(pg)
		led = ledger.NewPostgres(pg)
		dir = accounts.NewPostgres(pg)
		seedMgr = seeds.NewManager(seedSt, log)
		hist = history.NewPostgres(pg)
	default:
		log.Fatal("unknown STORE_BACKEND", zap.String("backend", cfg.StoreBackend))
	}
	if rdb != nil {
		dir = accounts.NewRedisCache(rdb, cfg.AccountCacheTTL, dir, log)
	}

	// Kafka: um writer por tópico; publicação é best effort após a liquidação
	var publ *kpub.KafkaPublisher
	if cfg.KafkaBrokers != "" {
		settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
		rotatedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSeedRotated)
		dlqW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicCompensationRequired)
		defer settledW.Close()
		defer rotatedW.Close()
		defer dlqW.Close()
		publ = kpub.NewKafkaPublisher(settledW, rotatedW, dlqW)
		log.Info("kafka writers ready", zap.String("brokers", cfg.KafkaBrokers))
	}

	deps := settlement.Deps{
		Seeds:    seedMgr,
		Ledger:   led,
		History:  hist,
		Accounts: dir,
		Metrics:  settlement.NewMetrics(prometheus.DefaultRegisterer),
	}
	api := &dhttp.API{
		Log:           log,
		Seeds:         seedMgr,
		History:       hist,
		Ledger:        led,
		Accounts:      dir,
		Catalog:       cat,
		OperatorToken: cfg.OperatorToken,
	}
	if publ != nil {
		deps.Publisher = publ
		api.Events = publ
	}
	api.Engine = settlement.NewEngine(deps, settlement.Options{
		Catalog:             cat,
		Algorithm:           alg,
		HouseEdge:           cfg.HouseEdgeBps,
		Timeout:             cfg.SettleTimeout,
		CompensationRetries: cfg.CompensationRetries,
	}, log)

	// Feed ao vivo: bet-feed-worker publica no canal Redis, o hub repassa aos clientes
	if rdb != nil {
		hub := ws.NewHub(func(r *http.Request) bool { return true }, log)
		ws.StartRedisSubscriber(ctx, rdb, cfg.RedisFeedChannel, hub, log)
		api.Feed = hub
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, func(ctx context.Context) error {
		if pg != nil {
			if err := pg.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("dice-service listening",
			zap.String("addr", apiSrv.Addr),
			zap.String("backend", cfg.StoreBackend),
			zap.String("currencies", currencyList(cat)))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func currencyList(cat config.Catalog) string {
	codes := make([]string, 0, len(cat.Currencies))
	for _, c := range cat.Currencies {
		codes = append(codes, c.Code)
	}
	return strings.Join(codes, ",")
}
