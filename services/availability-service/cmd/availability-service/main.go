package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/availmgr/libs/config"
	"github.com/md-rashed-zaman/availmgr/libs/db"
	"github.com/md-rashed-zaman/availmgr/libs/httpx"
	"github.com/md-rashed-zaman/availmgr/libs/kafkax"
	"github.com/md-rashed-zaman/availmgr/libs/metrics"
	otelx "github.com/md-rashed-zaman/availmgr/libs/otel"
	"github.com/md-rashed-zaman/availmgr/libs/runtime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/conflict"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/holiday"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/importer"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/memstore"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/storage"
)

type Config struct {
	ServiceName        string        `envconfig:"SERVICE_NAME" default:"availability-service"`
	Port               string        `envconfig:"PORT" default:"8090"`
	Store              string        `envconfig:"STORE" default:"postgres"`
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	KafkaBrokers       string        `envconfig:"KAFKA_BROKERS"`
	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	PublicRateLimit    int           `envconfig:"PUBLIC_RATE_LIMIT" default:"60"`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ShutdownGrace      time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
}

// backend is everything the service layer needs from persistence.
type backend interface {
	calendar.Store
	conflict.Store
	availability.Store
	booking.Store
	booking.LinkStore
	importer.Store
}

func main() {
	if err := config.LoadDotenv(); err != nil {
		panic(err)
	}
	var cfg Config
	if err := config.Load("", &cfg); err != nil {
		panic(err)
	}
	if _, err := config.Port("PORT", cfg.Port); err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	m := metrics.New(cfg.ServiceName)
	brokers := kafkax.SplitBrokers(cfg.KafkaBrokers)

	var (
		store  backend
		writer outbox.Writer
		checks []runtime.ReadyCheck
	)
	switch cfg.Store {
	case "memory":
		mem := memstore.New()
		store, writer = mem, mem
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		if cfg.DatabaseURL == "" {
			logger.Error("DATABASE_URL is required unless STORE=memory")
			return
		}
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository(pool)
		store, writer = storage.NewStore(pool, logger), outboxRepo
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, m, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: cfg.OutboxPollInterval,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		if len(brokers) > 0 {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
	}

	limiter := newLimiter(cfg, logger, &checks)

	federal := holiday.NewFederal()
	calc := availability.NewCalculator(store, federal, logger, m)
	detector := conflict.NewDetector(store, writer, logger, m)
	h := handlers.New(
		calendar.NewService(store, detector, calc, federal, logger),
		booking.NewEngine(store, calc, writer, logger, m),
		booking.NewLinks(store, logger),
		importer.New(store, logger),
		logger,
	)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", m.Handler())
	h.Register(mux,
		httpx.WithCORS(httpx.PublicBookingCORS(config.List(cfg.CORSAllowedOrigins))),
		httpx.WithRateLimit(limiter, logger, true),
	)

	httpHandler := httpx.Chain(m.Middleware(mux),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(16<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.Serve(ctx, srv, logger, cfg.ShutdownGrace)
}

// newLimiter prefers a shared Redis window so limits hold across replicas.
func newLimiter(cfg Config, logger *slog.Logger, checks *[]runtime.ReadyCheck) httpx.Limiter {
	const window = time.Minute
	if cfg.RedisAddr == "" {
		return httpx.NewMemoryLimiter(cfg.PublicRateLimit, window)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	*checks = append(*checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	logger.Info("public rate limit backed by redis", "addr", cfg.RedisAddr)
	return httpx.NewRedisLimiter(rdb, cfg.PublicRateLimit, window, cfg.ServiceName+":ratelimit:")
}
