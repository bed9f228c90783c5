package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/stocksync/internal/broker"
	"github.com/jmehdipour/stocksync/internal/config"
	"github.com/jmehdipour/stocksync/internal/http/middleware"
	"github.com/jmehdipour/stocksync/internal/ingest"
	"github.com/jmehdipour/stocksync/internal/logger"
	"github.com/jmehdipour/stocksync/internal/metrics"
	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmehdipour/stocksync/internal/provider"
	"github.com/jmehdipour/stocksync/internal/repository"
	"github.com/jmehdipour/stocksync/internal/service/batchsync"
	"github.com/jmehdipour/stocksync/internal/service/companysync"
	"github.com/jmehdipour/stocksync/internal/service/dispatch"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, batchSize int) model.DispatchReport
}

type Ingester interface {
	Handle(ctx context.Context, body []byte) (*model.BatchSyncResult, error)
}

type CompanySyncer interface {
	UpsertCompany(ctx context.Context, symbol string) (*model.Company, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Dispatcher  Dispatcher
	Ingester    Ingester
	Companies   CompanySyncer
	SyncResults repository.SyncResultsRepository
	Redis       *redis.Client
}

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, pub broker.Publisher, profiles *provider.Pool) *Server {
	// repos (MySQL)
	companiesRepo := repository.NewCompaniesRepository(mysqlDB)

	// repos (ClickHouse)
	syncResultsRepo := repository.NewCHSyncResultsRepository(clickhouseDB)

	// services
	companySvc := companysync.New(profiles, companiesRepo)
	executor := batchsync.New(companySvc,
		batchsync.WithPinger(mysqlDB),
		batchsync.WithRecorder(syncResultsRepo),
		batchsync.WithItemDelay(cfg.Sync.ItemDelay),
		batchsync.WithLogger(logger.Log.Named("batchsync")),
	)
	dispatcher := dispatch.New(companiesRepo, pub, cfg.Broker.CompanySyncTopic, cfg.Dispatch.BatchSize, logger.Log.Named("dispatch"))

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e := newEcho(cfg, Deps{
		Dispatcher:  dispatcher,
		Ingester:    ingest.NewHandler(executor, logger.Log.Named("ingest")),
		Companies:   companySvc,
		SyncResults: syncResultsRepo,
		Redis:       rds,
	})

	return &Server{e: e}
}

func newEcho(cfg config.Config, d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// push delivery: never rate limited, the broker owns redelivery pacing
	bodyLimit := cfg.HTTP.WebhookLimit
	if bodyLimit == "" {
		bodyLimit = "1M"
	}
	e.POST("/internal/pubsub-webhook", pubsubWebhookHandler(d.Ingester),
		echoMid.BodyLimit(bodyLimit),
		middleware.PushTokenMiddleware(cfg.Push.Token),
	)

	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	internal := e.Group("/internal", rlMW)
	internal.POST("/scheduler/sync-company-weekly", syncCompanyWeeklyHandler(d.Dispatcher))
	internal.POST("/companies/:symbol/sync", syncCompanyHandler(d.Companies))
	internal.GET("/sync/results", listSyncResultsHandler(d.SyncResults))

	return e
}

func echoLogLevel(level string) log.Lvl {
	switch logger.ParseLevel(level).String() {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
