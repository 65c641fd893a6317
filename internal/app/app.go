package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/progressfacts/internal/data/mirror"
	"github.com/yungbote/progressfacts/internal/http"
	"github.com/yungbote/progressfacts/internal/observability"
	"github.com/yungbote/progressfacts/internal/platform/logger"
	"github.com/yungbote/progressfacts/internal/progress/backfill"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Metrics  *observability.Metrics
	Storage  *Storage
	Mirror   mirror.Mirror
	Services Services
	Router   *gin.Engine

	closeMirror  func() error
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		SampleRatio: cfg.Otel.SampleRatio,
	})
	metrics := observability.Init(observability.MetricsConfig{Enabled: cfg.Metrics.Enabled})

	storage, err := resolveStorage(log, cfg, storeOptions(metrics)...)
	if err != nil {
		log.Sync()
		return nil, err
	}
	m, closeMirror, err := resolveMirror(log, cfg, storage.Store)
	if err != nil {
		storage.Close()
		log.Sync()
		return nil, err
	}

	serviceset := wireServices(log, cfg, storage, m, metrics)
	handlerset := wireHandlers(log, serviceset, storage)
	middleware := wireMiddleware(log, cfg)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Storage:      storage,
		Mirror:       m,
		Services:     serviceset,
		Router:       router,
		closeMirror:  closeMirror,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background collectors and the SLO evaluator.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics == nil {
		return
	}
	if a.Storage != nil && a.Storage.SQL != nil {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.Storage.SQL.DB())
	}
	if rm, ok := a.Mirror.(*mirror.RedisMirror); ok {
		a.Metrics.StartRedisCollector(ctx, a.Log, rm.Client())
	}
	if a.Cfg.Metrics.SLOEnabled {
		slo := observability.DefaultSLOConfig()
		slo.Enabled = true
		slo.AlertWebhook = a.Cfg.Metrics.SLOAlertWebhook
		a.Metrics.StartSLOEvaluator(ctx, a.Log, slo)
	}
}

// Run serves the API until ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Serving progress API", "addr", a.Cfg.Addr())
	return (&http.Server{Engine: a.Router}).Run(ctx, a.Cfg.Addr())
}

// Reconciler builds a backfill reconciler over the app's stores, for
// offline runs that need options the API's reconciler does not use.
func (a *App) Reconciler(opts ...backfill.Option) *backfill.Reconciler {
	if a.Metrics != nil {
		opts = append([]backfill.Option{backfill.WithHooks(a.Metrics)}, opts...)
	}
	return backfill.New(a.Storage.Store, a.Mirror, a.Storage.History, a.Log, opts...)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Services.Close()
	if a.closeMirror != nil {
		_ = a.closeMirror()
	}
	a.Storage.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
