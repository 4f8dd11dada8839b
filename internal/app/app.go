// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/incident-console/api"
	"github.com/bissquit/incident-console/internal/catalog"
	catalogpostgres "github.com/bissquit/incident-console/internal/catalog/postgres"
	"github.com/bissquit/incident-console/internal/config"
	"github.com/bissquit/incident-console/internal/identity"
	"github.com/bissquit/incident-console/internal/identity/jwt"
	identitypostgres "github.com/bissquit/incident-console/internal/identity/postgres"
	"github.com/bissquit/incident-console/internal/incidents"
	incidentspostgres "github.com/bissquit/incident-console/internal/incidents/postgres"
	"github.com/bissquit/incident-console/internal/notifications"
	"github.com/bissquit/incident-console/internal/notifications/mattermost"
	"github.com/bissquit/incident-console/internal/pkg/ctxlog"
	"github.com/bissquit/incident-console/internal/pkg/httputil"
	"github.com/bissquit/incident-console/internal/pkg/metrics"
	"github.com/bissquit/incident-console/internal/pkg/postgres"
	"github.com/bissquit/incident-console/internal/seed"
	"github.com/bissquit/incident-console/internal/sla"
	"github.com/bissquit/incident-console/internal/version"
	"github.com/bissquit/incident-console/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsInterval = 15 * time.Second

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	incidents     *incidents.Service
	breachWatcher *notifications.Watcher
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	if cfg.Seed.Enabled {
		if _, err := seed.Run(connectCtx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed database: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	if app.breachWatcher != nil {
		if err := app.breachWatcher.Start(metricsCtx); err != nil {
			db.Close()
			metricsCancel()
			return nil, fmt.Errorf("start breach watcher: %w", err)
		}
	}

	go app.collectMetrics(metricsCtx)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	if a.breachWatcher != nil {
		a.breachWatcher.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// BreachWatcher returns the SLA breach watcher. Used in tests to run a
// check on demand. Returns nil if notifications are disabled.
func (a *App) BreachWatcher() *notifications.Watcher {
	return a.breachWatcher
}

func (a *App) collectMetrics(ctx context.Context) {
	a.recordMetrics(ctx)

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.recordMetrics(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) recordMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	stats, err := a.incidents.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to compute incident stats", "error", err)
		}
		return
	}
	metrics.RecordIncidentStats(metrics.IncidentSnapshot{
		Total:       stats.TotalIncidents,
		Open:        stats.OpenIncidents,
		Closed:      stats.ClosedIncidents,
		MTTAMinutes: stats.MTTAMinutes,
		MTTRMinutes: stats.MTTRMinutes,
		BreachRate:  stats.BreachRate,
	})
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(api.OpenAPISpec)
	})

	catalogRepo := catalogpostgres.NewRepository(a.db)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(catalogService)

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:           a.config.JWT.SecretKey,
		AccessTokenDuration: a.config.JWT.AccessTokenDuration,
	})
	identityService := identity.NewService(identityRepo, jwtAuth)
	identityHandler := identity.NewHandler(identityService)

	resolver := sla.NewResolver(sla.Config{
		Defaults:      a.config.SLA.Defaults,
		FallbackHours: a.config.SLA.FallbackHours,
	})
	incidentsRepo := incidentspostgres.NewRepository(a.db)
	a.incidents = incidents.NewService(incidentsRepo, catalogService, identityService, resolver)
	incidentsHandler := incidents.NewHandler(a.incidents)

	slog.Info("notifications configured",
		"enabled", a.config.Notifications.Enabled,
		"schedule", a.config.Notifications.BreachCheckSchedule,
	)

	if a.config.Notifications.Enabled {
		watcher, err := a.newBreachWatcher()
		if err != nil {
			return nil, err
		}
		a.breachWatcher = watcher
	}

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			identityHandler.RegisterProtectedRoutes(r)
			catalogHandler.RegisterRoutes(r)
			incidentsHandler.RegisterRoutes(r)
		})
	})

	return r, nil
}

func (a *App) newBreachWatcher() (*notifications.Watcher, error) {
	cfg := a.config.Notifications

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	dispatcherConfig := notifications.DefaultDispatcherConfig()
	dispatcherConfig.RatePerSecond = cfg.RateLimit
	if cfg.MaxAttempts > 0 {
		dispatcherConfig.MaxAttempts = cfg.MaxAttempts
	}

	dispatcher := notifications.NewDispatcher(dispatcherConfig, mattermost.NewSender(mattermost.Config{
		WebhookURL: cfg.MattermostWebhookURL,
	}))

	return notifications.NewWatcher(notifications.WatcherConfig{
		Schedule: cfg.BreachCheckSchedule,
		BaseURL:  cfg.BaseURL,
	}, a.incidents, renderer, dispatcher), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Info())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
