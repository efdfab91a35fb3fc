package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"enrolldash/internal/config"
	"enrolldash/internal/dataprocessing"
	"enrolldash/internal/errors"
	"enrolldash/internal/infrastructure"
	customMiddleware "enrolldash/internal/middleware"
	"enrolldash/internal/services"
	"enrolldash/internal/session"
	handlers "enrolldash/internal/transport/http"
	ws "enrolldash/internal/websocket"
	"enrolldash/pkg/contracts"
)

const (
	runtimeSampleInterval = 15 * time.Second

	// JSON uploads carry the file base64 encoded inside a data URL
	uploadEnvelopeOverhead = 64 << 10
)

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Sessions         *session.Store
	WebSocketHub     *ws.Hub
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	Runtime          *infrastructure.RuntimeCollector
	Metrics          *infrastructure.BusinessMetrics
	ErrorHandler     *errors.ErrorHandler
	Validator        *customMiddleware.Validator
	OTelProviders    *infrastructure.OTelProviders
	Logger           *slog.Logger
}

// NewApplication wires every component from cfg. logger is the process
// logger returned by infrastructure.InitializeLogger.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		OTelProviders: otelProviders,
		Logger:        logger,
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices builds the session layer, the hub and the services
// that sit on top of them
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("business metrics: %w", err)
	}
	a.Metrics = metrics

	runtime, err := infrastructure.NewRuntimeCollector(a.OTelProviders.Meter, runtimeSampleInterval)
	if err != nil {
		return fmt.Errorf("runtime collector: %w", err)
	}
	a.Runtime = runtime

	loader := dataprocessing.NewLoader(a.Logger, dataprocessing.LoaderConfig{
		PreambleLines: a.Config.Upload.PreambleLines,
		MaxBytes:      a.Config.Upload.MaxBytes,
	})

	a.Sessions = session.NewStore(loader, session.Config{
		IdleTTL:       a.Config.Session.IdleTTL,
		SweepInterval: a.Config.Session.SweepInterval,
	}, a.Logger)

	a.WebSocketHub = ws.NewHub(
		ws.OptionsFrom(a.Config.WebSocket, a.Config.Security.AllowedOrigins),
		metrics,
		a.Logger,
	)

	a.Sessions.AddListener(a.WebSocketHub)
	a.Sessions.AddListener(services.NewSessionMetrics(metrics))

	a.DashboardService = services.NewDashboardService(a.Sessions, a.WebSocketHub, metrics, a.Logger)
	a.HealthService = services.NewHealthService(a.Sessions, a.WebSocketHub, a.Runtime, a.Logger)

	a.ErrorHandler = errors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	a.Validator = customMiddleware.NewValidator(a.Logger)

	return nil
}

// setupRouter configures the HTTP routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Neither of these wraps the ResponseWriter, so the websocket upgrade
	// still sees a hijackable connection
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	wsHandler := handlers.NewWebSocketHandler(
		a.DashboardService,
		a.WebSocketHub,
		a.Config.Session.CookieName,
		a.ErrorHandler,
		a.Logger,
	)
	r.With(customMiddleware.Recoverer(a.ErrorHandler)).Method(http.MethodGet, config.WebSocketEndpoint, wsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		r.Use(customMiddleware.NewOTelMiddleware(a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.Config.Security))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(a.Config.Security.RateLimit, a.Logger).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Outside the middleware group so scrapes are not traced or limited
	metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.DashboardService, a.WebSocketHub)
	r.Mount(config.MetricsEndpoint, metricsHandler.Routes())

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(errors.NewErrorMiddleware(a.ErrorHandler, a.Logger).Handler)
		r.Use(customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json", "multipart/form-data"))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		dashboardHandler := handlers.NewDashboardHandler(
			a.DashboardService,
			handlers.DashboardHandlerConfig{
				MaxUploadBytes: uploadBodyLimit(a.Config.Upload.MaxBytes),
				CookieName:     a.Config.Session.CookieName,
			},
			a.Validator,
			a.ErrorHandler,
			a.Logger,
		)
		r.Mount("/sessions", dashboardHandler.Routes())

		r.Post("/logs", handlers.NewClientLogHandler(a.Validator, a.ErrorHandler, a.Logger).Handle)
	})
}

// uploadBodyLimit is the request body cap for an upload of at most
// maxFile bytes once decoded
func uploadBodyLimit(maxFile int64) int64 {
	return maxFile + maxFile/3 + uploadEnvelopeOverhead
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// startBackground launches the hub loop, the idle session sweeper and the
// runtime sampler on g
func (a *Application) startBackground(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return a.WebSocketHub.Run(ctx) })
	g.Go(func() error { return a.Sessions.Run(ctx) })
	g.Go(func() error { return a.Runtime.Run(ctx) })
}

// Run serves until ctx is cancelled or the listener fails, then shuts
// everything down
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.startBackground(gctx, g)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "Starting HTTP server",
			slog.String("address", a.Server.Addr),
			slog.String("level", a.Config.Logging.Level))

		if err := a.Server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete",
		slog.Int("sessions", a.Sessions.Len()))
	return nil
}
