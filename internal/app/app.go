package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tripharvest/internal/config"
	"tripharvest/internal/geocode"
	"tripharvest/internal/infrastructure"
	custommw "tripharvest/internal/middleware"
	"tripharvest/internal/operations"
	"tripharvest/internal/scheduler"
	"tripharvest/internal/services"
	"tripharvest/internal/sources"
	"tripharvest/internal/store"
	handlers "tripharvest/internal/transport/http"
	ws "tripharvest/internal/websocket"
)

const (
	AppName = "tripharvest"
	Version = "1.0.0"
)

// Application is the dependency container wiring config, persistence,
// the orchestrator, the schedule manager and the HTTP surface.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	Store        *store.Store
	Registry     *sources.Registry
	Engine       *geocode.Engine
	Orchestrator *operations.Orchestrator
	Scheduler    *scheduler.Manager
	Hub          *ws.Hub

	ScrapeService *services.ScrapeService
	ResortService *services.ResortService

	Router *chi.Mux
	Server *http.Server
}

// NewApplication builds a fully wired application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires persistence, adapters and the domain services
func (a *Application) initializeServices() error {
	st, err := store.Open(a.Config.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.Store = st

	a.Hub = ws.NewHub(a.Logger)
	a.Hub.Start()

	a.Registry = sources.NewRegistry()
	for name, feedURL := range a.Config.Scrape.FeedURLs {
		if err := a.Registry.Register(sources.NewFeedAdapter(name, feedURL, nil)); err != nil {
			return fmt.Errorf("failed to register source %s: %w", name, err)
		}
		a.Logger.Info("registered feed source",
			slog.String("source", name),
			slog.String("url", feedURL))
	}

	metrics, err := infrastructure.NewHarvestMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create harvest metrics: %w", err)
	}

	geocoder := geocode.NewNominatimClient(a.Config.Geocode.EndpointURL, a.Config.Geocode.RequestTimeout)
	a.Engine = geocode.NewEngine(st, geocoder, a.Config.Geocode, a.Logger)
	a.Engine.SetMetrics(metrics)

	a.Orchestrator = operations.NewOrchestrator(
		operations.NewRunGuard(),
		a.Registry,
		a.Engine,
		st,
		st,
		a.Hub,
		a.Config.Scrape,
		a.Logger,
	)
	a.Orchestrator.SetMetrics(metrics)

	a.Scheduler = scheduler.NewManager(a.Orchestrator, scheduler.NewCronParser(), a.Config.Schedule, a.Logger)

	a.ScrapeService = services.NewScrapeService(a.Orchestrator, a.Scheduler, a.Logger)
	a.ResortService = services.NewResortService(a.Engine, st, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID and RealIP only, so the WebSocket upgrade is not wrapped
	// by logging or timeout middleware.
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	r.HandleFunc("/ws", a.handleWebSocket)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			r.Group(func(r chi.Router) {
				r.Use(custommw.Timeout(a.Config.Server.ReadTimeout, a.Logger))
				r.Get("/health", a.handleHealth)
				r.Get("/version", a.handleVersion)
			})

			scrapingHandler := handlers.NewScrapingHandler(a.ScrapeService, a.Logger)
			r.Mount("/scraping", scrapingHandler.Routes())

			resortsHandler := handlers.NewResortsHandler(a.ResortService, a.Config.Geocode.GoodEnoughScore, a.Logger)
			r.Mount("/resorts", resortsHandler.Routes())
		})
	})

	a.Router = r
}

// handleHealth reports liveness plus the busy/idle state of the runner
func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":           "ok",
		"operationRunning": a.Orchestrator.Running() != "",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *Application) handleVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"name": AppName, "version": Version})
}

// handleWebSocket upgrades the connection and attaches it to the hub
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := infrastructure.EnsureTraceID(r.Context())
	a.Logger.InfoContext(ctx, "websocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")))

	ws.ServeWS(a.Hub, w, r)
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start brings up the scheduler and the HTTP server
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
		slog.Int("sources", a.Registry.Count()))

	if err := a.Scheduler.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Scheduler.Shutdown()
	a.Hub.Shutdown()

	if id := a.Orchestrator.Running(); id != "" {
		a.Logger.InfoContext(ctx, "requesting cancellation of running operation",
			slog.String("operation_id", id))
		if err := a.Orchestrator.Cancel(ctx, id); err != nil {
			a.Logger.WarnContext(ctx, "cancel on shutdown failed", slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing store", slog.String("error", err.Error()))
	}

	infrastructure.CloseLogFile()
	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
