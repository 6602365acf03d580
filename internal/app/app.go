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
	gorillaws "github.com/gorilla/websocket"

	"fadapulse/internal/cache"
	"fadapulse/internal/config"
	"fadapulse/internal/dataset"
	"fadapulse/internal/download"
	apierrors "fadapulse/internal/errors"
	"fadapulse/internal/exporter"
	"fadapulse/internal/extract"
	"fadapulse/internal/fetch"
	"fadapulse/internal/infrastructure"
	custommw "fadapulse/internal/middleware"
	"fadapulse/internal/pipeline"
	"fadapulse/internal/services"
	httptransport "fadapulse/internal/transport/http"
	ws "fadapulse/internal/websocket"
)

// Version is the application version, overridable at build time with
// -ldflags "-X fadapulse/internal/app.Version=...".
var Version = "dev"

// Application holds all application components and owns their lifecycle.
type Application struct {
	config *config.Config
	logger *slog.Logger
	paths  *config.Paths

	otelProviders  *infrastructure.OTelProviders
	otelMiddleware *custommw.OTelMiddleware

	store    *cache.Store
	master   *dataset.MasterDataset
	manager  *pipeline.Manager
	hub      *ws.Hub
	bridge   *ws.Bridge
	upgrader gorillaws.Upgrader

	pipelineService httptransport.PipelineServiceInterface
	dataService     *services.DataService
	healthService   *services.HealthService

	errorHandler *apierrors.ErrorHandler
	router       chi.Router
	server       *http.Server
}

// NewApplication creates a fully wired application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	otelMW, err := custommw.NewOTelMiddleware(providers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry middleware: %w", err)
	}

	app := &Application{
		config:         cfg,
		logger:         logger,
		paths:          paths,
		otelProviders:  providers,
		otelMiddleware: otelMW,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.Security.AllowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}
	app.setupRouter()
	app.createServer()

	logger.Info("application initialized",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port),
		slog.String("data_dir", paths.DataDir))

	return app, nil
}

// initializeServices builds the pipeline and the service layer on top of it.
func (a *Application) initializeServices() error {
	cfg := a.config

	store, err := cache.NewStore(a.paths.CacheFile, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open download cache: %w", err)
	}
	a.store = store

	source := fetch.NewHTMLSource(fetch.HTMLSourceConfig{
		BasePageURL: cfg.Source.BasePageURL,
		BaseSiteURL: cfg.Source.BaseSiteURL,
		MaxPages:    cfg.Source.MaxPages,
		UserAgent:   cfg.Source.UserAgent,
		Client:      &http.Client{Timeout: cfg.Source.Timeout},
	}, a.logger)

	downloader := download.NewManager(download.ManagerConfig{
		Store:       store,
		Policy:      download.NewPolicy(cfg.Pipeline.MaxAttempts, cfg.Pipeline.BackoffBase, cfg.Pipeline.BackoffCap),
		Concurrency: cfg.Pipeline.DownloadConcurrency,
		OutputDir:   a.paths.PDFDir,
		UserAgent:   cfg.Source.UserAgent,
	}, a.logger)

	extractor := extract.NewExtractor(extract.NewPDFRowSource(), a.logger)
	a.master = dataset.NewMasterDataset(a.logger)
	writer := exporter.NewWorkbookWriter(a.logger)

	filterStage := pipeline.NewFilterStage(a.master, writer, a.paths.SessionWorkbook, a.logger).
		WithMasterWorkbook(a.paths.MasterWorkbook())
	if cfg.Sheets.Enabled {
		mirror, err := exporter.NewSheetsMirror(context.Background(), cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize sheets mirror: %w", err)
		}
		filterStage = filterStage.WithMirror(mirror)
	}

	registry := pipeline.NewRegistry()
	stages := []struct {
		stage pipeline.Stage
		deps  []string
	}{
		{pipeline.NewLinksStage(source, a.master, a.logger), nil},
		{pipeline.NewDownloadStage(downloader, a.logger), []string{pipeline.StageIDLinks}},
		{pipeline.NewExtractStage(extractor, a.logger), []string{pipeline.StageIDDownload}},
		{pipeline.NewAggregateStage(a.master, a.logger), []string{pipeline.StageIDExtract}},
		{filterStage, []string{pipeline.StageIDAggregate}},
	}
	for _, s := range stages {
		if err := registry.Register(s.stage, s.deps...); err != nil {
			return fmt.Errorf("failed to register stage %s: %w", s.stage.ID(), err)
		}
	}

	bus := pipeline.NewProgressBus(a.logger)
	a.manager = pipeline.NewManager(registry, bus, pipeline.Config{
		SessionTimeout:   cfg.Pipeline.SessionTimeout,
		SessionRetention: cfg.Pipeline.SessionRetention,
	}, a.otelMiddleware.Metrics(), a.logger)

	a.hub = ws.NewHub(a.logger)
	a.hub.Start()
	a.bridge = ws.NewBridge(a.hub, a.logger)

	pipelineService := services.NewPipelineService(a.manager, a.logger)
	a.pipelineService = &mirroredPipelineService{
		PipelineService: pipelineService,
		bridge:          a.bridge,
	}
	a.dataService = services.NewDataService(a.master, source, a.manager, a.logger)
	a.healthService = services.NewHealthService(Version, a.master, a.manager, a.hub, a.logger)
	a.errorHandler = apierrors.NewErrorHandler(a.logger, cfg.Logging.Development)

	return nil
}

// setupRouter configures the chi router with middleware and routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StripSlashes)

	// WebSocket endpoint outside the main group: the OTel HTTP middleware
	// wraps the ResponseWriter and breaks the hijack the upgrade needs.
	r.With(custommw.WebSocketTraceMiddleware(a.logger)).Get("/ws", a.handleWebSocket)

	// Prometheus scrape endpoint, no middleware beyond request ID.
	if a.otelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.otelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(a.otelMiddleware.Handler)
		r.Use(custommw.StructuredLogger(a.logger))
		r.Use(custommw.Recoverer(a.logger))
		r.Use(custommw.SecurityHeaders)
		if a.config.Security.EnableCORS {
			r.Use(custommw.CORS(custommw.CORSConfig{
				AllowedOrigins: a.config.Security.AllowedOrigins,
				Logger:         a.logger,
			}))
		}
		if a.config.Security.RateLimit.Enabled {
			limiter := custommw.NewRateLimiter(a.config.Security.RateLimit.RPS, a.config.Security.RateLimit.Burst, a.logger)
			r.Use(limiter.Handler)
		}

		streamHandler := httptransport.NewStreamHandler(a.pipelineService, a.logger, a.errorHandler)
		dataHandler := httptransport.NewDataHandler(a.dataService, a.logger, a.errorHandler)
		healthHandler := httptransport.NewHealthHandler(a.healthService, a.logger)

		// No timeout or compression on /stream: it holds the connection
		// open for the lifetime of the session and flushes per event.
		r.Get("/stream", streamHandler.Stream)

		timeout := custommw.Timeout(30*time.Second, a.logger)
		compress := custommw.Compress(5)
		r.With(timeout).Post("/stream/cancel", streamHandler.Cancel)
		r.With(timeout).Get("/download", dataHandler.Download)
		r.With(timeout, compress).Get("/available-months", dataHandler.AvailableMonths)
		r.With(timeout, compress).Get("/status", healthHandler.Status)
		r.With(timeout, compress).Get("/api/health", healthHandler.HealthCheck)
	})

	a.router = r
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}
}

// handleWebSocket upgrades the connection and hands it to the hub. Clients
// receive every session event mirrored from the progress bus.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", custommw.GetRealIP(r)))
		return
	}
	ws.ServeWS(a.hub, conn)
}

// Start starts the HTTP server. It returns immediately; ListenAndServe runs
// on its own goroutine and cancels the supplied context on failure.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.logger.InfoContext(ctx, "starting HTTP server", slog.String("addr", a.server.Addr))

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully shuts the application down.
func (a *Application) Stop() error {
	a.logger.Info("shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
		firstErr = err
	}

	a.hub.Stop()

	if err := a.otelProviders.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Run starts the application and blocks until an interrupt signal or a
// server failure, then performs a graceful shutdown.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info("server context cancelled")
	}

	return a.Stop()
}

// Router exposes the configured router, used by tests.
func (a *Application) Router() chi.Router {
	return a.router
}

// mirroredPipelineService forwards every started session's event log to the
// WebSocket hub in addition to the SSE stream the caller subscribes to.
type mirroredPipelineService struct {
	*services.PipelineService
	bridge *ws.Bridge
}

func (s *mirroredPipelineService) Start(ctx context.Context, req services.StreamRequest) (*pipeline.Session, error) {
	session, err := s.PipelineService.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	// Detached from the request context so the mirror survives the caller
	// disconnecting; the channel closes when the session reaches a terminal
	// state.
	if ch, err := s.PipelineService.Subscribe(context.Background(), session.ID()); err == nil {
		go s.bridge.Mirror(context.Background(), session.ID(), ch)
	}
	return session, nil
}
