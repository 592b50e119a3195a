package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ladderscan/backend/internal/api"
	"github.com/ladderscan/backend/internal/config"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/logging"
	"github.com/ladderscan/backend/internal/metrics"
	"github.com/ladderscan/backend/internal/rungstore"
	"github.com/ladderscan/backend/internal/scanner"
	"github.com/ladderscan/backend/internal/session"
	"github.com/ladderscan/backend/internal/storage"
	"github.com/ladderscan/backend/internal/web"
	"golang.org/x/time/rate"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "LadderScan.exe.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)
	if err != nil {
		fmt.Printf("Failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, configPath, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string, logger *slog.Logger) error {
	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Check if running in embedded mode (frontend built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir(), cfg.Storage.ConvertedDirectory)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	catalog := scanner.DefaultCatalog()
	if cfg.Conversion.PatternsFile != "" {
		if catalog, err = scanner.LoadCatalog(cfg.Conversion.PatternsFile); err != nil {
			return err
		}
		logger.Info("pattern catalog loaded", "file", cfg.Conversion.PatternsFile, "patterns", len(catalog.Patterns))
	}

	results, err := session.NewResultStore(cfg.Storage.ResultsDirectory, logger)
	if err != nil {
		return err
	}

	reg := metrics.DefaultRegistry()

	var rungs *rungstore.Store
	if cfg.Storage.EnablePersistence {
		rungs, err = rungstore.Open(cfg.Storage.DatabaseFile, rungstore.Options{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		defer rungs.Close()
	}

	opts := session.Options{
		Scanner:            scanner.New(catalog),
		Results:            results,
		Metrics:            reg,
		Logger:             logger,
		MaxConcurrentFiles: cfg.Conversion.MaxConcurrentFiles,
	}
	deps := &api.Dependencies{
		Store:      fileStore,
		Summaries:  results,
		Metrics:    reg,
		Extensions: cfg.GetAllowedExtensions(),
		Version:    Version,
		Logger:     logger,
	}
	// Assigned only when open so the interfaces stay nil otherwise.
	if rungs != nil {
		opts.Rungs = rungs
		deps.Rungs = rungs
	}

	sessionMgr := session.NewManager(fileStore, opts)
	// Runs before rungs.Close so no conversion is still appending rows.
	defer sessionMgr.Close()
	deps.SessionMgr = sessionMgr
	deps.Sessions = sessionMgr

	strategy, err := ladder.ParseStrategy(cfg.Conversion.Strategy)
	if err != nil {
		return err
	}
	deps.Converter = ladder.NewConverter(
		ladder.WithStrategy(strategy),
		ladder.WithLogger(logger),
		ladder.WithObserver(reg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Conversion.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(time.Duration(cfg.Conversion.SessionTimeoutMinutes) * time.Minute)
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, reg)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/metrics" ||
				strings.HasPrefix(path, "/api/conversions/") && c.Request().Method == http.MethodGet
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.IsWebSocket()
		},
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.RateLimitPerSecond > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return !strings.HasPrefix(c.Request().URL.Path, "/api/") || c.Path() == "/api/health"
			},
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.Server.RateLimitPerSecond),
				Burst:     int(cfg.Server.RateLimitPerSecond) * 2,
				ExpiresIn: 3 * time.Minute,
			}),
		}))
	}

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.RegisterRoutes(e.Group("/api"), api.NewHandlers(deps))
	api.RegisterMetricsRoute(e, reg.Handler())

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e, "/api", "/metrics"); err != nil {
			logger.Warn("failed to register static routes", "error", err)
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, strategy, rungs != nil, embeddedMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func printBanner(cfg *config.AppConfig, configPath string, strategy ladder.Strategy, persistence, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Air-Gapped (Embedded)"
	}
	db := "disabled"
	if persistence {
		db = cfg.Storage.DatabaseFile
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Ladder Logic Converter Server                   ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Strategy:   %-45s║\n", strategy)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Rung DB:   %-46s║\n", db)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
