package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/jroosing/domainguard/internal/api"
	"github.com/jroosing/domainguard/internal/blocklist"
	"github.com/jroosing/domainguard/internal/config"
	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/dnsfront"
	"github.com/jroosing/domainguard/internal/engine"
	"github.com/jroosing/domainguard/internal/logging"
	"github.com/jroosing/domainguard/internal/rules"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file (or set DOMAINGUARD_CONFIG)")
		mode       = flag.String("mode", "", "Override filter mode (memory|hostsfile)")
		dbPath     = flag.String("db", "", "Override database path")
		port       = flag.Int("port", 0, "Override DNS bind port")
		jsonLogs   = flag.Bool("json-logs", false, "Enable JSON structured logging")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(config.ResolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Filter.Mode = *mode
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *port != 0 {
		cfg.DNS.Port = *port
	}
	if *jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if *debug {
		cfg.Logging.Level = "DEBUG"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("DomainGuard starting",
		"mode", cfg.Filter.Mode,
		"db", cfg.Database.Path,
		"dns", cfg.DNS.Enabled,
		"api", cfg.API.Enabled,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	manager := blocklist.NewManager(
		db,
		blocklist.NewHTTPFetcher(cfg.FetchTimeoutDuration()),
		rules.NewResolver(logger),
		logger,
	)

	backend, err := buildBackend(cfg, manager)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := backend.Initialize(ctx); err != nil {
		return err
	}

	// Initial pull plus periodic refresh. Failures are logged, not fatal;
	// the previously persisted state keeps serving.
	go refreshLoop(ctx, cfg, backend, logger)

	errCh := make(chan error, 2)

	if cfg.DNS.Enabled && cfg.Filter.Mode == config.ModeMemory {
		front := &dnsfront.Server{
			Logger:     logger,
			Backend:    backend,
			Upstreams:  cfg.DNS.Upstream,
			RedirectIP: cfg.Filter.RedirectIP,
			Timeout:    cfg.UpstreamTimeoutDuration(),
		}
		addr := net.JoinHostPort(cfg.DNS.Host, strconv.Itoa(cfg.DNS.Port))
		go func() { errCh <- front.Run(ctx, addr, workerCount(cfg)) }()
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.New(cfg, db, manager, backend, logger)
		logger.Info("management api listening", "addr", apiServer.Addr())
		go func() {
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if apiServer != nil {
		_ = apiServer.Shutdown(shutdownCtx)
	}
	return nil
}

func buildBackend(cfg *config.Config, manager *blocklist.Manager) (engine.Backend, error) {
	switch cfg.Filter.Mode {
	case config.ModeHostsFile:
		return engine.NewHostsFileBackend(manager, cfg.Filter.ArtifactPath, cfg.Filter.RedirectIP)
	default:
		return engine.NewMemoryBackend(manager)
	}
}

func refreshLoop(ctx context.Context, cfg *config.Config, backend engine.Backend, logger *slog.Logger) {
	refresh := func() {
		if err := backend.LoadBlocklists(ctx); err != nil {
			logger.Warn("blocklist refresh incomplete", "error", err)
		}
		if err := backend.ApplyChanges(ctx); err != nil {
			logger.Warn("apply after refresh failed", "error", err)
		}
	}
	refresh()

	ticker := time.NewTicker(cfg.RefreshIntervalDuration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func workerCount(cfg *config.Config) int {
	if cfg.DNS.Workers.Mode == config.WorkersFixed {
		return cfg.DNS.Workers.Value
	}
	return runtime.NumCPU()
}
