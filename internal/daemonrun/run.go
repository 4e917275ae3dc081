package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"hlscache/internal/config"
	"hlscache/internal/deps"
	"hlscache/internal/eviction"
	"hlscache/internal/logging"
	"hlscache/internal/maintenance"
	"hlscache/internal/metrics"
	"hlscache/internal/recordstore"
	"hlscache/internal/rendition"
	"hlscache/internal/segmenter"
	"hlscache/internal/server"
	"hlscache/internal/source"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Bind        string
}

// Components are the collaborators shared by the server and CLI commands.
type Components struct {
	Store      *recordstore.Store
	Fetcher    source.Fetcher
	Segmenter  *segmenter.FFmpeg
	Factory    *rendition.Factory
	Controller *eviction.Controller
	Metrics    *metrics.Metrics
}

// Build wires the cache components for cfg. The record store is opened but
// not initialized; call Init once out of the request path. m may be nil.
func Build(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	store, err := recordstore.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return nil, err
	}
	fetcher, err := source.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	seg := segmenter.NewFFmpeg(cfg.Segmenter, logger)
	factory := rendition.NewFactory(rendition.SettingsFromConfig(cfg), store, fetcher, seg, logger, m)
	controller := eviction.NewController(store, eviction.NamespacesFromConfig(cfg), logger, eviction.WithMetrics(m))
	return &Components{
		Store:      store,
		Fetcher:    fetcher,
		Segmenter:  seg,
		Factory:    factory,
		Controller: controller,
		Metrics:    m,
	}, nil
}

// Run serves HTTP and, when enabled, the maintenance loop until SIGINT or
// SIGTERM arrives or cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if err := cfg.EnsureOutputRoot(); err != nil {
		return err
	}
	pidPath := filepath.Join(cfg.Paths.StateDir, "hlscache.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logDependencySnapshot(logger, cfg)

	m := metrics.New()
	components, err := Build(cfg, logger, m)
	if err != nil {
		logger.Error("wire cache components", logging.Error(err))
		return err
	}
	if err := components.Store.Init(signalCtx); err != nil {
		logger.Error("initialize record store", logging.Error(err))
		return err
	}

	bind := opts.Bind
	if bind == "" {
		bind = cfg.Server.Bind
	}
	srv, err := server.New(bind, components.Factory, logger, m)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		return srv.Run(groupCtx)
	})
	if cfg.Maintenance.Enabled {
		scheduler, err := maintenance.New(components.Controller, maintenance.Options{
			Interval:  time.Duration(cfg.Maintenance.IntervalSeconds) * time.Second,
			MaxJitter: time.Duration(cfg.Maintenance.MaxJitterSeconds) * time.Second,
			Backoff:   time.Duration(cfg.Maintenance.ErrorBackoffSeconds) * time.Second,
			LockPath:  cfg.MaintenanceLockPath(),
		}, logger, m)
		if err != nil {
			cancel()
			_ = group.Wait()
			return err
		}
		group.Go(func() error {
			_ = scheduler.Run(groupCtx)
			return nil
		})
	}

	logger.Info("hlscache started",
		logging.String(logging.FieldEventType, "server_started"),
		logging.String("bind", bind),
		logging.String("input", components.Fetcher.Name()),
		logging.Bool("input_cache", cfg.Input.CacheEnabled),
		logging.Bool("maintenance", cfg.Maintenance.Enabled),
	)

	err = group.Wait()
	logger.Info("hlscache shutting down", logging.String(logging.FieldEventType, "server_stopped"))
	return err
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	for _, status := range deps.CheckBinaries(deps.SegmenterRequirements(cfg)) {
		if status.Available {
			logger.Info("dependency available",
				logging.String(logging.FieldEventType, "dependency_snapshot"),
				logging.String("name", status.Name),
				logging.String("path", status.Path),
			)
			continue
		}
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("name", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install the binary or set its path in [segmenter]"),
			logging.String(logging.FieldImpact, "cache misses will fail until it is available"),
		)
	}
}
