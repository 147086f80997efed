package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/config"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/errors"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/health"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/history"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/normalize"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/observability"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/query"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/sampler"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source/dcgm"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source/host"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source/nvidiasmi"
)

func main() {
	// 1. Load and validate config.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	// 2. Create context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	slog.Info("gpu monitor starting",
		"poll_interval", cfg.PollInterval,
		"history_size", cfg.HistorySize,
		"health_port", cfg.HealthPort,
	)

	// 3. Create shared infrastructure.
	metrics := observability.NewMetrics()
	errCollector := errors.NewErrorCollector(errors.RealClock{})
	store := history.NewStore(cfg.HistorySize, cfg.RetireAfterMisses)
	normalizer := normalize.New(normalize.Thresholds{
		TempWarmC: cfg.TempWarmC,
		TempHotC:  cfg.TempHotC,
		UtilWarm:  cfg.UtilWarm,
		UtilHot:   cfg.UtilHot,
	})

	// 4. Wire telemetry sources.
	sources := buildSources(cfg)
	for _, src := range sources {
		slog.Info("telemetry source enabled", "source", src.Name())
	}

	// 5. Build the sampler and query surface. A source's share of one
	// cycle covers discovery plus the device queries, each individually
	// bounded, so it gets twice the per-query timeout.
	smp := sampler.New(sources, store, normalizer, metrics, errCollector,
		cfg.PollInterval, 2*cfg.DeviceQueryTimeout)
	service := query.NewService(smp, store)

	// 6. Start the health/query server.
	healthSrv := health.NewServer(cfg.HealthPort, metrics, service, cfg.DebugEndpoints)
	if err := healthSrv.Start(); err != nil {
		slog.Error("failed to start health server", "error", err)
		os.Exit(1)
	}
	slog.Info("health server listening", "addr", healthSrv.Addr())

	// 7. Start memory pressure monitor.
	memMon := sampler.NewMemoryPressureMonitor(0.8, func() {
		metrics.MemoryPressureTotal.Inc()
		slog.Warn("forcing GC under memory pressure",
			"series", store.SeriesCount(),
			"active_devices", len(store.Devices()),
		)
		runtime.GC()
	}, 30*time.Second, nil)
	memMon.Start()

	// 8. Run the sampling loop (blocks until the context is canceled).
	if err := smp.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("sampler exited with error", "error", err)
	}

	// 9. Graceful shutdown.
	memMon.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}

	slog.Info("gpu monitor stopped")
}

// buildSources wires the enabled telemetry sources. Configured DCGM
// endpoints take precedence over nvidia-smi for GPU telemetry: both
// backends enumerate the same physical devices, and polling them
// together would append every device series twice per cycle.
func buildSources(cfg config.Config) []source.Source {
	var sources []source.Source
	if len(cfg.DCGMEndpoints) > 0 {
		sources = append(sources, dcgm.New(
			&http.Client{Timeout: cfg.DeviceQueryTimeout},
			cfg.DCGMEndpoints,
		))
		if cfg.NvidiaSMIEnabled {
			slog.Info("dcgm endpoints configured, nvidia-smi source not wired")
		}
	} else if cfg.NvidiaSMIEnabled {
		sources = append(sources, nvidiasmi.New(cfg.NvidiaSMIPath, cfg.DeviceQueryTimeout, nil))
	}
	if cfg.HostEnabled {
		sources = append(sources, host.New())
	}
	return sources
}

// setupLogging configures the default slog logger at the given level.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
