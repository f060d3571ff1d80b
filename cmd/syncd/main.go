package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/mir00r/haproxy-sync/internal/config"
	"github.com/mir00r/haproxy-sync/internal/orchestrator"
	"github.com/mir00r/haproxy-sync/internal/registry"
	"github.com/mir00r/haproxy-sync/internal/reload"
	"github.com/mir00r/haproxy-sync/internal/render"
	"github.com/mir00r/haproxy-sync/pkg/logger"
)

func main() {
	// Load configuration following 12-Factor App methodology
	// Factor #3: Config - Store config in the environment
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting haproxy-sync")

	// Startup preconditions are checked once, before the loop: a missing
	// haproxy binary or unreachable registry is fatal here, while the same
	// conditions inside the loop are transient and retried.
	reloader, err := buildReloader(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Reload mechanism unavailable")
	}

	endpoint, err := cfg.EtcdEndpoint()
	if err != nil {
		log.WithError(err).Fatal("Invalid registry address")
	}

	reader, err := registry.NewEtcdReader(
		endpoint,
		cfg.Registry.Prefix,
		cfg.Registry.DialTimeout,
		cfg.Registry.RequestTimeout,
		log,
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to create registry reader")
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reader.Ping(ctx); err != nil {
		log.WithError(err).Fatal("Registry unreachable")
	}

	renderer, err := render.NewFileRenderer(cfg.HAProxy.TemplateFile, cfg.HAProxy.ConfigPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create renderer")
	}

	log.WithFields(map[string]interface{}{
		"version":       "1.0.0",
		"endpoint":      endpoint,
		"prefix":        cfg.Registry.Prefix,
		"config_path":   cfg.HAProxy.ConfigPath,
		"poll_interval": cfg.Sync.Interval.String(),
		"pid":           os.Getpid(),
		"hostname":      hostname(),
	}).Info("Configuration loaded")

	orch := orchestrator.New(
		reader,
		cfg.Registry.Prefix,
		renderer,
		reloader,
		cfg.Sync.Interval,
		cfg.Sync.MinReloadInterval,
		log,
	)

	// Run the loop until a shutdown signal arrives. Cancellation is
	// observed between ticks; an in-flight reload finishes under its own
	// timeout rather than being killed mid-handoff.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutdown signal received")
		cancel()
	}()

	orch.Run(ctx)

	log.Info("haproxy-sync stopped gracefully")
}

// hostname safely gets the hostname for the startup log
func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// buildReloader selects the reload mechanism: an operator-supplied script
// when configured, otherwise direct haproxy invocation with the binary
// resolved on PATH.
func buildReloader(cfg *config.Config, log *logger.Logger) (reload.Reloader, error) {
	if cfg.HAProxy.ReloadScript != "" {
		scriptPath, err := exec.LookPath(cfg.HAProxy.ReloadScript)
		if err != nil {
			return nil, fmt.Errorf("reload script not found: %w", err)
		}
		return reload.NewScriptReloader(scriptPath, cfg.HAProxy.ReloadTimeout, log), nil
	}

	binaryPath, err := exec.LookPath(cfg.HAProxy.Binary)
	if err != nil {
		return nil, fmt.Errorf("haproxy binary not found on PATH: %w", err)
	}

	return reload.NewHAProxyReloader(
		binaryPath,
		cfg.HAProxy.ConfigPath,
		cfg.HAProxy.PidPath,
		cfg.HAProxy.ReloadTimeout,
		log,
	), nil
}
