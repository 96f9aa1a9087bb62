package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/audio"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/config"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/metrics"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/processor"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/router"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/server"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/signaling"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/stream"
)

const (
	serviceName    = "fastrtc-audio-interface"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (empty uses defaults)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary
	logger.Info("Configuration loaded",
		slog.String("bind_address", cfg.Server.Address),
		slog.Int("port", cfg.Server.Port),
		slog.Int("max_streams", cfg.Streams.MaxStreams),
		slog.Duration("idle_threshold", cfg.Streams.GetIdleThreshold()),
		slog.Int("flush_threshold", cfg.Audio.FlushThreshold),
		slog.String("processor_endpoint", cfg.Processor.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics on a dedicated registry
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectorsForProcess()...)
	appMetrics := metrics.New(promRegistry)
	logger.Info("Prometheus metrics initialized")

	// Initialize stream registry with idle eviction
	registry := stream.NewRegistry(logger, stream.RegistryConfig{
		MaxStreams:      cfg.Streams.MaxStreams,
		IdleThreshold:   cfg.Streams.GetIdleThreshold(),
		CleanupInterval: cfg.Streams.GetCleanupInterval(),
	}, appMetrics)
	logger.Info("Stream registry initialized",
		slog.Int("max_streams", cfg.Streams.MaxStreams),
		slog.Duration("idle_threshold", cfg.Streams.GetIdleThreshold()),
	)

	// Select the media processor sink
	sink, procStats, err := buildProcessor(cfg.Processor, logger)
	if err != nil {
		logger.Error("Failed to create media processor client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize audio buffer engine
	engine := audio.NewEngine(logger, audio.EngineConfig{
		FlushThreshold:    cfg.Audio.FlushThreshold,
		MaxBufferedChunks: cfg.Audio.MaxBufferedChunks,
		FlushWorkers:      cfg.Audio.FlushWorkers,
		FlushQueueSize:    cfg.Audio.FlushQueueSize,
	}, registry, sink, appMetrics)
	logger.Info("Audio buffer engine initialized",
		slog.Int("flush_threshold", cfg.Audio.FlushThreshold),
		slog.Int("flush_workers", cfg.Audio.FlushWorkers),
	)

	// Initialize signaling and message routing
	coordinator := signaling.NewCoordinator(logger, registry)
	msgRouter := router.NewRouter(logger, registry, appMetrics, nil)

	// Initialize WebSocket hub and HTTP server
	hub := server.NewHub(logger, registry, engine, msgRouter, appMetrics)
	httpServer := server.NewHTTPServer(cfg.Server, logger, registry, coordinator, hub,
		appMetrics, promRegistry, procStats)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests and close channels)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Flush whatever is still buffered, then drain the flush workers
	for s := range registry.All() {
		if err := engine.Flush(s.ID); err != nil {
			logger.Warn("Final flush failed",
				slog.String("webrtc_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	engine.Close()

	// Stop the registry (stops the idle reaper)
	registry.Close()

	// Final statistics
	stats := procStats.GetStats()
	logger.Info("Final processor statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Float64("success_rate", stats.SuccessRate),
	)

	logger.Info("Service stopped")
}

// buildProcessor selects the flush sink. Without a configured endpoint the
// log-only sink is used, which keeps the service usable in development.
func buildProcessor(cfg config.ProcessorConfig, logger *slog.Logger) (audio.Processor, server.ProcessorStats, error) {
	if cfg.Endpoint == "" {
		logger.Info("No processor endpoint configured, using log-only sink")
		p := processor.NewLogProcessor(logger)
		return p, p, nil
	}

	client, err := processor.NewClient(processor.Config{
		Endpoint:      cfg.Endpoint,
		Timeout:       cfg.GetTimeoutDuration(),
		MaxRetries:    cfg.MaxRetries,
		MaxConcurrent: cfg.MaxConcurrent,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Media processor client initialized",
		slog.String("endpoint", cfg.Endpoint),
		slog.Int("max_retries", cfg.MaxRetries),
	)
	return client, client, nil
}

// collectorsForProcess returns the standard process and Go runtime collectors.
func collectorsForProcess() []prometheus.Collector {
	return []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
