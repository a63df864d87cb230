// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main runs the example bot against the chat gateway with metrics
// and health endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/hivegate"
	"github.com/absmach/hivegate/examples/simple"
	"github.com/absmach/hivegate/pkg/breaker"
	"github.com/absmach/hivegate/pkg/gateway"
	"github.com/absmach/hivegate/pkg/health"
	"github.com/absmach/hivegate/pkg/metrics"
	"github.com/absmach/hivegate/pkg/rest"
	"github.com/absmach/hivegate/pkg/session"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env file is optional
	_ = godotenv.Load()

	cfg, err := hivegate.NewConfig(env.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	m := metrics.New("hivegate", prometheus.DefaultRegisterer)

	api, err := rest.New(cfg.RESTConfig(logger, m))
	if err != nil {
		logger.Error("Failed to create REST client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	gwCfg, err := cfg.GatewayConfig(logger, m)
	if err != nil {
		logger.Error("Failed to create gateway config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	gw := gateway.New(gwCfg, simple.New(api, cfg.ReplyDelay, logger))

	checker := health.NewChecker(5 * time.Second)
	checker.Register("gateway", func(ctx context.Context) error {
		if s := gw.State(); s != session.Active {
			return fmt.Errorf("session is %s", s)
		}
		return nil
	})
	checker.Register("rest", func(ctx context.Context) error {
		if s := api.BreakerState(); s == breaker.StateOpen {
			return fmt.Errorf("circuit breaker is %s", s)
		}
		return nil
	})
	checker.Register("runtime", func(ctx context.Context) error {
		m.CollectRuntime()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	g.Go(func() error {
		return serveHTTP(ctx, "metrics", cfg.MetricsPort, metricsMux, cfg.ShutdownTimeout, logger)
	})

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", checker.HTTPHandler())
	healthMux.HandleFunc("/ready", checker.ReadinessHandler())
	healthMux.HandleFunc("/live", health.LivenessHandler())
	g.Go(func() error {
		return serveHTTP(ctx, "health", cfg.HealthPort, healthMux, cfg.ShutdownTimeout, logger)
	})

	g.Go(func() error {
		// The process lives as long as the gateway session.
		defer cancel()
		return gw.Run(ctx)
	})

	g.Go(func() error {
		return StopSignalHandler(ctx, cancel, gw, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("hivegate terminated with error: %s", err))
		os.Exit(1)
	}
	logger.Info("hivegate stopped")
}

// setupLogger creates a structured logger with the specified level and format.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// serveHTTP runs an HTTP server until ctx is done. A zero port disables it.
func serveHTTP(ctx context.Context, name string, port int, h http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if port == 0 {
		return nil
	}

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting "+name+" server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to shut down "+name+" server", slog.String("error", err.Error()))
	}

	return nil
}

func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, gw *gateway.Gateway, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		gw.Stop()
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
