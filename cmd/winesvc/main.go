package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"winequality-api/internal/cfg"
	"winequality-api/internal/drift"
	"winequality-api/internal/metrics"
	"winequality-api/internal/model"
	"winequality-api/internal/server"
	"winequality-api/internal/serving"
	"winequality-api/internal/storage"
	"winequality-api/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	// The model store is the one resource the process cannot serve without.
	store, err := model.Load(c.ModelPath)
	if err != nil {
		log.Fatal().Err(err).Msg("model load failed, refusing to serve")
	}

	logs := initializeStorage(c)
	if logs != nil {
		defer logs.Close()
	}

	checker := initializeDriftChecker(c, logs)

	emitter := telemetry.New(telemetry.Config{
		Endpoint: c.TelemetryEndpoint,
		User:     c.TelemetryUser,
		Token:    c.TelemetryToken,
		Buffer:   c.TelemetryBuffer,
		Interval: c.ExportInterval,
	}, mw)

	hub := server.NewLiveHub()
	svc := serving.New(store, appendWriter(logs), mw, emitter, hub)

	startMetricsServer(ctx, c)

	srv := server.New(server.Config{
		Port:         c.ListenPort,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		ReportsDir:   c.ReportsDir,
	}, svc, checker, m, mw, csvExporter(logs), hub)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := emitter.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("telemetry flush timed out")
	}

	log.Info().Msg("shutdown complete")
}

// initializeStorage opens the inference log. The service keeps serving
// without it: predictions stay correct, drift checks report no data.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		log.Warn().Err(err).Msg("cannot create data path, continuing without inference log")
		return nil
	}
	logs, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("inference log initialization failed, continuing without persistence")
		return nil
	}
	return logs
}

// initializeDriftChecker loads the baseline once. When the baseline is
// unavailable the drift endpoints answer with a configuration error while
// prediction serving continues.
func initializeDriftChecker(c cfg.Settings, logs *storage.Store) server.DriftChecker {
	baseline, err := drift.LoadBaseline(c.BaselinePath)
	if err != nil {
		log.Warn().Err(err).Msg("baseline unavailable, drift checks disabled")
		return &unavailableChecker{err: err}
	}

	var reader drift.RecentReader
	if logs != nil {
		reader = logs
	} else {
		reader = emptyReader{}
	}

	checker, err := drift.NewChecker(baseline, reader, drift.Config{
		Statistic:  drift.Statistic(c.DriftStatistic),
		Threshold:  c.DriftThreshold,
		Thresholds: c.DriftThresholds,
		Window:     c.DriftWindow,
		MinSamples: c.MinSamples,
	})
	if err != nil {
		log.Warn().Err(err).Msg("drift checker initialization failed")
		return &unavailableChecker{err: err}
	}
	return checker
}

// unavailableChecker surfaces a startup configuration problem on each drift
// request instead of taking the whole process down.
type unavailableChecker struct{ err error }

func (u *unavailableChecker) Check() (*drift.Report, error) { return nil, u.err }

// emptyReader stands in for the inference log when persistence is disabled.
type emptyReader struct{}

func (emptyReader) Recent(int) ([]storage.InferenceRecord, error) { return nil, nil }

// appendWriter converts a possibly-nil store into the serving interface.
func appendWriter(logs *storage.Store) serving.AppendWriter {
	if logs == nil {
		return nil
	}
	return logs
}

// csvExporter converts a possibly-nil store into the server interface.
func csvExporter(logs *storage.Store) server.CSVExporter {
	if logs == nil {
		return nil
	}
	return logs
}

// startMetricsServer exposes Prometheus metrics and a liveness endpoint on a
// separate port.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := srv.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func waitForShutdown(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}
}
