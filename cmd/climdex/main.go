package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/climate-extremes-etl/internal/adapter/gridfile"
	httpadapter "github.com/couchcryptid/climate-extremes-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-extremes-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-extremes-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/climate-extremes-etl/internal/config"
	"github.com/couchcryptid/climate-extremes-etl/internal/observability"
	"github.com/couchcryptid/climate-extremes-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	sinks, closers, err := openSinks(cfg, logger)
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		os.Exit(1)
	}

	source := gridfile.NewStore(cfg.DataDir, cfg.Variable)
	calendars := pipeline.NewCalendarProvider(source, gridfile.NewCalendarStore(cfg.OutputDir), cfg.CalendarCacheSize, logger, metrics)
	transformer := pipeline.NewTransformer(cfg.Variable, cfg.IndexName, cfg.ExceedanceName)
	loader := pipeline.NewFanOut(sinks, logger, metrics)

	p := pipeline.New(source, calendars, transformer, loader, pipeline.Options{
		Baseline: pipeline.Baseline{
			Variable: cfg.Variable,
			Years:    cfg.BaselineYears(),
			Params:   cfg.Calendar,
			Tiling:   cfg.Spell.Tiling,
		},
		Years: cfg.TargetYears(),
		Spell: cfg.Spell,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the fold; the process exits once every target year is written.
	exitCode := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stop()
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	}()

	<-ctx.Done()
	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for name, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "sink", name, "error", err)
		}
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}

// openSinks builds the enabled sinks in configuration order.
func openSinks(cfg *config.Config, logger *slog.Logger) ([]pipeline.NamedLoader, map[string]io.Closer, error) {
	var sinks []pipeline.NamedLoader
	closers := make(map[string]io.Closer)
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkFile:
			sinks = append(sinks, gridfile.NewSink(cfg.OutputDir))
		case config.SinkKafka:
			w := kafkaadapter.NewWriter(cfg, logger)
			sinks = append(sinks, w)
			closers[name] = w
		case config.SinkSQLite:
			s, err := sqlite.Open(cfg.SQLitePath, logger)
			if err != nil {
				for _, c := range closers {
					_ = c.Close()
				}
				return nil, nil, err
			}
			sinks = append(sinks, s)
			closers[name] = s
		}
	}
	logger.Info("sinks enabled", "sinks", cfg.Sinks)
	return sinks, closers, nil
}
