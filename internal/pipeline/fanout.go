package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
	"github.com/couchcryptid/climate-extremes-etl/internal/observability"
)

// NamedLoader is a BatchLoader that can identify itself in logs and metrics.
type NamedLoader interface {
	BatchLoader
	Name() string
}

// FanOut delivers every batch to all sinks. A failing sink does not stop the
// others; its error is returned joined with any other failures. Sinks must
// tolerate a batch being delivered again after a retry.
type FanOut struct {
	sinks   []NamedLoader
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFanOut creates a fan-out loader over sinks.
func NewFanOut(sinks []NamedLoader, logger *slog.Logger, metrics *observability.Metrics) *FanOut {
	return &FanOut{sinks: sinks, logger: logger, metrics: metrics}
}

// LoadBatch writes records to every sink.
func (f *FanOut) LoadBatch(ctx context.Context, records []domain.AnnualIndex) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.LoadBatch(ctx, records); err != nil {
			f.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			f.logger.Error("sink write failed", "sink", s.Name(), "records", len(records), "error", err)
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
			continue
		}
		f.metrics.RecordsWritten.WithLabelValues(s.Name()).Add(float64(len(records)))
	}
	return errors.Join(errs...)
}
