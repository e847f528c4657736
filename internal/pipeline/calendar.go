package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
	"github.com/couchcryptid/climate-extremes-etl/internal/observability"
)

// CalendarStore persists built calendars between runs.
type CalendarStore interface {
	LoadCalendar(ctx context.Context, key string) (*domain.Calendar, error)
	SaveCalendar(ctx context.Context, key string, cal *domain.Calendar) error
}

// Baseline selects the years and parameters a calendar is built from.
type Baseline struct {
	Variable string
	Years    []int
	Params   domain.CalendarParams
	Tiling   domain.Tiling
}

// Key identifies the calendar a baseline produces.
func (b Baseline) Key() string {
	first, last := 0, 0
	if len(b.Years) > 0 {
		first, last = b.Years[0], b.Years[len(b.Years)-1]
	}
	return fmt.Sprintf("%s_%d-%d_%s", b.Variable, first, last, b.Params.Key())
}

// CalendarProvider resolves threshold calendars through an in-memory LRU, then
// the persisted store, and only builds from the baseline stacks when both
// miss. The baseline pass runs at most once per key.
type CalendarProvider struct {
	source  YearSource
	store   CalendarStore
	cache   *calendarCache
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCalendarProvider creates a provider. store may be nil to disable
// persistence.
func NewCalendarProvider(source YearSource, store CalendarStore, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *CalendarProvider {
	return &CalendarProvider{
		source:  source,
		store:   store,
		cache:   newCalendarCache(cacheSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Calendar returns the calendar for b.
func (p *CalendarProvider) Calendar(ctx context.Context, b Baseline) (*domain.Calendar, error) {
	key := b.Key()
	if cal, ok := p.cache.get(key); ok {
		p.metrics.CalendarCache.WithLabelValues("hit").Inc()
		return cal, nil
	}
	p.metrics.CalendarCache.WithLabelValues("miss").Inc()

	if p.store != nil {
		cal, err := p.store.LoadCalendar(ctx, key)
		switch {
		case err == nil:
			p.metrics.CalendarStore.WithLabelValues("hit").Inc()
			p.logger.Info("threshold calendar loaded", "key", key)
			p.remember(key, cal)
			return cal, nil
		case errors.Is(err, domain.ErrCalendarNotFound):
			p.metrics.CalendarStore.WithLabelValues("miss").Inc()
		default:
			return nil, fmt.Errorf("load calendar %s: %w", key, err)
		}
	}

	cal, err := p.build(ctx, b)
	if err != nil {
		return nil, err
	}
	if p.store != nil {
		if err := p.store.SaveCalendar(ctx, key, cal); err != nil {
			p.logger.Warn("persist threshold calendar failed", "key", key, "error", err)
		}
	}
	p.remember(key, cal)
	return cal, nil
}

func (p *CalendarProvider) build(ctx context.Context, b Baseline) (*domain.Calendar, error) {
	start := time.Now()
	p.logger.Info("building threshold calendar",
		"key", b.Key(), "baseline_years", len(b.Years), "window_radius", b.Params.WindowRadius,
		"percentile", b.Params.Percentile)

	baseline := make([]domain.YearRecord, 0, len(b.Years))
	for _, year := range b.Years {
		rec, err := p.source.LoadYear(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("load baseline year %d: %w", year, err)
		}
		baseline = append(baseline, rec)
	}

	cal, err := domain.BuildCalendar(baseline, b.Params, b.Tiling)
	if err != nil {
		return nil, fmt.Errorf("build calendar: %w", err)
	}

	p.metrics.CalendarBuilds.Inc()
	p.metrics.CalendarBuildDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("threshold calendar built", "key", b.Key(), "duration", time.Since(start))
	return cal, nil
}

// remember caches cal and reports its empty baseline pools, which are a data
// quality note rather than an error.
func (p *CalendarProvider) remember(key string, cal *domain.Calendar) {
	p.cache.put(key, cal)
	empty := cal.EmptySlots()
	p.metrics.EmptyThresholds.Set(float64(empty))
	if empty > 0 {
		p.logger.Warn("threshold calendar has empty baseline pools",
			"key", key, "pixel_days", empty)
	}
}
