package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
	"github.com/couchcryptid/climate-extremes-etl/internal/observability"
)

// YearSource loads one calendar year of daily grids. A year without data
// fails with domain.ErrYearNotFound.
type YearSource interface {
	LoadYear(ctx context.Context, year int) (domain.YearRecord, error)
}

// Calendars resolves the threshold calendar for a baseline.
type Calendars interface {
	Calendar(ctx context.Context, b Baseline) (*domain.Calendar, error)
}

// Transformer converts one year of engine output into sink records.
type Transformer interface {
	Transform(runID string, res domain.YearResult) []domain.AnnualIndex
}

// BatchLoader writes annual index records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.AnnualIndex) error
}

// Options configure a run.
type Options struct {
	Baseline Baseline
	// Years are the target years; they must be consecutive and ascending.
	Years []int
	Spell domain.SpellParams

	// MaxLoadAttempts bounds sink retries per year. Zero means 5.
	MaxLoadAttempts int
	// InitialBackoff and MaxBackoff shape the retry delay. Zero means
	// 200ms and 5s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxLoadAttempts <= 0 {
		o.MaxLoadAttempts = 5
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
	return o
}

// Pipeline folds the spell-duration engine over the target years: it resolves
// the threshold calendar once, then computes each year in order, threading the
// carry state from one year into the next, and writes the results.
type Pipeline struct {
	source      YearSource
	calendars   Calendars
	transformer Transformer
	loader      BatchLoader
	opts        Options
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	progress    atomic.Pointer[domain.Progress]
}

// New creates a Pipeline with the given stages and observability.
func New(source YearSource, calendars Calendars, t Transformer, l BatchLoader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:      source,
		calendars:   calendars,
		transformer: t,
		loader:      l,
		opts:        opts.withDefaults(),
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once the threshold calendar is available.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("threshold calendar not ready")
	}
	return nil
}

// Ready reports whether the threshold calendar is available.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Progress returns the latest run snapshot.
func (p *Pipeline) Progress() domain.Progress {
	if s := p.progress.Load(); s != nil {
		return *s
	}
	return domain.Progress{}
}

func (p *Pipeline) publish(s domain.Progress) {
	s.UpdatedAt = time.Now().UTC()
	p.progress.Store(&s)
}

// Run processes every target year once and returns. Cancelling ctx stops the
// run between years and returns the context error.
func (p *Pipeline) Run(ctx context.Context) error {
	years := p.opts.Years
	if err := checkYears(years); err != nil {
		return err
	}
	first, last := years[0], years[len(years)-1]

	runID := uuid.NewString()
	prog := domain.Progress{
		RunID:      runID,
		Variable:   p.opts.Baseline.Variable,
		FirstYear:  first,
		LastYear:   last,
		YearsTotal: len(years),
		StartedAt:  time.Now().UTC(),
	}
	p.publish(prog)

	p.logger.Info("pipeline started", "run_id", runID, "variable", p.opts.Baseline.Variable,
		"first_year", first, "last_year", last, "min_run", p.opts.Spell.MinRun,
		"comparison", p.opts.Spell.Comparison)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	cal, err := p.calendars.Calendar(ctx, p.opts.Baseline)
	if err != nil {
		return fmt.Errorf("threshold calendar: %w", err)
	}
	p.ready.Store(true)
	prog.CalendarReady = true
	p.publish(prog)

	cur, err := p.source.LoadYear(ctx, first)
	if err != nil {
		return fmt.Errorf("load year %d: %w", first, err)
	}

	var carry domain.CarryState
	for i, year := range years {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err, "year", year)
			return err
		}
		start := time.Now()

		next, hasNext, err := p.loadNext(ctx, year+1)
		if err != nil {
			return err
		}
		var lookahead domain.Stack
		if hasNext {
			lookahead = next.Head(p.opts.Spell.LookaheadDays())
		}

		res, err := domain.ComputeYear(cur, cal, carry, lookahead, p.opts.Spell)
		if err != nil {
			return fmt.Errorf("compute year %d: %w", year, err)
		}
		if err := p.load(ctx, year, p.transformer.Transform(runID, res)); err != nil {
			return err
		}
		carry = res.Carry

		carried := res.Carry.Active()
		summary := domain.Summarize(res.Spell)
		p.metrics.YearsProcessed.Inc()
		p.metrics.LastYear.Set(float64(year))
		p.metrics.NoDataPixels.Set(float64(res.NoDataPixels))
		p.metrics.CarryPixels.Set(float64(carried))
		p.metrics.YearDuration.Observe(time.Since(start).Seconds())
		p.logger.Info("year processed",
			"year", year,
			"days", cur.Len(),
			"nodata_pixels", res.NoDataPixels,
			"carry_pixels", carried,
			"min", summary.Min,
			"max", summary.Max,
			"mean", summary.Mean,
			"duration", time.Since(start),
		)

		prog.CompletedYear = year
		prog.YearsDone++
		prog.NoDataPixels = res.NoDataPixels
		prog.CarryPixels = carried
		p.publish(prog)

		if i+1 < len(years) {
			if !hasNext {
				return fmt.Errorf("load year %d: %w", years[i+1], domain.ErrYearNotFound)
			}
			cur = next
		}
	}

	prog.Done = true
	p.publish(prog)
	p.logger.Info("pipeline finished", "run_id", runID, "years", len(years))
	return nil
}

// loadNext fetches the year after the one being computed. Running past the
// end of the available data is not an error; the final year then gets no
// lookahead.
func (p *Pipeline) loadNext(ctx context.Context, year int) (domain.YearRecord, bool, error) {
	rec, err := p.source.LoadYear(ctx, year)
	if errors.Is(err, domain.ErrYearNotFound) {
		return domain.YearRecord{}, false, nil
	}
	if err != nil {
		return domain.YearRecord{}, false, fmt.Errorf("load year %d: %w", year, err)
	}
	return rec, true, nil
}

// load writes one year's records, retrying with exponential backoff.
func (p *Pipeline) load(ctx context.Context, year int, records []domain.AnnualIndex) error {
	backoff := p.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := p.loader.LoadBatch(ctx, records)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= p.opts.MaxLoadAttempts {
			return fmt.Errorf("write year %d after %d attempts: %w", year, attempt, err)
		}
		p.logger.Warn("write failed, retrying", "year", year, "attempt", attempt, "backoff", backoff, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, p.opts.MaxBackoff)
	}
}

func checkYears(years []int) error {
	if len(years) == 0 {
		return errors.New("no target years")
	}
	for i := 1; i < len(years); i++ {
		if years[i] != years[i-1]+1 {
			return fmt.Errorf("target years must be consecutive: %d follows %d", years[i], years[i-1])
		}
	}
	return nil
}
