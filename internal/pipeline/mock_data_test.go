package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// --- mocks ---

// mockSource serves in-memory 1x1 years and counts loads per year.
type mockSource struct {
	mu    sync.Mutex
	years map[int]domain.YearRecord
	loads map[int]int
	err   error
}

func newMockSource() *mockSource {
	return &mockSource{years: map[int]domain.YearRecord{}, loads: map[int]int{}}
}

func (m *mockSource) LoadYear(_ context.Context, year int) (domain.YearRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[year]++
	if m.err != nil {
		return domain.YearRecord{}, m.err
	}
	rec, ok := m.years[year]
	if !ok {
		return domain.YearRecord{}, fmt.Errorf("%w: %d", domain.ErrYearNotFound, year)
	}
	return rec, nil
}

func (m *mockSource) totalLoads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.loads {
		n += c
	}
	return n
}

// put stores a 1x1 year built from series.
func (m *mockSource) put(year int, series []float64) {
	days := make([]domain.Grid, len(series))
	for i, v := range series {
		days[i] = domain.FilledGrid(1, 1, v)
	}
	m.years[year] = domain.NewYearRecord(year, days)
}

// putConst stores a 1x1 year with a constant value.
func (m *mockSource) putConst(year int, v float64) {
	m.put(year, repeat(v, domain.DaysInYear(year)))
}

type mockCalendarStore struct {
	mu      sync.Mutex
	saved   map[string]*domain.Calendar
	loadErr error
}

func newMockCalendarStore() *mockCalendarStore {
	return &mockCalendarStore{saved: map[string]*domain.Calendar{}}
}

func (m *mockCalendarStore) LoadCalendar(_ context.Context, key string) (*domain.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cal, ok := m.saved[key]
	if !ok {
		return nil, domain.ErrCalendarNotFound
	}
	return cal, nil
}

func (m *mockCalendarStore) SaveCalendar(_ context.Context, key string, cal *domain.Calendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[key] = cal
	return nil
}

type mockLoader struct {
	name     string
	mu       sync.Mutex
	loaded   []domain.AnnualIndex
	calls    int
	failures int // fail this many calls before succeeding; -1 fails forever
}

func (m *mockLoader) Name() string { return m.name }

func (m *mockLoader) LoadBatch(_ context.Context, records []domain.AnnualIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures != 0 {
		if m.failures > 0 {
			m.failures--
		}
		return errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, records...)
	return nil
}

// byIndex returns the loaded records for one index, keyed by year.
func (m *mockLoader) byIndex(index string) map[int]domain.AnnualIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]domain.AnnualIndex{}
	for _, r := range m.loaded {
		if r.Index == index {
			out[r.Year] = r
		}
	}
	return out
}

// --- data helpers ---

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
