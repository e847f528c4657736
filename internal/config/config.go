package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// Sink names accepted in SINKS.
const (
	SinkFile   = "file"
	SinkKafka  = "kafka"
	SinkSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir   string
	OutputDir string
	Variable  string
	IndexName string
	// ExceedanceName labels the fraction-of-days index emitted alongside the
	// spell index (e.g. TN10p next to CSDI).
	ExceedanceName string

	BaselineStart int
	BaselineEnd   int
	TargetStart   int
	TargetEnd     int

	Calendar domain.CalendarParams
	Spell    domain.SpellParams

	CalendarCacheSize int

	Sinks          []string
	KafkaBrokers   []string
	KafkaSinkTopic string
	// KafkaMaxMessageBytes must not exceed the broker's message.max.bytes;
	// one annual grid is one message.
	KafkaMaxMessageBytes int
	SQLitePath           string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// HasSink reports whether name is among the enabled sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// BaselineYears lists the baseline years in order.
func (c *Config) BaselineYears() []int { return yearRange(c.BaselineStart, c.BaselineEnd) }

// TargetYears lists the target years in order.
func (c *Config) TargetYears() []int { return yearRange(c.TargetStart, c.TargetEnd) }

func yearRange(start, end int) []int {
	years := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		years = append(years, y)
	}
	return years
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &intParser{}
	baselineStart := p.int("BASELINE_START", 1961)
	baselineEnd := p.int("BASELINE_END", 1990)
	targetStart := p.int("TARGET_START", 1961)
	targetEnd := p.int("TARGET_END", 2014)
	windowRadius := p.int("WINDOW_RADIUS", 2)
	minRun := p.int("MIN_RUN", 6)
	tileRows := p.int("TILE_ROWS", domain.DefaultTileRows)
	workers := p.int("WORKERS", 0)
	cacheSize := p.int("CALENDAR_CACHE_SIZE", 4)
	maxMessageBytes := p.int("KAFKA_MAX_MESSAGE_BYTES", 1_000_000)
	if p.err != nil {
		return nil, p.err
	}

	percentile, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("PERCENTILE", "10"), 64)
	if err != nil {
		return nil, errors.New("invalid PERCENTILE")
	}
	comparison, err := domain.ParseComparison(sharedcfg.EnvOrDefault("COMPARISON", "less"))
	if err != nil {
		return nil, fmt.Errorf("invalid COMPARISON: %w", err)
	}
	method, err := domain.ParseQuantileMethod(sharedcfg.EnvOrDefault("QUANTILE_METHOD", "linear"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUANTILE_METHOD: %w", err)
	}
	dayIndex, err := domain.ParseDayIndexMode(sharedcfg.EnvOrDefault("DAY_INDEX", "ordinal"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAY_INDEX: %w", err)
	}

	tiling := domain.Tiling{TileRows: tileRows, Workers: workers}
	cfg := &Config{
		DataDir:        sharedcfg.EnvOrDefault("DATA_DIR", "data/grids"),
		OutputDir:      sharedcfg.EnvOrDefault("OUTPUT_DIR", "data/out"),
		Variable:       sharedcfg.EnvOrDefault("VARIABLE", "tmin"),
		IndexName:      sharedcfg.EnvOrDefault("INDEX_NAME", "CSDI"),
		ExceedanceName: sharedcfg.EnvOrDefault("EXCEEDANCE_NAME", "TN10p"),

		BaselineStart: baselineStart,
		BaselineEnd:   baselineEnd,
		TargetStart:   targetStart,
		TargetEnd:     targetEnd,

		Calendar: domain.CalendarParams{
			WindowRadius: windowRadius,
			Percentile:   percentile,
			Method:       method,
			DayIndex:     dayIndex,
		},
		Spell: domain.SpellParams{
			MinRun:     minRun,
			Comparison: comparison,
			DayIndex:   dayIndex,
			Tiling:     tiling,
		},
		CalendarCacheSize: cacheSize,

		Sinks:                parseList(sharedcfg.EnvOrDefault("SINKS", SinkFile)),
		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:       sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "climate-indices"),
		KafkaMaxMessageBytes: maxMessageBytes,
		SQLitePath:           sharedcfg.EnvOrDefault("SQLITE_PATH", "data/out/indices.db"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BaselineStart > c.BaselineEnd {
		return errors.New("BASELINE_START must not be after BASELINE_END")
	}
	if c.TargetStart > c.TargetEnd {
		return errors.New("TARGET_START must not be after TARGET_END")
	}
	if err := c.Calendar.Validate(); err != nil {
		return fmt.Errorf("invalid WINDOW_RADIUS or PERCENTILE: %w", err)
	}
	if err := c.Spell.Validate(); err != nil {
		return fmt.Errorf("invalid MIN_RUN: %w", err)
	}
	if c.CalendarCacheSize < 1 {
		return errors.New("invalid CALENDAR_CACHE_SIZE: must be at least 1")
	}
	if c.Variable == "" {
		return errors.New("VARIABLE is required")
	}
	if len(c.Sinks) == 0 {
		return errors.New("SINKS is required")
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkFile, SinkSQLite:
		case SinkKafka:
			if len(c.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required for the kafka sink")
			}
			if c.KafkaSinkTopic == "" {
				return errors.New("KAFKA_SINK_TOPIC is required for the kafka sink")
			}
			if c.KafkaMaxMessageBytes < 1 {
				return errors.New("invalid KAFKA_MAX_MESSAGE_BYTES: must be positive")
			}
		default:
			return fmt.Errorf("invalid SINKS: unknown sink %q", s)
		}
	}
	return nil
}

// intParser reads integer env vars and remembers the first failure.
type intParser struct {
	err error
}

func (p *intParser) int(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %q is not an integer", key, s)
		return fallback
	}
	return n
}

func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.ToLower(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
