package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/climate-extremes-etl/internal/config"
	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// Payload is the msgpack body of one annual index message.
type Payload struct {
	RunID       string         `msgpack:"run_id"`
	Variable    string         `msgpack:"variable"`
	Index       string         `msgpack:"index"`
	Year        int            `msgpack:"year"`
	ProcessedAt time.Time      `msgpack:"processed_at"`
	Height      int            `msgpack:"height"`
	Width       int            `msgpack:"width"`
	Summary     domain.Summary `msgpack:"summary"`
	Values      []float64      `msgpack:"values"`
}

// DefaultMaxMessageBytes matches a stock broker's message.max.bytes.
const DefaultMaxMessageBytes = 1_000_000

// ErrMessageTooLarge means one annual grid does not fit in a single message.
// Raise message.max.bytes on the broker (or max.message.bytes on the topic)
// together with KAFKA_MAX_MESSAGE_BYTES.
var ErrMessageTooLarge = errors.New("annual index message exceeds KAFKA_MAX_MESSAGE_BYTES")

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer   *kafkago.Writer
	maxBytes int
	logger   *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Batches
// are capped at the same size as a single message so the broker never sees a
// request it would reject.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	maxBytes := cfg.KafkaMaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchBytes:   int64(maxBytes),
	}
	return &Writer{writer: w, maxBytes: maxBytes, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// LoadBatch serializes and publishes annual index grids to the sink topic in
// a single WriteMessages call. Records are keyed by variable/index/year so a
// rerun lands on the same partition as the record it supersedes.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.AnnualIndex) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		if err := checkSize(msg, w.maxBytes); err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("published annual indices", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AnnualIndex into a Kafka message.
func serializeToMessage(r domain.AnnualIndex) (kafkago.Message, error) {
	data, err := msgpack.Marshal(Payload{
		RunID:       r.RunID,
		Variable:    r.Variable,
		Index:       r.Index,
		Year:        r.Year,
		ProcessedAt: r.ProcessedAt,
		Height:      r.Grid.Height,
		Width:       r.Grid.Width,
		Summary:     r.Summary,
		Values:      r.Grid.Values,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize annual index %s: %w", r.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(r.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "index", Value: []byte(r.Index)},
			{Key: "year", Value: []byte(strconv.Itoa(r.Year))},
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "processed_at", Value: []byte(r.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

// checkSize rejects a message before the broker does, so the failure names
// the record and the setting to raise instead of a generic produce error.
func checkSize(msg kafkago.Message, maxBytes int) error {
	size := len(msg.Key) + len(msg.Value)
	for _, h := range msg.Headers {
		size += len(h.Key) + len(h.Value)
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrMessageTooLarge, msg.Key, size, maxBytes)
	}
	return nil
}

// DecodePayload parses a message value produced by Writer.
func DecodePayload(value []byte) (Payload, error) {
	var p Payload
	if err := msgpack.Unmarshal(value, &p); err != nil {
		return Payload{}, fmt.Errorf("decode annual index payload: %w", err)
	}
	return p, nil
}
