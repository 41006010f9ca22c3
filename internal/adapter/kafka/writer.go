package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/config"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

// Writer produces validation diagnostics to a Kafka topic.
// It implements pipeline.DiagnosticPublisher.
type Writer struct {
	writer       *kafkago.Writer
	controllerID string
	logger       *slog.Logger
}

// NewWriter creates a Kafka producer for the configured diagnostics topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaDiagnosticsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, controllerID: cfg.Hydrawise.ControllerID, logger: logger}
}

// PublishDiagnostics publishes all diagnostics of a run in a single
// WriteMessages call.
func (w *Writer) PublishDiagnostics(ctx context.Context, diags []domain.Diagnostic, runAt time.Time) error {
	if len(diags) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(diags))
	for i := range diags {
		msg, err := serializeToMessage(w.controllerID, diags[i], runAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish diagnostics: %w", err)
	}
	w.logger.Debug("diagnostics published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Diagnostic into a Kafka message keyed by
// controller and zone so one zone's diagnostics stay on one partition.
func serializeToMessage(controllerID string, d domain.Diagnostic, runAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize diagnostic: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(controllerID + "/" + strconv.Itoa(d.ZoneIndex)),
		Value: data,
		Time:  runAt,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(d.Kind)},
			{Key: "controller_id", Value: []byte(controllerID)},
			{Key: "run_at", Value: []byte(runAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
