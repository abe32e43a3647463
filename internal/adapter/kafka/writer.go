// Package kafka publishes ingested brightness samples to a sink topic for
// downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// Writer produces brightness samples to a Kafka topic.
// It implements pipeline.SamplePublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSamples serializes and publishes a batch of samples in a single
// WriteMessages call. Keys are the deterministic external IDs, so compacted
// topics converge on the latest reading per pixel and night.
func (w *Writer) PublishSamples(ctx context.Context, samples []domain.BrightnessSample) error {
	if len(samples) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(samples))
	for i := range samples {
		msg, err := serializeToMessage(samples[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a BrightnessSample into a Kafka message.
func serializeToMessage(sample domain.BrightnessSample) (kafkago.Message, error) {
	data, err := json.Marshal(sample)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize brightness sample: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(sample.ExternalID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "satellite_source", Value: []byte(sample.SatelliteSource)},
			{Key: "processing_method", Value: []byte(sample.ProcessingMethod)},
			{Key: "processed_at", Value: []byte(sample.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
