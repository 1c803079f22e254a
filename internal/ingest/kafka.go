package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/logtower/logtower/internal/models"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds the settings for the Kafka ingestion source.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaSource consumes JSON-encoded log records from a Kafka topic and feeds
// them into the ingestion pipeline. It is an optional producer path for
// fleets that already ship logs through a broker instead of connecting agents
// directly.
type KafkaSource struct {
	reader   *kafka.Reader
	pipeline *Pipeline
	logger   *slog.Logger
	done     chan struct{}
}

// NewKafkaSource creates a KafkaSource for the given configuration.
func NewKafkaSource(cfg KafkaConfig, pipeline *Pipeline, logger *slog.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("incomplete kafka configuration: brokers, topic and group id are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &KafkaSource{
		reader:   reader,
		pipeline: pipeline,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Run consumes messages until the context is cancelled. Messages that fail to
// decode or validate are committed anyway so a poison message never blocks
// the partition.
func (s *KafkaSource) Run(ctx context.Context) error {
	defer close(s.done)
	s.logger.Info("kafka source started", "topic", s.reader.Config().Topic)

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("fetching kafka message: %w", err)
		}

		var rec models.LogRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			s.logger.Warn("discarding undecodable kafka message",
				"offset", msg.Offset,
				"error", err,
			)
			_ = s.reader.CommitMessages(ctx, msg)
			continue
		}

		if _, err := s.pipeline.Ingest(rec); err != nil {
			s.logger.Warn("discarding invalid kafka record",
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Error("failed to commit kafka offset", "offset", msg.Offset, "error", err)
		}
	}
}

// Name identifies the source for shutdown logging.
func (s *KafkaSource) Name() string {
	return "kafka-source"
}

// Shutdown closes the Kafka reader and waits for the consume loop to exit.
func (s *KafkaSource) Shutdown(ctx context.Context) error {
	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("closing kafka reader: %w", err)
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
