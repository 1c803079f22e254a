// Package ingest provides the ingestion pipeline: validation and
// normalization of incoming log records, the ring-buffer append, and the
// hand-off to the subscription broker.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logtower/logtower/internal/broker"
	"github.com/logtower/logtower/internal/buffer"
	"github.com/logtower/logtower/internal/metrics"
	"github.com/logtower/logtower/internal/models"
)

// ErrInvalidRecord is returned when an incoming record fails validation.
// Rejected records are neither buffered nor broadcast.
var ErrInvalidRecord = errors.New("invalid log record")

// Pipeline validates incoming log records and hands them to the ring buffer
// and the broker. The append and the broadcast happen under one lock, so a
// reader never observes a buffered record that has not been offered to the
// current subscribers.
type Pipeline struct {
	mu     sync.RWMutex
	ring   *buffer.Ring
	broker *broker.Broker
	logger *slog.Logger

	ingested atomic.Int64
	rejected atomic.Int64
}

// NewPipeline creates a Pipeline over the given ring buffer and broker.
func NewPipeline(ring *buffer.Ring, b *broker.Broker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		ring:   ring,
		broker: b,
		logger: logger,
	}
}

// Ingest validates and normalizes the record, appends it to the ring buffer,
// and broadcasts it to all current subscribers. It returns the stored record,
// or ErrInvalidRecord (wrapped with the reason) when validation fails.
func (p *Pipeline) Ingest(rec models.LogRecord) (*models.LogRecord, error) {
	normalized, err := p.normalize(rec)
	if err != nil {
		p.rejected.Add(1)
		metrics.RecordsRejected.Inc()
		p.logger.Debug("record rejected", "error", err, "machine_id", rec.MachineID)
		return nil, err
	}

	p.mu.Lock()
	p.ring.Append(normalized)
	p.broker.PublishRecord(normalized)
	p.mu.Unlock()

	p.ingested.Add(1)
	metrics.RecordsIngested.WithLabelValues(string(normalized.Severity)).Inc()
	return normalized, nil
}

// normalize validates required fields and fills producer-omitted ones.
func (p *Pipeline) normalize(rec models.LogRecord) (*models.LogRecord, error) {
	rec.MachineID = strings.TrimSpace(rec.MachineID)
	rec.Message = strings.TrimSpace(rec.Message)

	if rec.MachineID == "" {
		return nil, fmt.Errorf("%w: machine_id is required", ErrInvalidRecord)
	}
	if rec.Message == "" {
		return nil, fmt.Errorf("%w: log message is required", ErrInvalidRecord)
	}

	if rec.Severity == "" {
		// Producers forwarding raw lines omit the level; infer it from the
		// message the way the agents do.
		rec.Severity = models.InferSeverity(rec.Message)
	} else {
		sev, err := models.ParseSeverity(string(rec.Severity))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		rec.Severity = sev
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	return &rec, nil
}

// QueryRecent returns buffered records matching the filter, newest first.
// It takes the pipeline read lock so queries order consistently with the
// append-then-broadcast sequence.
func (p *Pipeline) QueryRecent(filter models.LogFilter, limit, offset int) []*models.LogRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ring.QueryRecent(filter, limit, offset)
}

// Count returns the number of buffered records.
func (p *Pipeline) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ring.Count()
}

// Ingested returns the total number of accepted records.
func (p *Pipeline) Ingested() int64 {
	return p.ingested.Load()
}

// Rejected returns the total number of rejected records.
func (p *Pipeline) Rejected() int64 {
	return p.rejected.Load()
}
