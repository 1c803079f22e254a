// Package query provides the read-only facade over the buffered logs and the
// ticket store used by REST clients.
package query

import (
	"context"
	"fmt"

	"github.com/logtower/logtower/internal/ingest"
	"github.com/logtower/logtower/internal/models"
	"github.com/logtower/logtower/internal/store"
)

// DefaultLimit caps log query pages when the client did not ask for a size.
const DefaultLimit = 100

// Engine serves paginated, filtered views of buffered logs and tickets.
// It is a pure function of current store state and performs no writes.
type Engine struct {
	pipeline *ingest.Pipeline
	tickets  store.TicketStore
}

// NewEngine creates an Engine over the given pipeline and ticket store.
func NewEngine(pipeline *ingest.Pipeline, tickets store.TicketStore) *Engine {
	return &Engine{
		pipeline: pipeline,
		tickets:  tickets,
	}
}

// Logs returns buffered log records matching the filter, newest first.
// Non-positive limits fall back to DefaultLimit; negative offsets are
// treated as zero.
func (e *Engine) Logs(filter models.LogFilter, limit, offset int) []*models.LogRecord {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return e.pipeline.QueryRecent(filter, limit, offset)
}

// LogCount returns the number of currently buffered records.
func (e *Engine) LogCount() int {
	return e.pipeline.Count()
}

// Tickets returns tickets matching the filter, newest-created first.
func (e *Engine) Tickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, error) {
	tickets, err := e.tickets.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	return tickets, nil
}

// Stats summarizes the buffered records for dashboard views.
type Stats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByMachine  map[string]int `json:"by_machine"`
}

// Stats computes per-severity and per-machine counts over the buffer.
func (e *Engine) Stats() *Stats {
	records := e.pipeline.QueryRecent(models.LogFilter{}, 0, 0)

	stats := &Stats{
		Total:      len(records),
		BySeverity: make(map[string]int),
		ByMachine:  make(map[string]int),
	}
	for _, rec := range records {
		stats.BySeverity[string(rec.Severity)]++
		stats.ByMachine[rec.MachineID]++
	}
	return stats
}
