// Package buffer provides the fixed-capacity in-memory store for recent log
// records. Records are appended in ingestion order and the oldest record is
// evicted once capacity is exceeded.
package buffer

import (
	"sync"

	"github.com/logtower/logtower/internal/models"
)

// DefaultCapacity is the ring capacity used when none is configured.
const DefaultCapacity = 1000

// Ring holds the most recent log records up to a fixed capacity.
// Appends are serialized by the ingestion pipeline; reads may be concurrent.
type Ring struct {
	mu       sync.RWMutex
	records  []*models.LogRecord
	start    int
	size     int
	capacity int
}

// New creates a Ring with the given capacity. Non-positive capacities fall
// back to DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		records:  make([]*models.LogRecord, capacity),
		capacity: capacity,
	}
}

// Capacity returns the maximum number of records the ring retains.
func (r *Ring) Capacity() int {
	return r.capacity
}

// Count returns the number of records currently buffered.
func (r *Ring) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Append adds a record, evicting the oldest one when the ring is full.
func (r *Ring) Append(rec *models.LogRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < r.capacity {
		r.records[(r.start+r.size)%r.capacity] = rec
		r.size++
		return
	}
	// Full: overwrite the oldest slot and advance the start.
	r.records[r.start] = rec
	r.start = (r.start + 1) % r.capacity
}

// QueryRecent returns buffered records matching the filter, newest first.
// Records with equal timestamps keep their relative ingestion order.
// A non-positive limit means no limit; offset skips matching records from the
// newest end.
func (r *Ring) QueryRecent(filter models.LogFilter, limit, offset int) []*models.LogRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.LogRecord, 0, r.size)
	skipped := 0
	// Walk from newest to oldest. Ingestion order is the ring order, so no
	// sort is needed and ties on timestamp stay stable.
	for i := r.size - 1; i >= 0; i-- {
		rec := r.records[(r.start+i)%r.capacity]
		if !filter.Matches(rec) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Snapshot returns a copy of all buffered records in ingestion order,
// oldest first.
func (r *Ring) Snapshot() []*models.LogRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.LogRecord, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.records[(r.start+i)%r.capacity])
	}
	return out
}
