package buffer

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/logtower/logtower/internal/models"
)

// For any capacity C and any N appended records, the ring SHALL retain
// exactly min(N, C) records, and they SHALL be the N newest in order.
func TestPropertyRingRetainsNewest(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genCapacity := gen.IntRange(1, 50)
	genNumRecords := gen.IntRange(0, 200)

	properties.Property("ring holds the min(N, C) newest records", prop.ForAll(
		func(capacity, numRecords int) bool {
			r := New(capacity)
			for i := 0; i < numRecords; i++ {
				r.Append(&models.LogRecord{
					MachineID: "m",
					Severity:  models.SeverityInfo,
					Message:   fmt.Sprintf("r-%d", i),
					Timestamp: time.Now(),
				})
			}

			expected := numRecords
			if expected > capacity {
				expected = capacity
			}
			if r.Count() != expected {
				return false
			}

			snap := r.Snapshot()
			if len(snap) != expected {
				return false
			}
			// Snapshot is oldest first; the oldest retained record is
			// numRecords - expected.
			for i, rec := range snap {
				if rec.Message != fmt.Sprintf("r-%d", numRecords-expected+i) {
					return false
				}
			}
			return true
		},
		genCapacity,
		genNumRecords,
	))

	properties.Property("query result is snapshot reversed", prop.ForAll(
		func(capacity, numRecords int) bool {
			r := New(capacity)
			for i := 0; i < numRecords; i++ {
				r.Append(&models.LogRecord{
					MachineID: "m",
					Severity:  models.SeverityInfo,
					Message:   fmt.Sprintf("r-%d", i),
					Timestamp: time.Now(),
				})
			}

			snap := r.Snapshot()
			got := r.QueryRecent(models.LogFilter{}, 0, 0)
			if len(got) != len(snap) {
				return false
			}
			for i := range got {
				if got[i] != snap[len(snap)-1-i] {
					return false
				}
			}
			return true
		},
		genCapacity,
		genNumRecords,
	))

	properties.TestingRun(t)
}
