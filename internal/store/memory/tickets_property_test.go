package memory

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/logtower/logtower/internal/models"
	"github.com/logtower/logtower/internal/store"
)

// For any sequence of status updates, the recorded history SHALL form an
// unbroken chain from OPEN to the ticket's current status.
func TestPropertyTransitionHistoryIsChained(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genStatus := gen.OneConstOf(
		models.TicketStatusOpen,
		models.TicketStatusInProgress,
		models.TicketStatusResolved,
		models.TicketStatusClosed,
	)
	genUpdates := gen.SliceOf(genStatus)

	properties.Property("history chains and ends at the current status", prop.ForAll(
		func(updates []models.TicketStatus) bool {
			s := NewTicketStore(nil)
			ctx := context.Background()

			ticket, err := s.Create(ctx, store.CreateTicketParams{
				MachineID: "web-1",
				SourceLog: "ERROR something broke",
			})
			if err != nil {
				return false
			}

			for _, status := range updates {
				if _, err := s.UpdateStatus(ctx, ticket.ID, status); err != nil {
					return false
				}
			}

			history, err := s.History(ctx, ticket.ID)
			if err != nil {
				return false
			}
			if len(history) != len(updates) {
				return false
			}

			prev := models.TicketStatusOpen
			for i, tr := range history {
				if tr.From != prev || tr.To != updates[i] {
					return false
				}
				prev = tr.To
			}

			current, err := s.Get(ctx, ticket.ID)
			if err != nil {
				return false
			}
			return current.Status == prev
		},
		genUpdates,
	))

	properties.TestingRun(t)
}
