// Package store provides ticket persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/logtower/logtower/internal/models"
)

// Common store errors.
var (
	// ErrNotFound is returned when a requested ticket does not exist.
	ErrNotFound = errors.New("ticket not found")

	// ErrInvalidStatus is returned when a status transition targets a value
	// outside the known enum.
	ErrInvalidStatus = errors.New("invalid ticket status")
)

// CreateTicketParams holds the inputs for creating a ticket. MachineID,
// SourceLog and LogTimestamp are a snapshot of the triggering log record;
// the store never holds a live reference to the ring buffer.
type CreateTicketParams struct {
	MachineID    string
	SourceLog    string
	LogTimestamp string
	Title        string
	Description  string
	Status       models.TicketStatus
}

// TicketStore defines ticket persistence operations. The store exclusively
// owns ticket records; callers receive copies.
type TicketStore interface {
	// Create creates a new ticket and returns it. An empty Status defaults
	// to OPEN.
	Create(ctx context.Context, params CreateTicketParams) (*models.Ticket, error)

	// Get retrieves a ticket by ID. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*models.Ticket, error)

	// UpdateStatus sets the ticket's status and records the transition.
	// Any known status is accepted as a target, including backward moves
	// such as re-opening a closed ticket; every transition is audited.
	// Returns ErrNotFound if the ID is unknown and ErrInvalidStatus if
	// the target status is not one of the four known values; in both
	// cases the store is left unchanged.
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus) (*models.Ticket, error)

	// List retrieves tickets matching the filter, newest-created first.
	List(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, error)

	// History retrieves the status transition audit trail for a ticket,
	// oldest first. Returns ErrNotFound if the ID is unknown.
	History(ctx context.Context, id string) ([]*models.TicketTransition, error)

	// Count returns the total number of tickets.
	Count(ctx context.Context) (int, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
