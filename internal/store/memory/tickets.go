// Package memory provides an in-memory TicketStore for single-process
// deployments and tests.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/logtower/logtower/internal/models"
	"github.com/logtower/logtower/internal/store"
)

// TicketStore implements store.TicketStore with mutex-guarded maps.
type TicketStore struct {
	mu          sync.RWMutex
	tickets     map[string]*models.Ticket
	order       []string // ticket IDs in creation order
	transitions map[string][]*models.TicketTransition
	logger      *slog.Logger
}

// NewTicketStore creates an empty in-memory ticket store.
func NewTicketStore(logger *slog.Logger) *TicketStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketStore{
		tickets:     make(map[string]*models.Ticket),
		transitions: make(map[string][]*models.TicketTransition),
		logger:      logger,
	}
}

// Create creates a new ticket from the given snapshot.
func (s *TicketStore) Create(ctx context.Context, params store.CreateTicketParams) (*models.Ticket, error) {
	status := params.Status
	if status == "" {
		status = models.TicketStatusOpen
	}
	if !status.IsValid() {
		return nil, store.ErrInvalidStatus
	}

	now := time.Now().UTC()
	t := &models.Ticket{
		ID:           uuid.NewString(),
		MachineID:    params.MachineID,
		SourceLog:    params.SourceLog,
		LogTimestamp: params.LogTimestamp,
		Title:        params.Title,
		Description:  params.Description,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	s.tickets[t.ID] = t
	s.order = append(s.order, t.ID)
	s.mu.Unlock()

	s.logger.Debug("ticket created", "ticket_id", t.ID, "machine_id", t.MachineID)
	return copyTicket(t), nil
}

// Get retrieves a ticket by ID.
func (s *TicketStore) Get(ctx context.Context, id string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyTicket(t), nil
}

// UpdateStatus sets the ticket's status and records the transition.
func (s *TicketStore) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) (*models.Ticket, error) {
	if !status.IsValid() {
		return nil, store.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	now := time.Now().UTC()
	s.transitions[id] = append(s.transitions[id], &models.TicketTransition{
		TicketID: id,
		From:     t.Status,
		To:       status,
		At:       now,
	})
	t.Status = status
	t.UpdatedAt = now

	s.logger.Info("ticket status updated", "ticket_id", id, "status", status)
	return copyTicket(t), nil
}

// List retrieves tickets matching the filter, newest-created first.
func (s *TicketStore) List(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Ticket, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.tickets[s.order[i]]
		if filter.Matches(t) {
			out = append(out, copyTicket(t))
		}
	}
	return out, nil
}

// History retrieves the transition audit trail for a ticket, oldest first.
func (s *TicketStore) History(ctx context.Context, id string) ([]*models.TicketTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tickets[id]; !ok {
		return nil, store.ErrNotFound
	}

	trail := s.transitions[id]
	out := make([]*models.TicketTransition, len(trail))
	for i, tr := range trail {
		cp := *tr
		out[i] = &cp
	}
	return out, nil
}

// Count returns the total number of tickets.
func (s *TicketStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets), nil
}

// Ping always succeeds for the in-memory store.
func (s *TicketStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *TicketStore) Close() error {
	return nil
}

func copyTicket(t *models.Ticket) *models.Ticket {
	cp := *t
	return &cp
}

var _ store.TicketStore = (*TicketStore)(nil)
