package models

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

// Ticket lifecycle states. The expected forward path is
// OPEN -> IN_PROGRESS -> RESOLVED -> CLOSED, but any transition between
// known states is accepted and recorded in the ticket's history.
const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketStatuses lists all known ticket statuses in forward-path order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// IsValid reports whether the status is one of the four known states.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ParseTicketStatus parses a ticket status string case-insensitively.
func ParseTicketStatus(s string) (TicketStatus, error) {
	st := TicketStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown ticket status %q", s)
	}
	return st, nil
}

// Ticket represents a tracked incident created from one log record.
// SourceLog and LogTimestamp are a snapshot of the triggering record taken at
// creation time; evicting the record from the ring buffer does not affect them.
type Ticket struct {
	ID           string       `json:"id"`
	MachineID    string       `json:"machine_id"`
	SourceLog    string       `json:"log"`
	LogTimestamp string       `json:"timestamp"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       TicketStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TicketTransition records one status change of a ticket.
type TicketTransition struct {
	TicketID string       `json:"ticket_id"`
	From     TicketStatus `json:"from"`
	To       TicketStatus `json:"to"`
	At       time.Time    `json:"at"`
}

// TicketFilter selects tickets by conjunction of its non-zero fields.
// The zero value matches every ticket.
type TicketFilter struct {
	MachineID string
	Status    TicketStatus
}

// Matches reports whether the ticket satisfies every set predicate.
func (f TicketFilter) Matches(t *Ticket) bool {
	if f.MachineID != "" && t.MachineID != f.MachineID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// DefaultTicketTitle builds the default title for a ticket created from a log
// record when the client did not supply one.
func DefaultTicketTitle(rec *LogRecord) string {
	return fmt.Sprintf("%s on %s", rec.Severity, rec.MachineID)
}
