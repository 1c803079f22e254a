package handlers

import (
	"testing"
	"time"

	"github.com/logtower/logtower/internal/broker"
	"github.com/logtower/logtower/internal/models"
)

func TestParseWireTimestamp(t *testing.T) {
	tests := []struct {
		input    string
		wantZero bool
	}{
		{"2025-03-14T09:26:53Z", false},
		{"2025-03-14T09:26:53.123456Z", false},
		// Agents send naive ISO-8601 without a zone.
		{"2025-03-14T09:26:53", false},
		{"2025-03-14T09:26:53.123456", false},
		{"", true},
		{"yesterday", true},
		{"1741944413", true},
	}

	for _, tt := range tests {
		got := parseWireTimestamp(tt.input)
		if got.IsZero() != tt.wantZero {
			t.Errorf("parseWireTimestamp(%q) = %v, wantZero = %v", tt.input, got, tt.wantZero)
		}
	}

	got := parseWireTimestamp("2025-03-14T09:26:53")
	if got.Year() != 2025 || got.Minute() != 26 {
		t.Errorf("parsed zoneless timestamp = %v", got)
	}
}

func TestEncodeStreamMessage(t *testing.T) {
	rec := &models.LogRecord{
		MachineID: "web-1",
		Severity:  models.SeverityError,
		Message:   "disk failure",
		Timestamp: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	out := encodeStreamMessage(broker.Message{Record: rec})
	wire, ok := out.(*wireLogRecord)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if wire.Log != "disk failure" || wire.Severity != "ERROR" {
		t.Errorf("wire = %+v", wire)
	}
	if wire.Timestamp != "2025-03-14T09:26:53Z" {
		t.Errorf("Timestamp = %q", wire.Timestamp)
	}

	ticket := &models.Ticket{ID: "t-1", Status: models.TicketStatusOpen}
	out = encodeStreamMessage(broker.Message{Ticket: ticket})
	event, ok := out.(*wireTicketEvent)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if event.Type != "new_ticket" || event.Ticket.ID != "t-1" {
		t.Errorf("event = %+v", event)
	}
}
