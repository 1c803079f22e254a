package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/logtower/logtower/internal/broker"
	"github.com/logtower/logtower/internal/buffer"
	"github.com/logtower/logtower/internal/ingest"
	"github.com/logtower/logtower/internal/models"
	"github.com/logtower/logtower/internal/store"
	"github.com/logtower/logtower/internal/store/memory"
)

func newEngine(t *testing.T, capacity int) (*Engine, *ingest.Pipeline, store.TicketStore) {
	t.Helper()
	pipeline := ingest.NewPipeline(buffer.New(capacity), broker.New(16, nil), nil)
	tickets := memory.NewTicketStore(nil)
	return NewEngine(pipeline, tickets), pipeline, tickets
}

func ingestN(t *testing.T, p *ingest.Pipeline, machine string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := p.Ingest(models.LogRecord{
			MachineID: machine,
			Message:   fmt.Sprintf("event %d", i),
		})
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
}

func TestLogsPagination(t *testing.T) {
	e, p, _ := newEngine(t, 100)
	ingestN(t, p, "web-1", 10)

	page1 := e.Logs(models.LogFilter{}, 4, 0)
	page2 := e.Logs(models.LogFilter{}, 4, 4)
	page3 := e.Logs(models.LogFilter{}, 4, 8)

	if len(page1) != 4 || len(page2) != 4 || len(page3) != 2 {
		t.Fatalf("page sizes = %d, %d, %d", len(page1), len(page2), len(page3))
	}
	if page1[0].Message != "event 9" {
		t.Errorf("newest first: got %q", page1[0].Message)
	}
	if page3[1].Message != "event 0" {
		t.Errorf("oldest last: got %q", page3[1].Message)
	}
}

func TestLogsDefaultLimit(t *testing.T) {
	e, p, _ := newEngine(t, 300)
	ingestN(t, p, "web-1", 250)

	got := e.Logs(models.LogFilter{}, 0, 0)
	if len(got) != DefaultLimit {
		t.Errorf("len = %d, want %d", len(got), DefaultLimit)
	}

	// Negative offset treated as zero.
	same := e.Logs(models.LogFilter{}, 0, -5)
	if len(same) != DefaultLimit || same[0].Message != got[0].Message {
		t.Error("negative offset should behave like zero")
	}
}

func TestLogsConjunctiveFilter(t *testing.T) {
	e, p, _ := newEngine(t, 100)

	p.Ingest(models.LogRecord{MachineID: "web-1", Message: "disk error on sda"})
	p.Ingest(models.LogRecord{MachineID: "web-2", Message: "disk error on sdb"})
	p.Ingest(models.LogRecord{MachineID: "web-1", Message: "all good here"})

	got := e.Logs(models.LogFilter{MachineID: "web-1", Severity: models.SeverityError}, 0, 0)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Message != "disk error on sda" {
		t.Errorf("got %q", got[0].Message)
	}
}

func TestStats(t *testing.T) {
	e, p, _ := newEngine(t, 100)

	p.Ingest(models.LogRecord{MachineID: "web-1", Message: "request failed"})
	p.Ingest(models.LogRecord{MachineID: "web-1", Message: "routine check"})
	p.Ingest(models.LogRecord{MachineID: "db-1", Message: "warn: replication lag"})

	stats := e.Stats()
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.BySeverity["ERROR"] != 1 || stats.BySeverity["INFO"] != 1 || stats.BySeverity["WARNING"] != 1 {
		t.Errorf("BySeverity = %v", stats.BySeverity)
	}
	if stats.ByMachine["web-1"] != 2 || stats.ByMachine["db-1"] != 1 {
		t.Errorf("ByMachine = %v", stats.ByMachine)
	}
}

func TestTicketsDelegatesToStore(t *testing.T) {
	e, _, tickets := newEngine(t, 10)
	ctx := context.Background()

	created, err := tickets.Create(ctx, store.CreateTicketParams{
		MachineID: "web-1",
		SourceLog: "ERROR broken",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := e.Tickets(ctx, models.TicketFilter{MachineID: "web-1"})
	if err != nil {
		t.Fatalf("Tickets: %v", err)
	}
	if len(got) != 1 || got[0].ID != created.ID {
		t.Errorf("got %+v", got)
	}

	none, err := e.Tickets(ctx, models.TicketFilter{MachineID: "db-9"})
	if err != nil {
		t.Fatalf("Tickets: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty result, got %d", len(none))
	}
}
