package broker

import (
	"fmt"
	"testing"

	"github.com/logtower/logtower/internal/models"
)

func record(msg string) *models.LogRecord {
	return &models.LogRecord{
		MachineID: "web-1",
		Severity:  models.SeverityInfo,
		Message:   msg,
	}
}

func TestFanOutToAllSubscribers(t *testing.T) {
	b := New(10, nil)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	b.PublishRecord(record("hello"))

	for _, sub := range []*Subscriber{sub1, sub2} {
		select {
		case msg := <-sub.Ch:
			if msg.Record == nil || msg.Record.Message != "hello" {
				t.Errorf("unexpected message: %+v", msg)
			}
		default:
			t.Errorf("subscriber %s received nothing", sub.ID)
		}
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := New(2, nil)
	sub := b.Subscribe()

	// Queue bound is 2; publish 3 without consuming.
	b.PublishRecord(record("first"))
	b.PublishRecord(record("second"))
	b.PublishRecord(record("third"))

	if sub.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", sub.Dropped())
	}

	// The two newest messages remain, in order.
	want := []string{"second", "third"}
	for i, expected := range want {
		select {
		case msg := <-sub.Ch:
			if msg.Record.Message != expected {
				t.Errorf("queued[%d] = %q, want %q", i, msg.Record.Message, expected)
			}
		default:
			t.Fatalf("expected %d queued messages, drained %d", len(want), i)
		}
	}
	select {
	case msg := <-sub.Ch:
		t.Errorf("unexpected extra message: %+v", msg)
	default:
	}
}

func TestSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	b := New(1, nil)
	slow := b.Subscribe()
	fast := b.Subscribe()

	for i := 0; i < 5; i++ {
		b.PublishRecord(record(fmt.Sprintf("msg-%d", i)))
		// Fast consumer keeps up.
		select {
		case msg := <-fast.Ch:
			if msg.Record.Message != fmt.Sprintf("msg-%d", i) {
				t.Errorf("fast subscriber got %q at step %d", msg.Record.Message, i)
			}
		default:
			t.Fatalf("fast subscriber starved at step %d", i)
		}
	}

	if fast.Dropped() != 0 {
		t.Errorf("fast subscriber dropped %d messages", fast.Dropped())
	}
	if slow.Dropped() != 4 {
		t.Errorf("slow subscriber dropped %d messages, want 4", slow.Dropped())
	}
	// Slow subscriber still has the newest message queued.
	select {
	case msg := <-slow.Ch:
		if msg.Record.Message != "msg-4" {
			t.Errorf("slow subscriber queue head = %q, want msg-4", msg.Record.Message)
		}
	default:
		t.Error("slow subscriber queue empty")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(10, nil)
	sub := b.Subscribe()
	other := b.Subscribe()

	b.Unsubscribe(sub)

	if b.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount = %d, want 1", b.SubscriberCount())
	}

	// Channel is closed after unsubscribe.
	if _, ok := <-sub.Ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}

	// Unsubscribe is idempotent.
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)

	b.PublishRecord(record("still flowing"))
	select {
	case msg := <-other.Ch:
		if msg.Record.Message != "still flowing" {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Error("remaining subscriber received nothing")
	}
}

func TestSubscribeMidStream(t *testing.T) {
	b := New(10, nil)
	b.PublishRecord(record("before"))

	sub := b.Subscribe()
	b.PublishRecord(record("after"))

	select {
	case msg := <-sub.Ch:
		if msg.Record.Message != "after" {
			t.Errorf("got %q, want %q", msg.Record.Message, "after")
		}
	default:
		t.Fatal("subscriber received nothing")
	}
	select {
	case msg := <-sub.Ch:
		t.Errorf("subscriber should not see pre-subscription message, got %+v", msg)
	default:
	}
}

func TestPublishTicket(t *testing.T) {
	b := New(10, nil)
	sub := b.Subscribe()

	b.PublishTicket(&models.Ticket{ID: "t-1", MachineID: "web-1", Status: models.TicketStatusOpen})

	select {
	case msg := <-sub.Ch:
		if msg.Ticket == nil || msg.Ticket.ID != "t-1" {
			t.Errorf("unexpected message: %+v", msg)
		}
		if msg.Record != nil {
			t.Error("ticket message should not carry a record")
		}
	default:
		t.Fatal("subscriber received nothing")
	}
}

func TestCloseRemovesAllSubscribers(t *testing.T) {
	b := New(10, nil)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}
	for _, sub := range []*Subscriber{sub1, sub2} {
		if _, ok := <-sub.Ch; ok {
			t.Error("expected closed channel after broker close")
		}
	}
}
