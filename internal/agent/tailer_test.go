package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collectLines(t *testing.T, lines <-chan Line, n int) []Line {
	t.Helper()
	out := make([]Line, 0, n)
	deadline := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("line channel closed after %d lines, want %d", len(out), n)
			}
			out = append(out, line)
		case <-deadline:
			t.Fatalf("timed out after %d lines, want %d", len(out), n)
		}
	}
	return out
}

func TestTailerEmitsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tailer := NewTailer([]string{path}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tailer.Run(ctx)

	// Give the watcher a moment to register before appending.
	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("first new line\nsecond new line\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	got := collectLines(t, tailer.Lines(), 2)
	if got[0].Text != "first new line" || got[1].Text != "second new line" {
		t.Errorf("lines = %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Path != path {
		t.Errorf("Path = %q, want %q", got[0].Path, path)
	}
}

func TestTailerHoldsPartialLineUntilNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tailer := NewTailer([]string{path}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tailer.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	// A line arriving in two writes must come out as one record.
	if _, err := f.WriteString("half-a-li"); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case line := <-tailer.Lines():
		t.Fatalf("emitted unterminated fragment %q", line.Text)
	case <-time.After(300 * time.Millisecond):
	}

	if _, err := f.WriteString("ne\nfollow-up\n"); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := collectLines(t, tailer.Lines(), 2)
	if got[0].Text != "half-a-line" {
		t.Errorf("first line = %q, want rejoined %q", got[0].Text, "half-a-line")
	}
	if got[1].Text != "follow-up" {
		t.Errorf("second line = %q", got[1].Text)
	}
}

func TestTailerStartsAtEndOfFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("existing line\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tailer := NewTailer([]string{path}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tailer.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString("fresh line\n")
	f.Close()

	got := collectLines(t, tailer.Lines(), 1)
	if got[0].Text != "fresh line" {
		t.Errorf("got %q; pre-existing content must be skipped", got[0].Text)
	}
}

func TestTailerClosesChannelOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	os.WriteFile(path, nil, 0o644)

	tailer := NewTailer([]string{path}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tailer.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, ok := <-tailer.Lines(); ok {
		t.Error("line channel should be closed after Run returns")
	}
}
