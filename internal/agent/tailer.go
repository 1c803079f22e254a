package agent

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Line is a single log line read from a tailed file.
type Line struct {
	Text string
	Path string
}

// Tailer reads newly appended lines from watched files and emits them on a
// channel. It starts at the end of each file and follows rotations.
type Tailer struct {
	mu     sync.Mutex
	files  map[string]*trackedFile
	out    chan Line
	paths  []string
	logger *slog.Logger
}

type trackedFile struct {
	path    string
	file    *os.File
	offset  int64
	partial string
}

// NewTailer creates a Tailer for the given file paths.
func NewTailer(paths []string, logger *slog.Logger) *Tailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tailer{
		files:  make(map[string]*trackedFile),
		out:    make(chan Line, 512),
		paths:  paths,
		logger: logger,
	}
}

// Lines returns the channel where tailed lines are sent.
func (t *Tailer) Lines() <-chan Line {
	return t.out
}

// Run watches the configured files and emits appended lines until the
// context is cancelled.
func (t *Tailer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	defer close(t.out)

	for _, p := range t.paths {
		t.openFile(p)
		if err := watcher.Add(p); err != nil {
			t.logger.Warn("cannot watch file", "path", p, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			t.closeAll()
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			t.handleEvent(ctx, watcher, ev)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watcher error", "error", err)
		}
	}
}

func (t *Tailer) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Write != 0:
		t.readNewLines(ctx, ev.Name)

	case ev.Op&fsnotify.Create != 0:
		t.openFile(ev.Name)
		t.readNewLines(ctx, ev.Name)

	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		// File rotated or deleted. Close and wait for it to reappear.
		t.closeFile(ev.Name)
		go t.reconnect(ctx, watcher, ev.Name)
	}
}

// openFile opens a file for tailing, starting at the end.
func (t *Tailer) openFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.files[path]; exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		t.logger.Warn("cannot open file", "path", path, "error", err)
		return
	}

	offset, _ := f.Seek(0, io.SeekEnd)
	t.files[path] = &trackedFile{
		path:   path,
		file:   f,
		offset: offset,
	}
}

// readNewLines reads from the last offset to EOF and emits complete lines.
func (t *Tailer) readNewLines(ctx context.Context, path string) {
	t.mu.Lock()
	tf, ok := t.files[path]
	t.mu.Unlock()
	if !ok {
		return
	}

	reader := bufio.NewReader(tf.file)
	for {
		chunk, err := reader.ReadString('\n')
		if err != nil {
			// An unterminated tail is a line still being written. Hold
			// it until the newline arrives in a later write.
			tf.partial += chunk
			if err != io.EOF {
				t.logger.Warn("read error", "path", path, "error", err)
			}
			break
		}

		text := tf.partial + strings.TrimRight(chunk, "\r\n")
		tf.partial = ""
		select {
		case t.out <- Line{Text: text, Path: path}:
		case <-ctx.Done():
			return
		}
	}

	pos, _ := tf.file.Seek(0, io.SeekCurrent)
	tf.offset = pos
}

func (t *Tailer) closeFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tf, ok := t.files[path]; ok {
		tf.file.Close()
		delete(t.files, path)
	}
}

// reconnect polls for a rotated file to reappear, up to 5 retries.
func (t *Tailer) reconnect(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	for i := 0; i < 5; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		if _, err := os.Stat(path); err == nil {
			t.logger.Info("reopened rotated file", "path", path)
			_ = watcher.Add(path)
			t.openFile(path)
			return
		}
	}
	t.logger.Warn("gave up waiting for rotated file", "path", path)
}

func (t *Tailer) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, tf := range t.files {
		tf.file.Close()
		delete(t.files, path)
	}
}
