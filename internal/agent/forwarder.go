package agent

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/logtower/logtower/internal/models"
)

// wireRecord is the JSON shape the server expects on /ws/logs.
type wireRecord struct {
	MachineID string `json:"machine_id"`
	Message   string `json:"log"`
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Forwarder streams tailed log lines to the server over WebSocket,
// reconnecting with exponential backoff when the connection drops.
type Forwarder struct {
	cfg       *Config
	lines     <-chan Line
	severity  map[string]bool
	logger    *slog.Logger
	forwarded atomic.Int64
	dropped   atomic.Int64
}

// NewForwarder creates a Forwarder reading from the given line channel.
func NewForwarder(cfg *Config, lines <-chan Line, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		cfg:      cfg,
		lines:    lines,
		severity: cfg.SeveritySet(),
		logger:   logger,
	}
}

// Forwarded reports how many records have been written to the server.
func (f *Forwarder) Forwarded() int64 {
	return f.forwarded.Load()
}

// Dropped reports how many records were lost to write failures.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Run connects to the server and forwards lines until the context is
// cancelled or the line channel closes.
func (f *Forwarder) Run(ctx context.Context) error {
	delay := f.cfg.ReconnectDelay
	defer func() {
		f.logger.Info("forwarder stopped",
			"forwarded", f.forwarded.Load(),
			"dropped", f.dropped.Load(),
		)
	}()

	for {
		conn, err := f.dial(ctx)
		if err != nil {
			f.logger.Warn("connection failed, retrying",
				"server", f.cfg.ServerURL,
				"delay", delay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = f.nextDelay(delay)
			continue
		}

		f.logger.Info("connected to server", "server", f.cfg.ServerURL)
		delay = f.cfg.ReconnectDelay

		err = f.forward(ctx, conn)
		conn.Close()
		if err == nil {
			// Line channel closed or context cancelled.
			return nil
		}

		f.logger.Warn("connection lost, reconnecting",
			"forwarded", f.forwarded.Load(),
			"dropped", f.dropped.Load(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = f.nextDelay(delay)
	}
}

func (f *Forwarder) dial(ctx context.Context) (*websocket.Conn, error) {
	target := f.cfg.ServerURL
	if f.cfg.Token != "" {
		u, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("token", f.cfg.Token)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, target, nil)
	return conn, err
}

// forward sends lines over the connection. Returns nil on clean exit and
// the write error when the connection breaks.
func (f *Forwarder) forward(ctx context.Context, conn *websocket.Conn) error {
	// Drain server-sent frames so ping/pong keeps working.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-f.lines:
			if !ok {
				return nil
			}

			severity := models.InferSeverity(line.Text)
			if f.severity != nil && !f.severity[string(severity)] {
				continue
			}

			rec := wireRecord{
				MachineID: f.cfg.MachineID,
				Message:   line.Text,
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
				Severity:  string(severity),
				Source:    f.cfg.Source,
			}

			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(rec); err != nil {
				f.dropped.Add(1)
				return err
			}
			f.forwarded.Add(1)
		}
	}
}

func (f *Forwarder) nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > f.cfg.MaxReconnectDelay {
		next = f.cfg.MaxReconnectDelay
	}
	return next
}
