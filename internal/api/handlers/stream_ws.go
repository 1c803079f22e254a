package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/logtower/logtower/internal/broker"
	"github.com/logtower/logtower/internal/ingest"
	"github.com/logtower/logtower/internal/metrics"
	"github.com/logtower/logtower/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler upgrades /ws/logs connections and bridges them to the broker.
// The socket is bidirectional: the server pushes one JSON log record per
// message (plus new_ticket events), and producer agents may send log records
// on the same socket for ingestion.
type StreamHandler struct {
	broker   *broker.Broker
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// NewStreamHandler creates a new WebSocket stream handler.
func NewStreamHandler(b *broker.Broker, pipeline *ingest.Pipeline, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		broker:   b,
		pipeline: pipeline,
		logger:   logger,
	}
}

// wireLogRecord is the JSON shape of a log record on the wire. Timestamps
// travel as strings because agents send bare ISO-8601 without a zone.
type wireLogRecord struct {
	MachineID string `json:"machine_id"`
	Log       string `json:"log"`
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity,omitempty"`
	Source    string `json:"source,omitempty"`
}

// wireTicketEvent is the JSON shape of a ticket broadcast.
type wireTicketEvent struct {
	Type   string         `json:"type"`
	Ticket *models.Ticket `json:"ticket"`
}

// Serve handles GET /ws/logs.
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	sub := h.broker.Subscribe()
	metrics.ActiveSubscribers.Inc()
	h.logger.Info("stream subscriber connected",
		"subscriber_id", sub.ID,
		"remote_addr", r.RemoteAddr,
	)

	defer func() {
		h.broker.Unsubscribe(sub)
		metrics.ActiveSubscribers.Dec()
		conn.Close()
		h.logger.Info("stream subscriber disconnected",
			"subscriber_id", sub.ID,
			"dropped", sub.Dropped(),
		)
	}()

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, sub, done)
}

// readPump consumes client messages until the connection dies. Producer
// agents forward log records here; anything undecodable is discarded with a
// counted rejection.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Inbound traffic also refreshes the liveness deadline; agents
		// that only produce never answer pings with pongs in all clients.
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var wire wireLogRecord
		if err := json.Unmarshal(data, &wire); err != nil {
			h.logger.Debug("discarding undecodable producer message", "error", err)
			metrics.RecordsRejected.Inc()
			continue
		}

		rec := models.LogRecord{
			MachineID: wire.MachineID,
			Message:   wire.Log,
			Severity:  models.Severity(wire.Severity),
			Timestamp: parseWireTimestamp(wire.Timestamp),
			Source:    wire.Source,
		}
		if _, err := h.pipeline.Ingest(rec); err != nil {
			h.logger.Debug("discarding invalid producer record", "error", err)
		}
	}
}

// writePump delivers broker messages to the connection. A single failed
// write abandons the connection; the client is responsible for reconnecting
// and accepts the gap (no replay).
func (h *StreamHandler) writePump(conn *websocket.Conn, sub *broker.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case msg, ok := <-sub.Ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(encodeStreamMessage(msg)); err != nil {
				h.logger.Debug("websocket write failed", "subscriber_id", sub.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// encodeStreamMessage maps a broker message to its wire shape.
func encodeStreamMessage(msg broker.Message) any {
	if msg.Ticket != nil {
		return &wireTicketEvent{Type: "new_ticket", Ticket: msg.Ticket}
	}
	rec := msg.Record
	return &wireLogRecord{
		MachineID: rec.MachineID,
		Log:       rec.Message,
		Timestamp: rec.Timestamp.Format(time.RFC3339Nano),
		Severity:  string(rec.Severity),
		Source:    rec.Source,
	}
}

// parseWireTimestamp parses producer timestamps leniently. Agents send
// ISO-8601 with or without a zone; unparseable values come back zero so the
// pipeline assigns the ingestion time.
func parseWireTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
