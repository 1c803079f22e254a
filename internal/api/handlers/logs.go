package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/logtower/logtower/internal/models"
	"github.com/logtower/logtower/internal/query"
)

// LogHandler serves paginated, filtered views of buffered log records.
type LogHandler struct {
	engine *query.Engine
	logger *slog.Logger
}

// NewLogHandler creates a new log query handler.
func NewLogHandler(engine *query.Engine, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		engine: engine,
		logger: logger,
	}
}

// logsResponse is the page envelope for log queries.
type logsResponse struct {
	Logs   []*models.LogRecord `json:"logs"`
	Count  int                 `json:"count"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// List handles GET /logs - returns buffered records newest first.
// Filters compose conjunctively: machine_id, severity, and q (case-insensitive
// substring on the message) must all match when present.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.LogFilter{
		MachineID: q.Get("machine_id"),
		Contains:  q.Get("q"),
	}
	if s := q.Get("severity"); s != "" {
		sev, err := models.ParseSeverity(s)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		filter.Severity = sev
	}

	limit := query.DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteBadRequest(w, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	logs := h.engine.Logs(filter, limit, offset)
	if logs == nil {
		logs = []*models.LogRecord{}
	}

	WriteJSON(w, http.StatusOK, &logsResponse{
		Logs:   logs,
		Count:  len(logs),
		Total:  h.engine.LogCount(),
		Limit:  limit,
		Offset: offset,
	})
}

// Stats handles GET /logs/stats - per-severity and per-machine counts over
// the buffer, used by the dashboard charts.
func (h *LogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.engine.Stats())
}
