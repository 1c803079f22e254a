package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/logtower/logtower/internal/broker"
	"github.com/logtower/logtower/internal/metrics"
	"github.com/logtower/logtower/internal/models"
	"github.com/logtower/logtower/internal/store"
)

// TicketHandler implements the ticket lifecycle endpoints.
type TicketHandler struct {
	store  store.TicketStore
	broker *broker.Broker
	logger *slog.Logger
}

// NewTicketHandler creates a new ticket handler.
func NewTicketHandler(st store.TicketStore, b *broker.Broker, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		store:  st,
		broker: b,
		logger: logger,
	}
}

// createTicketRequest mirrors the dashboard's create-ticket payload. The log
// fields are a snapshot of the triggering record, not a reference into the
// ring buffer.
type createTicketRequest struct {
	MachineID   string `json:"machine_id"`
	Log         string `json:"log"`
	Timestamp   string `json:"timestamp"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Create handles POST /create-ticket.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}

	if req.MachineID == "" {
		WriteBadRequest(w, "machine_id is required")
		return
	}
	if req.Log == "" {
		WriteBadRequest(w, "log is required")
		return
	}

	status := models.TicketStatusOpen
	if req.Status != "" {
		parsed, err := models.ParseTicketStatus(req.Status)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		status = parsed
	}

	title := req.Title
	if title == "" {
		rec := models.LogRecord{
			MachineID: req.MachineID,
			Severity:  models.InferSeverity(req.Log),
			Message:   req.Log,
		}
		title = models.DefaultTicketTitle(&rec)
	}
	description := req.Description
	if description == "" {
		description = req.Log
	}

	ticket, err := h.store.Create(r.Context(), store.CreateTicketParams{
		MachineID:    req.MachineID,
		SourceLog:    req.Log,
		LogTimestamp: req.Timestamp,
		Title:        title,
		Description:  description,
		Status:       status,
	})
	if err != nil {
		h.logger.Error("failed to create ticket", "error", err)
		WriteInternalError(w, "failed to create ticket")
		return
	}

	metrics.TicketsCreated.Inc()
	h.broker.PublishTicket(ticket)
	h.logger.Info("ticket created", "ticket_id", ticket.ID, "machine_id", ticket.MachineID)

	WriteJSON(w, http.StatusCreated, map[string]string{
		"message":   "Ticket created successfully",
		"ticket_id": ticket.ID,
	})
}

// List handles GET /tickets with optional machine_id and status filters.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.TicketFilter{
		MachineID: r.URL.Query().Get("machine_id"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := models.ParseTicketStatus(s)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		filter.Status = status
	}

	h.list(w, r, filter)
}

// ListByMachine handles GET /tickets/{machineID}.
func (h *TicketHandler) ListByMachine(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "machineID")
	if machineID == "" {
		WriteBadRequest(w, "machine ID is required")
		return
	}
	h.list(w, r, models.TicketFilter{MachineID: machineID})
}

func (h *TicketHandler) list(w http.ResponseWriter, r *http.Request, filter models.TicketFilter) {
	tickets, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list tickets", "error", err)
		WriteInternalError(w, "failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	WriteJSON(w, http.StatusOK, tickets)
}

// UpdateStatus handles PUT /tickets/{ticketID}?status=S. Any of the four
// known statuses is accepted as a target; the transition is recorded in the
// ticket's history.
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	raw := r.URL.Query().Get("status")
	if raw == "" {
		WriteBadRequest(w, "status query parameter is required")
		return
	}
	status, err := models.ParseTicketStatus(raw)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	ticket, err := h.store.UpdateStatus(r.Context(), ticketID, status)
	if errors.Is(err, store.ErrNotFound) {
		WriteNotFound(w, "ticket not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to update ticket", "error", err, "ticket_id", ticketID)
		WriteInternalError(w, "failed to update ticket")
		return
	}

	metrics.TicketTransitions.WithLabelValues(string(status)).Inc()

	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Ticket status updated successfully",
		"ticket":  ticket,
	})
}

// History handles GET /tickets/{ticketID}/history - the status transition
// audit trail, oldest first.
func (h *TicketHandler) History(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	trail, err := h.store.History(r.Context(), ticketID)
	if errors.Is(err, store.ErrNotFound) {
		WriteNotFound(w, "ticket not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load ticket history", "error", err, "ticket_id", ticketID)
		WriteInternalError(w, "failed to load ticket history")
		return
	}
	if trail == nil {
		trail = []*models.TicketTransition{}
	}
	WriteJSON(w, http.StatusOK, trail)
}
