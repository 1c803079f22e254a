// Package postgres provides a PostgreSQL-backed TicketStore using the pgx
// driver through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/logtower/logtower/internal/models"
	"github.com/logtower/logtower/internal/store"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible pool defaults.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// TicketStore implements store.TicketStore using PostgreSQL.
type TicketStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTicketStore opens a connection pool, verifies connectivity, and ensures
// the schema exists.
func NewTicketStore(cfg *Config, logger *slog.Logger) (*TicketStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &TicketStore{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to PostgreSQL ticket store")
	return s, nil
}

// ensureSchema creates the tickets tables if they do not exist.
func (s *TicketStore) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tickets (
			id            TEXT PRIMARY KEY,
			machine_id    TEXT NOT NULL,
			source_log    TEXT NOT NULL,
			log_timestamp TEXT NOT NULL,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL,
			status        TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ticket_transitions (
			ticket_id   TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
			from_status TEXT NOT NULL,
			to_status   TEXT NOT NULL,
			at          TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_machine ON tickets(machine_id);
		CREATE INDEX IF NOT EXISTS idx_transitions_ticket ON ticket_transitions(ticket_id, at);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// Create creates a new ticket from the given snapshot.
func (s *TicketStore) Create(ctx context.Context, params store.CreateTicketParams) (*models.Ticket, error) {
	status := params.Status
	if status == "" {
		status = models.TicketStatusOpen
	}
	if !status.IsValid() {
		return nil, store.ErrInvalidStatus
	}

	now := time.Now().UTC()
	t := &models.Ticket{
		ID:           uuid.NewString(),
		MachineID:    params.MachineID,
		SourceLog:    params.SourceLog,
		LogTimestamp: params.LogTimestamp,
		Title:        params.Title,
		Description:  params.Description,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO tickets (id, machine_id, source_log, log_timestamp, title, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.MachineID, t.SourceLog, t.LogTimestamp,
		t.Title, t.Description, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting ticket: %w", err)
	}

	return t, nil
}

// Get retrieves a ticket by ID.
func (s *TicketStore) Get(ctx context.Context, id string) (*models.Ticket, error) {
	query := `
		SELECT id, machine_id, source_log, log_timestamp, title, description, status, created_at, updated_at
		FROM tickets
		WHERE id = $1`

	t := &models.Ticket{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.MachineID, &t.SourceLog, &t.LogTimestamp,
		&t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying ticket: %w", err)
	}
	return t, nil
}

// UpdateStatus sets the ticket's status and records the transition in the
// same transaction.
func (s *TicketStore) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) (*models.Ticket, error) {
	if !status.IsValid() {
		return nil, store.ErrInvalidStatus
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var prev models.TicketStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM tickets WHERE id = $1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking ticket: %w", err)
	}

	now := time.Now().UTC()
	t := &models.Ticket{}
	err = tx.QueryRowContext(ctx, `
		UPDATE tickets SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, machine_id, source_log, log_timestamp, title, description, status, created_at, updated_at`,
		id, status, now,
	).Scan(
		&t.ID, &t.MachineID, &t.SourceLog, &t.LogTimestamp,
		&t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("updating ticket: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket_transitions (ticket_id, from_status, to_status, at)
		VALUES ($1, $2, $3, $4)`,
		id, prev, status, now,
	)
	if err != nil {
		return nil, fmt.Errorf("recording transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info("ticket status updated", "ticket_id", id, "status", status)
	return t, nil
}

// List retrieves tickets matching the filter, newest-created first.
func (s *TicketStore) List(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, error) {
	query := `
		SELECT id, machine_id, source_log, log_timestamp, title, description, status, created_at, updated_at
		FROM tickets
		WHERE ($1 = '' OR machine_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, filter.MachineID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t := &models.Ticket{}
		err := rows.Scan(
			&t.ID, &t.MachineID, &t.SourceLog, &t.LogTimestamp,
			&t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning ticket row: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ticket rows: %w", err)
	}
	return tickets, nil
}

// History retrieves the transition audit trail for a ticket, oldest first.
func (s *TicketStore) History(ctx context.Context, id string) ([]*models.TicketTransition, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticket_id, from_status, to_status, at
		FROM ticket_transitions
		WHERE ticket_id = $1
		ORDER BY at`, id)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var trail []*models.TicketTransition
	for rows.Next() {
		tr := &models.TicketTransition{}
		if err := rows.Scan(&tr.TicketID, &tr.From, &tr.To, &tr.At); err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		trail = append(trail, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transition rows: %w", err)
	}
	return trail, nil
}

// Count returns the total number of tickets.
func (s *TicketStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tickets: %w", err)
	}
	return n, nil
}

// Ping verifies database connectivity.
func (s *TicketStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *TicketStore) Close() error {
	return s.db.Close()
}

var _ store.TicketStore = (*TicketStore)(nil)
