// Package store provides storage backends for Courier.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/util"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateAlert(a models.Alert) (string, error) {
	if a.ID == "" {
		a.ID = util.GenerateAlertID()
	}
	if a.Status == "" {
		a.Status = models.AlertStatusPending
	}
	if !models.IsValidAlertChannel(a.Channel) {
		return "", models.ErrInvalidChannel
	}
	payloadJSON, err := marshalPayload(a.Payload)
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(
		`INSERT INTO alerts (id, organization_id, case_id, recipient_id, channel, alert_type, status, scheduled_at, sent_at, payload_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9)`,
		a.ID, a.OrganizationID, nilIfEmpty(a.CaseID), a.RecipientID, a.Channel, a.AlertType, a.Status, a.ScheduledAt, payloadJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert alert failed: %w", err)
	}
	slog.Debug("PostgresStore.CreateAlert", "id", a.ID, "channel", a.Channel, "alertType", a.AlertType)
	return a.ID, nil
}

func (s *PostgresStore) ListPendingAlerts(channel models.AlertChannel, now time.Time, limit int) ([]models.Alert, error) {
	rows, err := s.db.Query(
		`SELECT id, organization_id, case_id, recipient_id, channel, alert_type, status, scheduled_at, sent_at, payload_json
		 FROM alerts WHERE channel = $1 AND status = 'pending' AND scheduled_at <= $2
		 ORDER BY scheduled_at ASC LIMIT $3`,
		channel, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending alerts failed: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending alerts iteration failed: %w", err)
	}
	return alerts, nil
}

func (s *PostgresStore) MarkAlertSent(id string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE alerts SET status = 'sent', sent_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark alert sent failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAlertFailed(id string, at time.Time, errText string) error {
	a, err := s.GetAlert(id)
	if err != nil {
		return err
	}
	a.Payload.Error = errText
	payloadJSON, err := marshalPayload(a.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE alerts SET status = 'failed', sent_at = $1, payload_json = $2 WHERE id = $3`,
		at, payloadJSON, id,
	)
	if err != nil {
		return fmt.Errorf("mark alert failed failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAlert(id string) (*models.Alert, error) {
	row := s.db.QueryRow(
		`SELECT id, organization_id, case_id, recipient_id, channel, alert_type, status, scheduled_at, sent_at, payload_json
		 FROM alerts WHERE id = $1`, id,
	)
	a, err := scanAlertRow(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert failed: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetRecipient(id string) (*models.Recipient, error) {
	var r models.Recipient
	err := s.db.QueryRow(
		`SELECT id, full_name, phone, email FROM recipients WHERE id = $1`, id,
	).Scan(&r.ID, &r.FullName, &r.Phone, &r.Email)
	if err == sql.ErrNoRows {
		return nil, models.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient failed: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) FindRecipientByPhone(digits string) (*models.Recipient, error) {
	if digits == "" {
		return nil, nil
	}
	suffix := phoneSuffix(digits)
	rows, err := s.db.Query(
		`SELECT id, full_name, phone, email FROM recipients WHERE phone LIKE '%' || $1`, suffix,
	)
	if err != nil {
		return nil, fmt.Errorf("find recipient by phone failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.FullName, &r.Phone, &r.Email); err != nil {
			return nil, fmt.Errorf("scan recipient failed: %w", err)
		}
		return &r, nil
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recipient iteration failed: %w", err)
	}
	return nil, nil
}

func (s *PostgresStore) ActiveCaseForRecipient(recipientID string) (*CaseRef, error) {
	var c CaseRef
	err := s.db.QueryRow(
		`SELECT id, organization_id, title, internal_number FROM cases
		 WHERE recipient_id = $1 AND case_status = 'active'
		 ORDER BY updated_at DESC LIMIT 1`, recipientID,
	).Scan(&c.ID, &c.OrganizationID, &c.Title, &c.InternalNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active case lookup failed: %w", err)
	}

	rows, err := s.db.Query(`SELECT user_id FROM case_assignments WHERE case_id = $1`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("case assignments lookup failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan case assignment failed: %w", err)
		}
		c.LawyerIDs = append(c.LawyerIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("case assignments iteration failed: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateCaseMessage(m models.CaseMessage) (string, error) {
	if m.ID == "" {
		m.ID = util.GenerateCaseMessageID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO case_messages (id, case_id, sender_user_id, sender_role, message_text, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.CaseID, m.SenderUserID, m.SenderRole, m.MessageText, m.IsRead, m.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert case message failed: %w", err)
	}
	return m.ID, nil
}

func (s *PostgresStore) SaveAppointment(a models.Appointment) error {
	if a.ID == "" {
		a.ID = util.GenerateAppointmentID()
	}
	_, err := s.db.Exec(
		`INSERT INTO appointments (id, name, phone, email, legal_area, description, preferred_datetime, resolved_datetime, calendar_event_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.Name, a.Phone, a.Email, a.LegalArea, a.Description, a.PreferredDateTime,
		a.ResolvedDateTime, nilIfEmpty(a.CalendarEventID), a.Status, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment failed: %w", err)
	}
	slog.Debug("PostgresStore.SaveAppointment", "id", a.ID, "name", a.Name, "resolved", a.ResolvedDateTime)
	return nil
}

func (s *PostgresStore) SetAppointmentCalendarEventID(id, eventID string) error {
	_, err := s.db.Exec(`UPDATE appointments SET calendar_event_id = $1 WHERE id = $2`, eventID, id)
	if err != nil {
		return fmt.Errorf("set appointment calendar event failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
