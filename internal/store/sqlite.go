// Package store provides storage backends for Courier.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/util"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateAlert(a models.Alert) (string, error) {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		a.ID, a.OrganizationID, nilIfEmpty(a.CaseID), a.RecipientID, a.Channel, a.AlertType, a.Status, a.ScheduledAt, payloadJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert alert failed: %w", err)
	}
	slog.Debug("SQLiteStore.CreateAlert", "id", a.ID, "channel", a.Channel, "alertType", a.AlertType)
	return a.ID, nil
}

func (s *SQLiteStore) ListPendingAlerts(channel models.AlertChannel, now time.Time, limit int) ([]models.Alert, error) {
	rows, err := s.db.Query(
		`SELECT id, organization_id, case_id, recipient_id, channel, alert_type, status, scheduled_at, sent_at, payload_json
		 FROM alerts WHERE channel = ? AND status = 'pending' AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC LIMIT ?`,
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

func (s *SQLiteStore) MarkAlertSent(id string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE alerts SET status = 'sent', sent_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("mark alert sent failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

func (s *SQLiteStore) MarkAlertFailed(id string, at time.Time, errText string) error {
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
		`UPDATE alerts SET status = 'failed', sent_at = ?, payload_json = ? WHERE id = ?`,
		at, payloadJSON, id,
	)
	if err != nil {
		return fmt.Errorf("mark alert failed failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAlert(id string) (*models.Alert, error) {
	row := s.db.QueryRow(
		`SELECT id, organization_id, case_id, recipient_id, channel, alert_type, status, scheduled_at, sent_at, payload_json
		 FROM alerts WHERE id = ?`, id,
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

func (s *SQLiteStore) GetRecipient(id string) (*models.Recipient, error) {
	var r models.Recipient
	err := s.db.QueryRow(
		`SELECT id, full_name, phone, email FROM recipients WHERE id = ?`, id,
	).Scan(&r.ID, &r.FullName, &r.Phone, &r.Email)
	if err == sql.ErrNoRows {
		return nil, models.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient failed: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) FindRecipientByPhone(digits string) (*models.Recipient, error) {
	if digits == "" {
		return nil, nil
	}
	// Stored numbers may carry a '+' or omit the country prefix, so match on
	// the national suffix.
	suffix := phoneSuffix(digits)
	rows, err := s.db.Query(
		`SELECT id, full_name, phone, email FROM recipients WHERE phone LIKE '%' || ?`, suffix,
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

func (s *SQLiteStore) ActiveCaseForRecipient(recipientID string) (*CaseRef, error) {
	var c CaseRef
	err := s.db.QueryRow(
		`SELECT id, organization_id, title, internal_number FROM cases
		 WHERE recipient_id = ? AND case_status = 'active'
		 ORDER BY updated_at DESC LIMIT 1`, recipientID,
	).Scan(&c.ID, &c.OrganizationID, &c.Title, &c.InternalNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active case lookup failed: %w", err)
	}

	rows, err := s.db.Query(`SELECT user_id FROM case_assignments WHERE case_id = ?`, c.ID)
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

func (s *SQLiteStore) CreateCaseMessage(m models.CaseMessage) (string, error) {
	if m.ID == "" {
		m.ID = util.GenerateCaseMessageID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO case_messages (id, case_id, sender_user_id, sender_role, message_text, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.CaseID, m.SenderUserID, m.SenderRole, m.MessageText, m.IsRead, m.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert case message failed: %w", err)
	}
	return m.ID, nil
}

func (s *SQLiteStore) SaveAppointment(a models.Appointment) error {
	if a.ID == "" {
		a.ID = util.GenerateAppointmentID()
	}
	_, err := s.db.Exec(
		`INSERT INTO appointments (id, name, phone, email, legal_area, description, preferred_datetime, resolved_datetime, calendar_event_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Phone, a.Email, a.LegalArea, a.Description, a.PreferredDateTime,
		a.ResolvedDateTime, nilIfEmpty(a.CalendarEventID), a.Status, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment failed: %w", err)
	}
	slog.Debug("SQLiteStore.SaveAppointment", "id", a.ID, "name", a.Name, "resolved", a.ResolvedDateTime)
	return nil
}

func (s *SQLiteStore) SetAppointmentCalendarEventID(id, eventID string) error {
	_, err := s.db.Exec(`UPDATE appointments SET calendar_event_id = ? WHERE id = ?`, eventID, id)
	if err != nil {
		return fmt.Errorf("set appointment calendar event failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
