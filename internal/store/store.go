// Package store provides storage backends for Courier.
//
// It persists the alert ledger, captured appointments and case messages, and
// exposes read-only lookups of recipients and their active cases. SQLite and
// PostgreSQL backends are selected by DSN; an in-memory store backs tests.
package store

import (
	"strings"
	"time"

	"github.com/brightlawyers/courier/internal/models"
)

// CaseRef is a read-only projection of a recipient's active case, sufficient
// for attaching inbound messages and notifying assigned lawyers.
type CaseRef struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	Title          string   `json:"title"`
	InternalNumber string   `json:"internal_number"`
	LawyerIDs      []string `json:"lawyer_ids"`
}

// Store defines the persistence operations used by the orchestrator, the
// intake finalizer and the dispatcher. Alert rows are inserted by external
// collaborators (and CreateAlert here) and mutated only by the dispatcher.
type Store interface {
	// CreateAlert inserts a new alert row. Empty ID and status are filled in
	// (generated ID, status=pending). Returns the alert ID.
	CreateAlert(a models.Alert) (string, error)

	// ListPendingAlerts returns up to limit alerts on the given channel with
	// status=pending and scheduled_at <= now, ordered by scheduled_at.
	ListPendingAlerts(channel models.AlertChannel, now time.Time, limit int) ([]models.Alert, error)

	// MarkAlertSent records a successful delivery.
	MarkAlertSent(id string, at time.Time) error

	// MarkAlertFailed records a terminally failed delivery attempt, storing
	// the error text in the alert payload.
	MarkAlertFailed(id string, at time.Time, errText string) error

	// GetAlert returns the alert with the given ID, or models.ErrAlertNotFound.
	GetAlert(id string) (*models.Alert, error)

	// GetRecipient returns the recipient with the given ID, or
	// models.ErrRecipientNotFound.
	GetRecipient(id string) (*models.Recipient, error)

	// FindRecipientByPhone matches a recipient by phone digits, tolerating
	// stored numbers with or without the country prefix. Returns nil when no
	// recipient matches.
	FindRecipientByPhone(digits string) (*models.Recipient, error)

	// ActiveCaseForRecipient returns the most recently updated active case
	// for the recipient, or nil when they have none.
	ActiveCaseForRecipient(recipientID string) (*CaseRef, error)

	// CreateCaseMessage attaches an inbound message to a case.
	CreateCaseMessage(m models.CaseMessage) (string, error)

	// SaveAppointment persists a captured appointment.
	SaveAppointment(a models.Appointment) error

	// SetAppointmentCalendarEventID back-fills the calendar event ID after a
	// successful booking.
	SetAppointmentCalendarEventID(id, eventID string) error

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// come as URLs (postgres://...) or key=value strings; everything else is
// treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
