package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/brightlawyers/courier/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// phoneSuffix returns the trailing 10 digits of a digit string (the national
// significant number for Colombian mobiles), or the whole string when shorter.
func phoneSuffix(digits string) string {
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// marshalPayload encodes an alert payload for the payload_json column.
func marshalPayload(p models.AlertPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal alert payload failed: %w", err)
	}
	return string(b), nil
}

// scanAlert scans an Alert from sql.Rows.
func scanAlert(rows *sql.Rows) (models.Alert, error) {
	var a models.Alert
	var caseID, payloadJSON sql.NullString
	var sentAt sql.NullTime
	err := rows.Scan(
		&a.ID, &a.OrganizationID, &caseID, &a.RecipientID, &a.Channel,
		&a.AlertType, &a.Status, &a.ScheduledAt, &sentAt, &payloadJSON,
	)
	if err != nil {
		return a, fmt.Errorf("scan alert failed: %w", err)
	}
	a.CaseID = caseID.String
	if sentAt.Valid {
		a.SentAt = &sentAt.Time
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &a.Payload); err != nil {
			slog.Warn("scanAlert: invalid payload JSON, leaving payload empty", "id", a.ID, "error", err)
		}
	}
	return a, nil
}

// scanAlertRow scans an Alert from a single sql.Row.
func scanAlertRow(row *sql.Row) (models.Alert, error) {
	var a models.Alert
	var caseID, payloadJSON sql.NullString
	var sentAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.OrganizationID, &caseID, &a.RecipientID, &a.Channel,
		&a.AlertType, &a.Status, &a.ScheduledAt, &sentAt, &payloadJSON,
	)
	if err != nil {
		return a, err
	}
	a.CaseID = caseID.String
	if sentAt.Valid {
		a.SentAt = &sentAt.Time
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &a.Payload); err != nil {
			slog.Warn("scanAlertRow: invalid payload JSON, leaving payload empty", "id", a.ID, "error", err)
		}
	}
	return a, nil
}
