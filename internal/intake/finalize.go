package intake

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brightlawyers/courier/internal/calendar"
	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/store"
	"github.com/brightlawyers/courier/internal/util"
)

// clientEmailDomain derives a placeholder contact email from the phone when
// the contact gave none; the platform reconciles it later.
const clientEmailDomain = "clients.brightlawyers.com"

// calendarBookingTimeout bounds the background calendar booking so a stuck
// HTTP call cannot linger forever.
const calendarBookingTimeout = 30 * time.Second

// Finalizer is the single completion step shared by both intake flows: it
// resolves the requested date, persists the appointment, and books the
// calendar event best-effort.
type Finalizer struct {
	store    store.Store
	calendar calendar.Provider
	now      func() time.Time
}

// NewFinalizer creates a Finalizer. The calendar provider may be nil, in
// which case booking is skipped. nowFn defaults to time.Now.
func NewFinalizer(st store.Store, cal calendar.Provider, nowFn func() time.Time) *Finalizer {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Finalizer{store: st, calendar: cal, now: nowFn}
}

// Finalize completes an intake flow from the collected fields. It always
// returns a user-facing message; the error is for logging only and never
// reaches the contact. The appointment write happens before the calendar
// call, so a calendar failure degrades to "saved without calendar sync".
func (f *Finalizer) Finalize(ctx context.Context, fields map[models.FieldName]string) (string, error) {
	now := f.now()
	resolved := ResolveDateTime(fields[models.FieldNameDateTime], now)

	description := fields[models.FieldNameDescription]
	if description == "" {
		description = "Consultation regarding " + fields[models.FieldNameArea]
	}

	appt := models.Appointment{
		ID:                util.GenerateAppointmentID(),
		Name:              fields[models.FieldNameFullName],
		Phone:             fields[models.FieldNamePhone],
		Email:             derivedEmail(fields[models.FieldNamePhone]),
		LegalArea:         fields[models.FieldNameArea],
		Description:       description,
		PreferredDateTime: fields[models.FieldNameDateTime],
		ResolvedDateTime:  resolved,
		Status:            models.AppointmentStatusPending,
		CreatedAt:         now,
	}

	if err := f.store.SaveAppointment(appt); err != nil {
		slog.Error("Finalizer failed to persist appointment", "error", err, "name", appt.Name)
		return MsgSavedWithIssue, fmt.Errorf("failed to save appointment: %w", err)
	}
	slog.Info("Appointment captured", "id", appt.ID, "area", appt.LegalArea, "resolved", resolved)

	// Calendar booking must not block the user reply.
	if f.calendar != nil {
		go f.bookCalendar(appt)
	}

	return confirmationMessage(fields), nil
}

// bookCalendar inserts the consultation into the calendar chain and
// back-fills the event ID. Failures are logged; the appointment is already
// durable.
func (f *Finalizer) bookCalendar(appt models.Appointment) {
	ctx, cancel := context.WithTimeout(context.Background(), calendarBookingTimeout)
	defer cancel()

	eventID, err := f.calendar.CreateEvent(ctx, calendar.Event{
		Summary:     fmt.Sprintf("Consultation: %s (%s)", appt.Name, appt.LegalArea),
		Description: appt.Description + "\nPhone: " + appt.Phone,
		Start:       appt.ResolvedDateTime,
		Attendee:    appt.Email,
	})
	if err != nil {
		slog.Warn("calendar booking failed, appointment saved without sync", "appointmentID", appt.ID, "error", err)
		return
	}
	if err := f.store.SetAppointmentCalendarEventID(appt.ID, eventID); err != nil {
		slog.Warn("failed to back-fill calendar event ID", "appointmentID", appt.ID, "eventID", eventID, "error", err)
	}
}

// derivedEmail builds the placeholder contact email from the phone digits.
func derivedEmail(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	return digits.String() + "@" + clientEmailDomain
}
