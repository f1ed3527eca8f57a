// Package models defines the core data structures for Courier.
//
// It includes the alert (notification) ledger types, appointment capture
// artifacts and per-contact session state, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// AlertChannel identifies the delivery channel for an alert.
type AlertChannel string

const (
	// AlertChannelWhatsApp delivers through the WhatsApp transport.
	AlertChannelWhatsApp AlertChannel = "whatsapp"
	// AlertChannelEmail delivers through the email collaborator.
	AlertChannelEmail AlertChannel = "email"
	// AlertChannelInApp delivers through the platform's in-app inbox.
	AlertChannelInApp AlertChannel = "in_app"
)

// AlertStatus represents the delivery lifecycle of an alert.
type AlertStatus string

const (
	// AlertStatusPending indicates the alert is queued for delivery.
	AlertStatusPending AlertStatus = "pending"
	// AlertStatusSent indicates the alert was delivered successfully.
	AlertStatusSent AlertStatus = "sent"
	// AlertStatusFailed indicates the delivery attempt raised an error.
	AlertStatusFailed AlertStatus = "failed"
)

// Well-known alert types understood by the dispatcher's template set.
// Unknown types fall back to a generic notification body.
const (
	AlertTypeNewMessage       = "new_message"
	AlertTypeDocumentReminder = "document_request_reminder"
)

// AlertPayload carries template data and, after a failed attempt, the error text.
type AlertPayload struct {
	OriginalMessage string `json:"originalMessage,omitempty"`
	SenderName      string `json:"senderName,omitempty"`
	CaseTitle       string `json:"caseTitle,omitempty"`
	Via             string `json:"via,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Alert is the dispatcher's unit of work: a queued, channel-addressed
// notification with delivery status. Rows are created by external
// collaborators with status=pending and mutated only by the dispatcher.
type Alert struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	CaseID         string       `json:"case_id,omitempty"`
	RecipientID    string       `json:"recipient_id"`
	Channel        AlertChannel `json:"channel"`
	AlertType      string       `json:"alert_type"`
	Status         AlertStatus  `json:"status"`
	ScheduledAt    time.Time    `json:"scheduled_at"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
	Payload        AlertPayload `json:"payload"`
}

// Recipient is the read-only projection of a platform user that the
// dispatcher needs to resolve a channel address.
type Recipient struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// AppointmentStatus represents the lifecycle of a captured appointment.
type AppointmentStatus string

const (
	// AppointmentStatusPending indicates the appointment awaits follow-up.
	AppointmentStatusPending AppointmentStatus = "pending"
)

// Appointment is the artifact produced by a completed intake flow. It is
// immutable once written except for the calendar event ID back-fill.
type Appointment struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Phone             string            `json:"phone"`
	Email             string            `json:"email"`
	LegalArea         string            `json:"legal_area"`
	Description       string            `json:"description"`
	PreferredDateTime string            `json:"preferred_datetime"`
	ResolvedDateTime  time.Time         `json:"resolved_datetime"`
	CalendarEventID   string            `json:"calendar_event_id,omitempty"`
	Status            AppointmentStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
}

// CaseMessage records an inbound message from a registered client, attached
// to their active case for the platform to display.
type CaseMessage struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"case_id"`
	SenderUserID string    `json:"sender_user_id"`
	SenderRole   string    `json:"sender_role"`
	MessageText  string    `json:"message_text"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
}

// IntakeState identifies the current step of a contact's appointment intake.
type IntakeState string

const (
	// IntakeStateNone means no intake flow is active. It is both the initial
	// state and the only terminal state.
	IntakeStateNone IntakeState = "none"
	// IntakeStateCollectingAllFields awaits a single message carrying all
	// appointment fields (bulk path).
	IntakeStateCollectingAllFields IntakeState = "collecting_all_fields"
	// Sequential path states, one collected field per message.
	IntakeStateCollectingName        IntakeState = "collecting_name"
	IntakeStateCollectingPhone       IntakeState = "collecting_phone"
	IntakeStateCollectingArea        IntakeState = "collecting_area"
	IntakeStateCollectingDescription IntakeState = "collecting_description"
	IntakeStateCollectingDateTime    IntakeState = "collecting_datetime"
	IntakeStateConfirming            IntakeState = "confirming"
)

// FieldName keys the collected-field buffer of a session.
type FieldName string

const (
	FieldNameFullName    FieldName = "name"
	FieldNamePhone       FieldName = "phone"
	FieldNameArea        FieldName = "area"
	FieldNameDescription FieldName = "description"
	FieldNameDateTime    FieldName = "preferred_datetime"
)

// ContactSession holds the per-contact mutable state kept in memory for the
// life of the process: handoff flag, interaction counter, intake progress and
// the collected-field buffer.
type ContactSession struct {
	HumanControl     bool                 `json:"human_control"`
	InteractionCount uint                 `json:"interaction_count"`
	IntakeState      IntakeState          `json:"intake_state"`
	CollectedFields  map[FieldName]string `json:"collected_fields"`
	LastBotReplyAt   time.Time            `json:"last_bot_reply_at"`
}

// NewContactSession returns the default session created lazily on first
// contact.
func NewContactSession() ContactSession {
	return ContactSession{
		IntakeState:     IntakeStateNone,
		CollectedFields: make(map[FieldName]string),
	}
}

// ClearIntake resets the intake flow back to the idle state and empties the
// field buffer. Handoff flag and interaction counter survive the reset.
func (s *ContactSession) ClearIntake() {
	s.IntakeState = IntakeStateNone
	s.CollectedFields = make(map[FieldName]string)
}

// Response represents an incoming message from a contact or operator.
type Response struct {
	From         string `json:"from"`
	Body         string `json:"body"`
	Time         int64  `json:"time"`
	FromOperator bool   `json:"from_operator"`
}

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient    = errors.New("recipient cannot be empty")
	ErrEmptyBody         = errors.New("message body cannot be empty")
	ErrNoRecipientPhone  = errors.New("recipient has no phone number")
	ErrAlertNotFound     = errors.New("alert not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInvalidChannel    = errors.New("invalid alert channel")
)

// IsValidAlertChannel checks if the given channel is supported.
func IsValidAlertChannel(c AlertChannel) bool {
	switch c {
	case AlertChannelWhatsApp, AlertChannelEmail, AlertChannelInApp:
		return true
	default:
		return false
	}
}
