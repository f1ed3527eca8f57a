package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/util"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a non-durable Store used in tests and when no DSN is
// configured.
type InMemoryStore struct {
	mu           sync.Mutex
	alerts       map[string]models.Alert
	recipients   map[string]models.Recipient
	cases        map[string]CaseRef
	caseOwner    map[string]string // case ID -> recipient ID
	caseMessages map[string]models.CaseMessage
	appointments map[string]models.Appointment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		alerts:       make(map[string]models.Alert),
		recipients:   make(map[string]models.Recipient),
		cases:        make(map[string]CaseRef),
		caseOwner:    make(map[string]string),
		caseMessages: make(map[string]models.CaseMessage),
		appointments: make(map[string]models.Appointment),
	}
}

// AddRecipient seeds a recipient row; used by tests and fixtures.
func (s *InMemoryStore) AddRecipient(r models.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[r.ID] = r
}

// AddCase seeds an active case for a recipient; used by tests and fixtures.
func (s *InMemoryStore) AddCase(recipientID string, c CaseRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[c.ID] = c
	s.caseOwner[c.ID] = recipientID
}

func (s *InMemoryStore) CreateAlert(a models.Alert) (string, error) {
	if !models.IsValidAlertChannel(a.Channel) {
		return "", models.ErrInvalidChannel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = util.GenerateAlertID()
	}
	if a.Status == "" {
		a.Status = models.AlertStatusPending
	}
	s.alerts[a.ID] = a
	return a.ID, nil
}

func (s *InMemoryStore) ListPendingAlerts(channel models.AlertChannel, now time.Time, limit int) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.Channel == channel && a.Status == models.AlertStatusPending && !a.ScheduledAt.After(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) MarkAlertSent(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return models.ErrAlertNotFound
	}
	a.Status = models.AlertStatusSent
	a.SentAt = &at
	s.alerts[id] = a
	return nil
}

func (s *InMemoryStore) MarkAlertFailed(id string, at time.Time, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return models.ErrAlertNotFound
	}
	a.Status = models.AlertStatusFailed
	a.SentAt = &at
	a.Payload.Error = errText
	s.alerts[id] = a
	return nil
}

func (s *InMemoryStore) GetAlert(id string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, models.ErrAlertNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) GetRecipient(id string) (*models.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[id]
	if !ok {
		return nil, models.ErrRecipientNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) FindRecipientByPhone(digits string) (*models.Recipient, error) {
	if digits == "" {
		return nil, nil
	}
	suffix := phoneSuffix(digits)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if strings.HasSuffix(stripNonDigits(r.Phone), suffix) {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ActiveCaseForRecipient(recipientID string) (*CaseRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, owner := range s.caseOwner {
		if owner == recipientID {
			c := s.cases[id]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreateCaseMessage(m models.CaseMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = util.GenerateCaseMessageID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.caseMessages[m.ID] = m
	return m.ID, nil
}

// CaseMessages returns the stored case messages; used by tests.
func (s *InMemoryStore) CaseMessages() []models.CaseMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CaseMessage, 0, len(s.caseMessages))
	for _, m := range s.caseMessages {
		out = append(out, m)
	}
	return out
}

func (s *InMemoryStore) SaveAppointment(a models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = util.GenerateAppointmentID()
	}
	s.appointments[a.ID] = a
	return nil
}

func (s *InMemoryStore) SetAppointmentCalendarEventID(id, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil
	}
	a.CalendarEventID = eventID
	s.appointments[id] = a
	return nil
}

// Appointments returns the stored appointments; used by tests.
func (s *InMemoryStore) Appointments() []models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	return out
}

func (s *InMemoryStore) Close() error {
	return nil
}

// stripNonDigits removes every non-digit rune from a phone string.
func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
