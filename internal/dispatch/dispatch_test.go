package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brightlawyers/courier/internal/messaging"
	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/store"
)

var testNow = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func seedAlert(t *testing.T, st *store.InMemoryStore, id, recipientID string, alertType string, at time.Time) {
	t.Helper()
	_, err := st.CreateAlert(models.Alert{
		ID:          id,
		RecipientID: recipientID,
		Channel:     models.AlertChannelWhatsApp,
		AlertType:   alertType,
		Status:      models.AlertStatusPending,
		ScheduledAt: at,
		Payload: models.AlertPayload{
			OriginalMessage: "<p>Hearing moved to <b>Friday</b></p>",
			SenderName:      "Dr. Smith",
			CaseTitle:       "Smith v. Jones",
		},
	})
	if err != nil {
		t.Fatalf("failed to seed alert %s: %v", id, err)
	}
}

func TestRunOnceDeliversDueAlerts(t *testing.T) {
	st := store.NewInMemoryStore()
	st.AddRecipient(models.Recipient{ID: "r1", FullName: "Ana", Phone: "3001234567"})
	seedAlert(t, st, "a1", "r1", models.AlertTypeNewMessage, testNow.Add(-time.Minute))
	// Not yet due.
	seedAlert(t, st, "a2", "r1", models.AlertTypeNewMessage, testNow.Add(time.Hour))

	mock := messaging.NewMockService()
	d := NewDispatcher(st, mock, WithNow(func() time.Time { return testNow }))

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(sent))
	}
	if sent[0].To != "573001234567" {
		t.Errorf("recipient = %q, want canonical number", sent[0].To)
	}
	if !strings.Contains(sent[0].Body, "Smith v. Jones") || !strings.Contains(sent[0].Body, "Dr. Smith") {
		t.Errorf("body missing case context: %q", sent[0].Body)
	}
	if strings.Contains(sent[0].Body, "<p>") || strings.Contains(sent[0].Body, "<b>") {
		t.Errorf("body still contains markup: %q", sent[0].Body)
	}

	a1, err := st.GetAlert("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1.Status != models.AlertStatusSent || a1.SentAt == nil {
		t.Errorf("a1 status = %v sentAt = %v, want sent", a1.Status, a1.SentAt)
	}
	a2, _ := st.GetAlert("a2")
	if a2.Status != models.AlertStatusPending {
		t.Errorf("future alert status = %v, want pending", a2.Status)
	}
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	st := store.NewInMemoryStore()
	st.AddRecipient(models.Recipient{ID: "good", FullName: "Ana", Phone: "3001234567"})
	st.AddRecipient(models.Recipient{ID: "nophone", FullName: "Ghost", Phone: ""})
	seedAlert(t, st, "bad", "nophone", models.AlertTypeNewMessage, testNow.Add(-2*time.Minute))
	seedAlert(t, st, "good-alert", "good", models.AlertTypeDocumentReminder, testNow.Add(-time.Minute))

	mock := messaging.NewMockService()
	d := NewDispatcher(st, mock, WithNow(func() time.Time { return testNow }))

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad, _ := st.GetAlert("bad")
	if bad.Status != models.AlertStatusFailed {
		t.Errorf("missing-phone alert status = %v, want failed", bad.Status)
	}
	if bad.Payload.Error == "" {
		t.Error("failed alert missing error detail")
	}

	good, _ := st.GetAlert("good-alert")
	if good.Status != models.AlertStatusSent {
		t.Errorf("good alert status = %v, want sent", good.Status)
	}
	if len(mock.SentMessages()) != 1 {
		t.Errorf("messages sent = %d, want 1", len(mock.SentMessages()))
	}
}

func TestRunOnceSendFailureMarksFailed(t *testing.T) {
	st := store.NewInMemoryStore()
	st.AddRecipient(models.Recipient{ID: "r1", FullName: "Ana", Phone: "3001234567"})
	seedAlert(t, st, "a1", "r1", models.AlertTypeNewMessage, testNow.Add(-time.Minute))

	mock := messaging.NewMockService()
	mock.SendErr = errors.New("transport down")
	d := NewDispatcher(st, mock, WithNow(func() time.Time { return testNow }))

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a1, _ := st.GetAlert("a1")
	if a1.Status != models.AlertStatusFailed {
		t.Errorf("status = %v, want failed", a1.Status)
	}
	if !strings.Contains(a1.Payload.Error, "transport down") {
		t.Errorf("error detail = %q", a1.Payload.Error)
	}
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	st := store.NewInMemoryStore()
	st.AddRecipient(models.Recipient{ID: "r1", FullName: "Ana", Phone: "3001234567"})
	for i := 0; i < 8; i++ {
		seedAlert(t, st, "a"+string(rune('0'+i)), "r1", models.AlertTypeNewMessage, testNow.Add(-time.Minute))
	}

	mock := messaging.NewMockService()
	d := NewDispatcher(st, mock, WithNow(func() time.Time { return testNow }))

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(mock.SentMessages()); got != DefaultBatchSize {
		t.Errorf("first batch sent %d, want %d", got, DefaultBatchSize)
	}

	// The remainder goes out on the next poll.
	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(mock.SentMessages()); got != 8 {
		t.Errorf("total sent = %d, want 8", got)
	}
}

func TestRunOnceSkipsWhileRunning(t *testing.T) {
	st := store.NewInMemoryStore()
	st.AddRecipient(models.Recipient{ID: "r1", FullName: "Ana", Phone: "3001234567"})
	seedAlert(t, st, "a1", "r1", models.AlertTypeNewMessage, testNow.Add(-time.Minute))

	mock := messaging.NewMockService()
	d := NewDispatcher(st, mock, WithNow(func() time.Time { return testNow }))

	d.running.Store(true)
	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages()) != 0 {
		t.Error("overlapping poll must not touch the queue")
	}

	d.running.Store(false)
	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages()) != 1 {
		t.Error("queue not drained after the guard cleared")
	}
}

func TestRenderBodyTemplates(t *testing.T) {
	base := models.Alert{Payload: models.AlertPayload{
		OriginalMessage: "<div>Please review</div>",
		SenderName:      "Dr. Smith",
		CaseTitle:       "Smith v. Jones",
	}}

	newMsg := base
	newMsg.AlertType = models.AlertTypeNewMessage
	if body := renderBody(newMsg); !strings.Contains(body, "Please review") || strings.Contains(body, "<div>") {
		t.Errorf("new_message body = %q", body)
	}

	reminder := base
	reminder.AlertType = models.AlertTypeDocumentReminder
	if body := renderBody(reminder); !strings.Contains(body, "Smith v. Jones") || !strings.Contains(body, "document") {
		t.Errorf("reminder body = %q", body)
	}

	unknown := base
	unknown.AlertType = "something_new"
	if body := renderBody(unknown); !strings.Contains(body, "notification") {
		t.Errorf("default body = %q", body)
	}
}
