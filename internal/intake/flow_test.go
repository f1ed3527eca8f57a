package intake

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brightlawyers/courier/internal/calendar"
	"github.com/brightlawyers/courier/internal/classify"
	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/store"
)

func newTestClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	rules, err := classify.DefaultRules()
	if err != nil {
		t.Fatalf("failed to load default rules: %v", err)
	}
	return classify.NewClassifier(rules)
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
}

func TestBulkFlowCompleteCapture(t *testing.T) {
	st := store.NewInMemoryStore()
	finalizer := NewFinalizer(st, nil, fixedNow)
	flow := NewBulkFlow(newTestClassifier(t), finalizer)

	fields := make(map[models.FieldName]string)
	res := flow.Start(fields)
	if res.Next != models.IntakeStateCollectingAllFields {
		t.Fatalf("Start state = %v, want %v", res.Next, models.IntakeStateCollectingAllFields)
	}
	if res.Reply != PromptAllFields {
		t.Errorf("Start reply = %q, want the all-fields prompt", res.Reply)
	}

	res = flow.Handle(context.Background(), res.Next, fields, "Jane Doe, 300-123-4567, Labor, tomorrow 10 AM")
	if !res.Completed || res.Next != models.IntakeStateNone {
		t.Fatalf("complete capture: Completed=%v Next=%v, want finished", res.Completed, res.Next)
	}
	if !strings.Contains(res.Reply, "Jane Doe") {
		t.Errorf("confirmation reply missing client name: %q", res.Reply)
	}

	appts := st.Appointments()
	if len(appts) != 1 {
		t.Fatalf("appointments stored = %d, want 1", len(appts))
	}
	appt := appts[0]
	if appt.Name != "Jane Doe" || appt.LegalArea != "Labor" {
		t.Errorf("appointment fields = %q/%q, want Jane Doe/Labor", appt.Name, appt.LegalArea)
	}
	wantTime := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if !appt.ResolvedDateTime.Equal(wantTime) {
		t.Errorf("resolved time = %v, want %v", appt.ResolvedDateTime, wantTime)
	}
	if appt.Status != models.AppointmentStatusPending {
		t.Errorf("status = %v, want pending", appt.Status)
	}
	if appt.Email != "3001234567@clients.brightlawyers.com" {
		t.Errorf("derived email = %q", appt.Email)
	}
}

func TestBulkFlowIncompleteReprompts(t *testing.T) {
	st := store.NewInMemoryStore()
	flow := NewBulkFlow(newTestClassifier(t), NewFinalizer(st, nil, fixedNow))

	fields := make(map[models.FieldName]string)
	flow.Start(fields)
	res := flow.Handle(context.Background(), models.IntakeStateCollectingAllFields, fields, "Jane Doe, tomorrow")
	if res.Completed || res.Next != models.IntakeStateCollectingAllFields {
		t.Errorf("incomplete capture should stay collecting, got Completed=%v Next=%v", res.Completed, res.Next)
	}
	if res.Reply != PromptIncomplete {
		t.Errorf("reply = %q, want the incomplete prompt", res.Reply)
	}
	if len(st.Appointments()) != 0 {
		t.Error("incomplete capture must not create an appointment")
	}
}

func TestBulkFlowCancel(t *testing.T) {
	st := store.NewInMemoryStore()
	flow := NewBulkFlow(newTestClassifier(t), NewFinalizer(st, nil, fixedNow))

	fields := make(map[models.FieldName]string)
	flow.Start(fields)
	res := flow.Handle(context.Background(), models.IntakeStateCollectingAllFields, fields, "cancelar")
	if !res.Completed || res.Next != models.IntakeStateNone {
		t.Errorf("cancel: Completed=%v Next=%v, want finished", res.Completed, res.Next)
	}
	if res.Reply != MsgCancelled {
		t.Errorf("cancel reply = %q", res.Reply)
	}
	if len(st.Appointments()) != 0 {
		t.Error("cancelled flow must not create an appointment")
	}
}

func TestSequentialFlowFullPath(t *testing.T) {
	st := store.NewInMemoryStore()
	flow := NewSequentialFlow(newTestClassifier(t), NewFinalizer(st, nil, fixedNow))

	fields := make(map[models.FieldName]string)
	ctx := context.Background()

	res := flow.Start(fields)
	if res.Next != models.IntakeStateCollectingName {
		t.Fatalf("Start state = %v", res.Next)
	}

	steps := []struct {
		state models.IntakeState
		text  string
		next  models.IntakeState
	}{
		{models.IntakeStateCollectingName, "John Smith", models.IntakeStateCollectingPhone},
		{models.IntakeStateCollectingPhone, "3009876543", models.IntakeStateCollectingArea},
		{models.IntakeStateCollectingArea, "Family", models.IntakeStateCollectingDescription},
		{models.IntakeStateCollectingDescription, "Custody question", models.IntakeStateCollectingDateTime},
		{models.IntakeStateCollectingDateTime, "tomorrow 3pm", models.IntakeStateConfirming},
	}
	for _, step := range steps {
		res = flow.Handle(ctx, step.state, fields, step.text)
		if res.Next != step.next {
			t.Fatalf("state after %q = %v, want %v", step.text, res.Next, step.next)
		}
		if res.Completed {
			t.Fatalf("flow completed early at %q", step.text)
		}
	}

	res = flow.Handle(ctx, models.IntakeStateConfirming, fields, "yes")
	if !res.Completed || res.Next != models.IntakeStateNone {
		t.Fatalf("confirm: Completed=%v Next=%v", res.Completed, res.Next)
	}

	appts := st.Appointments()
	if len(appts) != 1 {
		t.Fatalf("appointments stored = %d, want 1", len(appts))
	}
	if appts[0].Description != "Custody question" {
		t.Errorf("description = %q", appts[0].Description)
	}
	want := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if !appts[0].ResolvedDateTime.Equal(want) {
		t.Errorf("resolved time = %v, want %v", appts[0].ResolvedDateTime, want)
	}
}

func TestSequentialFlowNegativeRestarts(t *testing.T) {
	st := store.NewInMemoryStore()
	flow := NewSequentialFlow(newTestClassifier(t), NewFinalizer(st, nil, fixedNow))

	fields := map[models.FieldName]string{
		models.FieldNameFullName: "John Smith",
		models.FieldNamePhone:    "3009876543",
		models.FieldNameArea:     "Family",
		models.FieldNameDateTime: "tomorrow",
	}
	res := flow.Handle(context.Background(), models.IntakeStateConfirming, fields, "no")
	if res.Next != models.IntakeStateCollectingName {
		t.Errorf("negative confirm state = %v, want collecting name", res.Next)
	}
	if len(fields) != 0 {
		t.Errorf("fields not cleared on restart: %v", fields)
	}
	if len(st.Appointments()) != 0 {
		t.Error("rejected confirmation must not create an appointment")
	}
}

// signalProvider reports CreateEvent calls for the async booking test.
type signalProvider struct {
	eventID string
	called  chan calendar.Event
}

func (p *signalProvider) Name() string { return "signal" }

func (p *signalProvider) CreateEvent(ctx context.Context, ev calendar.Event) (string, error) {
	p.called <- ev
	return p.eventID, nil
}

func TestFinalizeBooksCalendarInBackground(t *testing.T) {
	st := store.NewInMemoryStore()
	provider := &signalProvider{eventID: "evt-42", called: make(chan calendar.Event, 1)}
	finalizer := NewFinalizer(st, provider, fixedNow)

	fields := map[models.FieldName]string{
		models.FieldNameFullName: "Jane Doe",
		models.FieldNamePhone:    "3001234567",
		models.FieldNameArea:     "Labor",
		models.FieldNameDateTime: "tomorrow 10 am",
	}
	reply, err := finalizer.Finalize(context.Background(), fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "Jane Doe") {
		t.Errorf("confirmation reply missing name: %q", reply)
	}

	select {
	case ev := <-provider.called:
		if !strings.Contains(ev.Summary, "Jane Doe") {
			t.Errorf("event summary = %q", ev.Summary)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("calendar booking was never attempted")
	}

	// The event ID back-fill races the test; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		appts := st.Appointments()
		if len(appts) == 1 && appts[0].CalendarEventID == "evt-42" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("calendar event ID never back-filled: %+v", appts)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
