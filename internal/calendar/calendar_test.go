package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// stubProvider fails or succeeds on demand and counts calls.
type stubProvider struct {
	name    string
	eventID string
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) CreateEvent(ctx context.Context, ev Event) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.eventID, nil
}

func TestChainFirstSuccessShortCircuits(t *testing.T) {
	tenant := &stubProvider{name: "tenant", eventID: "evt-tenant"}
	fallback := &stubProvider{name: "default", eventID: "evt-default"}
	chain := NewChain(tenant, fallback)

	id, err := chain.CreateEvent(context.Background(), Event{Summary: "Consultation"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "evt-tenant" {
		t.Errorf("event ID = %q, want evt-tenant", id)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestChainFallsBackOnFailure(t *testing.T) {
	tenant := &stubProvider{name: "tenant", err: errors.New("quota exceeded")}
	fallback := &stubProvider{name: "default", eventID: "evt-default"}
	chain := NewChain(tenant, fallback)

	id, err := chain.CreateEvent(context.Background(), Event{Summary: "Consultation"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "evt-default" {
		t.Errorf("event ID = %q, want evt-default", id)
	}
	if tenant.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", tenant.calls, fallback.calls)
	}
}

func TestChainAllFailuresJoined(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("down")}
	b := &stubProvider{name: "b", err: errors.New("also down")}
	chain := NewChain(a, b)

	_, err := chain.CreateEvent(context.Background(), Event{})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	msg := err.Error()
	if !strings.Contains(msg, "down") || !strings.Contains(msg, "also down") {
		t.Errorf("joined error missing causes: %q", msg)
	}

	empty := NewChain()
	if _, err := empty.CreateEvent(context.Background(), Event{}); err == nil {
		t.Error("expected error from empty chain")
	}
}

func TestGoogleProviderCreateEvent(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "evt-99"})
	}))
	defer srv.Close()

	p := NewGoogleProvider("firm@group.calendar.google.com", "tok", WithBaseURL(srv.URL))
	id, err := p.CreateEvent(context.Background(), Event{
		Summary:  "Consultation: Jane Doe (Labor)",
		Start:    start,
		Attendee: "3001234567@clients.brightlawyers.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "evt-99" {
		t.Errorf("event ID = %q", id)
	}
	if !strings.Contains(gotPath, "/calendars/") || !strings.Contains(gotPath, "/events") {
		t.Errorf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization header = %q", gotAuth)
	}

	// End defaults to one hour after the start.
	end, _ := gotBody["end"].(map[string]any)
	if end["dateTime"] != start.Add(EventDuration).Format(time.RFC3339) {
		t.Errorf("end dateTime = %v", end["dateTime"])
	}

	// Default reminders replaced with the fixed email+popup pair.
	reminders, _ := gotBody["reminders"].(map[string]any)
	overrides, _ := reminders["overrides"].([]any)
	if len(overrides) != 2 {
		t.Fatalf("reminder overrides = %v", overrides)
	}
}

func TestGoogleProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewGoogleProvider("cal", "tok", WithBaseURL(srv.URL))
	if _, err := p.CreateEvent(context.Background(), Event{Summary: "x", Start: time.Now()}); err == nil {
		t.Error("expected error on non-2xx status")
	}
}
