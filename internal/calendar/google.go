package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultRequestTimeout bounds a single calendar API call.
const DefaultRequestTimeout = 10 * time.Second

const googleCalendarBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleProvider inserts events into one Google Calendar via the REST API.
// Two instances chained together form the tenant-then-default fallback.
type GoogleProvider struct {
	calendarID string
	token      string
	baseURL    string
	httpClient *http.Client
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithBaseURL overrides the API endpoint; used in tests.
func WithBaseURL(u string) GoogleOption {
	return func(p *GoogleProvider) {
		p.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(p *GoogleProvider) {
		p.httpClient = c
	}
}

// NewGoogleProvider creates a provider for the given calendar ID
// authenticating with a bearer token.
func NewGoogleProvider(calendarID, token string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		calendarID: calendarID,
		token:      token,
		baseURL:    googleCalendarBaseURL,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the provider by its calendar ID.
func (p *GoogleProvider) Name() string {
	return "google:" + p.calendarID
}

// googleEvent mirrors the subset of the Calendar API event resource we send.
type googleEvent struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Start       struct {
		DateTime string `json:"dateTime"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
	} `json:"end"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees,omitempty"`
	Reminders struct {
		UseDefault bool `json:"useDefault"`
		Overrides  []struct {
			Method  string `json:"method"`
			Minutes int    `json:"minutes"`
		} `json:"overrides"`
	} `json:"reminders"`
}

// CreateEvent inserts a 60-minute event with the fixed reminder set
// (24h email, 30min popup) and returns the created event ID.
func (p *GoogleProvider) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if p.calendarID == "" {
		return "", fmt.Errorf("calendar ID not configured")
	}

	end := ev.End
	if end.IsZero() {
		end = ev.Start.Add(EventDuration)
	}

	var body googleEvent
	body.Summary = ev.Summary
	body.Description = ev.Description
	body.Start.DateTime = ev.Start.Format(time.RFC3339)
	body.End.DateTime = end.Format(time.RFC3339)
	if ev.Attendee != "" {
		body.Attendees = append(body.Attendees, struct {
			Email string `json:"email"`
		}{Email: ev.Attendee})
	}
	body.Reminders.Overrides = []struct {
		Method  string `json:"method"`
		Minutes int    `json:"minutes"`
	}{
		{Method: "email", Minutes: int(EmailReminderOffset.Minutes())},
		{Method: "popup", Minutes: int(PopupReminderOffset.Minutes())},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode calendar event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", p.baseURL, url.PathEscape(p.calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("calendar insert returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode calendar response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendar insert returned no event ID")
	}

	slog.Debug("GoogleProvider.CreateEvent succeeded", "calendarID", p.calendarID, "eventID", created.ID)
	return created.ID, nil
}
