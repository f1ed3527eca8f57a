// Package calendar books consultation slots in an external calendar.
//
// Providers are tried through an ordered fallback chain: the tenant's own
// calendar first, the firm's default calendar second. Booking is best-effort;
// callers persist the appointment before attempting it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Event duration and reminder offsets for consultation bookings.
const (
	// EventDuration is the fixed length of a consultation slot.
	EventDuration = 60 * time.Minute
	// EmailReminderOffset is how far ahead the email reminder fires.
	EmailReminderOffset = 24 * time.Hour
	// PopupReminderOffset is how far ahead the popup reminder fires.
	PopupReminderOffset = 30 * time.Minute
)

// Event describes a consultation slot to insert into a calendar.
type Event struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendee    string    `json:"attendee,omitempty"`
}

// Provider inserts an event into a single calendar backend and returns the
// created event's ID.
type Provider interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	// Name identifies the provider in logs.
	Name() string
}

// Chain is an ordered list of providers tried in turn; the first success
// short-circuits. It implements Provider itself so chains compose.
type Chain struct {
	providers []Provider
}

// NewChain builds a fallback chain over the given providers, in order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Name identifies the chain in logs.
func (c *Chain) Name() string {
	return "chain"
}

// CreateEvent tries each provider in order, returning the first successful
// event ID. All failures are joined into the returned error.
func (c *Chain) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("calendar chain has no providers")
	}
	var errs []error
	for _, p := range c.providers {
		id, err := p.CreateEvent(ctx, ev)
		if err == nil {
			slog.Debug("calendar event created", "provider", p.Name(), "eventID", id)
			return id, nil
		}
		slog.Warn("calendar provider failed, trying next", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", fmt.Errorf("all calendar providers failed: %w", errors.Join(errs...))
}
