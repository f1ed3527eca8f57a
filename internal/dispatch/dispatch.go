// Package dispatch drains the pending alert queue and delivers each alert
// over WhatsApp. Delivery is at-least-once per poll: every alert in a batch
// is attempted independently and marked sent or failed before the next
// batch is taken.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/brightlawyers/courier/internal/messaging"
	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/store"
)

// Dispatcher polling configuration.
const (
	// DefaultPollInterval is the delay between queue polls.
	DefaultPollInterval = 10 * time.Second
	// DefaultBatchSize is the number of pending alerts taken per poll.
	DefaultBatchSize = 5
	// DefaultSendTimeout bounds a single delivery attempt.
	DefaultSendTimeout = 15 * time.Second
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// Opts holds dispatcher configuration.
type Opts struct {
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration
	Now          func() time.Time
}

// Option configures Opts.
type Option func(*Opts)

// WithPollInterval overrides the polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// WithBatchSize overrides the per-poll batch size.
func WithBatchSize(n int) Option {
	return func(o *Opts) { o.BatchSize = n }
}

// WithSendTimeout overrides the per-delivery timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(o *Opts) { o.SendTimeout = d }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Dispatcher polls the store for due alerts and sends them through the
// messaging service.
type Dispatcher struct {
	store     store.Store
	messenger messaging.Service
	opts      Opts

	// running guards against overlapping polls when a batch takes longer
	// than the poll interval. A skipped tick is a no-op.
	running atomic.Bool
}

// NewDispatcher creates a Dispatcher over the given store and messenger.
func NewDispatcher(st store.Store, messenger messaging.Service, options ...Option) *Dispatcher {
	opts := Opts{
		PollInterval: DefaultPollInterval,
		BatchSize:    DefaultBatchSize,
		SendTimeout:  DefaultSendTimeout,
		Now:          time.Now,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &Dispatcher{store: st, messenger: messenger, opts: opts}
}

// Run polls the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Alert dispatcher started", "poll_interval", d.opts.PollInterval, "batch_size", d.opts.BatchSize)
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Alert dispatcher stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				slog.Error("Alert dispatch poll failed", "error", err)
			}
		}
	}
}

// RunOnce takes one batch of due alerts and attempts each delivery
// independently. If a previous poll is still in flight the call returns
// immediately without touching the queue.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		slog.Debug("Alert dispatch poll skipped, previous batch still running")
		return nil
	}
	defer d.running.Store(false)

	now := d.opts.Now()
	alerts, err := d.store.ListPendingAlerts(models.AlertChannelWhatsApp, now, d.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}
	slog.Debug("Dispatching alert batch", "count", len(alerts))

	for _, alert := range alerts {
		d.dispatchOne(ctx, alert)
	}
	return nil
}

// dispatchOne delivers a single alert and records the terminal outcome.
// A failure here never aborts the rest of the batch.
func (d *Dispatcher) dispatchOne(ctx context.Context, alert models.Alert) {
	recipient, err := d.store.GetRecipient(alert.RecipientID)
	if err != nil {
		d.fail(alert, fmt.Errorf("recipient %s: %w", alert.RecipientID, err))
		return
	}
	if recipient.Phone == "" {
		d.fail(alert, fmt.Errorf("recipient %s: %w", alert.RecipientID, models.ErrNoRecipientPhone))
		return
	}

	to, err := d.messenger.ValidateAndCanonicalizeRecipient(recipient.Phone)
	if err != nil {
		d.fail(alert, fmt.Errorf("recipient %s phone %q: %w", alert.RecipientID, recipient.Phone, err))
		return
	}

	body := renderBody(alert)

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	err = d.messenger.SendMessage(sendCtx, to, body)
	cancel()
	if err != nil {
		d.fail(alert, fmt.Errorf("send to %s: %w", to, err))
		return
	}

	sentAt := d.opts.Now()
	if err := d.store.MarkAlertSent(alert.ID, sentAt); err != nil {
		slog.Error("Alert delivered but could not be marked sent", "error", err, "alert_id", alert.ID)
		return
	}
	slog.Info("Alert dispatched", "alert_id", alert.ID, "alert_type", alert.AlertType, "recipient_id", alert.RecipientID)
}

func (d *Dispatcher) fail(alert models.Alert, cause error) {
	slog.Error("Alert dispatch failed", "error", cause, "alert_id", alert.ID, "alert_type", alert.AlertType)
	if err := d.store.MarkAlertFailed(alert.ID, d.opts.Now(), cause.Error()); err != nil {
		slog.Error("Failed to mark alert failed", "error", err, "alert_id", alert.ID)
	}
}

// renderBody builds the outgoing message text for an alert type. Unknown
// types get a generic notification so a queue with a new type never stalls.
func renderBody(alert models.Alert) string {
	switch alert.AlertType {
	case models.AlertTypeNewMessage:
		return fmt.Sprintf("📬 *New message on your case*\n\n"+
			"📁 *Case:* %s\n"+
			"👤 *From:* %s\n\n"+
			"💬 %s\n\n"+
			"Log in to the platform to reply.",
			alert.Payload.CaseTitle,
			alert.Payload.SenderName,
			stripHTML(alert.Payload.OriginalMessage))
	case models.AlertTypeDocumentReminder:
		return fmt.Sprintf("📄 *Document reminder*\n\n"+
			"Your case *%s* has pending document requests.\n\n"+
			"Please upload the requested documents on the platform so your case keeps moving.",
			alert.Payload.CaseTitle)
	default:
		return "🔔 You have a new notification from Bright Lawyers. Log in to the platform for details."
	}
}

// stripHTML removes markup from rich-text message bodies before they go out
// over plain-text WhatsApp.
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}
