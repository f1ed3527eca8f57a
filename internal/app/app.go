// Package app wires the courier modules together: storage, the WhatsApp
// transport, the classifier and intake flows, the bot orchestrator and the
// alert dispatcher. It owns the process lifecycle and shuts everything down
// on SIGINT/SIGTERM.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brightlawyers/courier/internal/bot"
	"github.com/brightlawyers/courier/internal/calendar"
	"github.com/brightlawyers/courier/internal/classify"
	"github.com/brightlawyers/courier/internal/dispatch"
	"github.com/brightlawyers/courier/internal/genai"
	"github.com/brightlawyers/courier/internal/intake"
	"github.com/brightlawyers/courier/internal/messaging"
	"github.com/brightlawyers/courier/internal/scheduler"
	"github.com/brightlawyers/courier/internal/session"
	"github.com/brightlawyers/courier/internal/store"
	"github.com/brightlawyers/courier/internal/twiliowhatsapp"
	"github.com/brightlawyers/courier/internal/whatsapp"
)

// CalendarConfig identifies one Google calendar the booking chain may use.
type CalendarConfig struct {
	CalendarID string
	Token      string
}

// Opts holds application-level configuration.
type Opts struct {
	// UseTwilio selects the Twilio transport instead of Whatsmeow. Twilio
	// deployments are outbound-only (dispatcher, no conversational bot).
	UseTwilio bool

	CountryPrefix     string
	RulesPath         string
	SessionCapacity   int
	SequentialDefault bool

	// DispatchCron, when set, drives dispatcher ticks from the cron
	// scheduler instead of the built-in interval poller.
	DispatchCron string

	// TenantCalendar is tried first; DefaultCalendar is the firm-wide
	// fallback. Either may be empty.
	TenantCalendar  CalendarConfig
	DefaultCalendar CalendarConfig
}

// Option configures application-level Opts.
type Option func(*Opts)

// WithTwilioTransport selects the Twilio WhatsApp transport.
func WithTwilioTransport() Option {
	return func(o *Opts) { o.UseTwilio = true }
}

// WithCountryPrefix sets the default country prefix for phone normalization.
func WithCountryPrefix(prefix string) Option {
	return func(o *Opts) { o.CountryPrefix = prefix }
}

// WithRulesPath loads classifier rules from a file instead of the embedded
// defaults.
func WithRulesPath(path string) Option {
	return func(o *Opts) { o.RulesPath = path }
}

// WithSessionCapacity bounds the number of tracked contact sessions.
func WithSessionCapacity(n int) Option {
	return func(o *Opts) { o.SessionCapacity = n }
}

// WithSequentialDefault makes new intakes ask one question at a time.
func WithSequentialDefault() Option {
	return func(o *Opts) { o.SequentialDefault = true }
}

// WithDispatchCron drives dispatcher ticks from a cron expression.
func WithDispatchCron(expr string) Option {
	return func(o *Opts) { o.DispatchCron = expr }
}

// WithTenantCalendar sets the tenant calendar tried first for bookings.
func WithTenantCalendar(calendarID, token string) Option {
	return func(o *Opts) { o.TenantCalendar = CalendarConfig{CalendarID: calendarID, Token: token} }
}

// WithDefaultCalendar sets the firm-wide fallback calendar.
func WithDefaultCalendar(calendarID, token string) Option {
	return func(o *Opts) { o.DefaultCalendar = CalendarConfig{CalendarID: calendarID, Token: token} }
}

// Run assembles the service from the given module options and blocks until
// a shutdown signal arrives or a fatal startup error occurs.
func Run(waOpts []whatsapp.Option, storeOpts []store.Option, genaiOpts []genai.Option, appOpts []Option) error {
	var opts Opts
	for _, opt := range appOpts {
		opt(&opts)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	messenger, waClient, err := buildMessenger(opts, waOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging transport: %w", err)
	}
	if err := messenger.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer messenger.Stop()

	if waClient != nil {
		go func() {
			if err := waClient.Supervise(ctx); err != nil {
				slog.Error("WhatsApp connection supervisor exited", "error", err)
				stop()
			}
		}()
	}

	rules, err := buildRules(opts)
	if err != nil {
		return fmt.Errorf("failed to load classifier rules: %w", err)
	}
	classifier := classify.NewClassifier(rules)

	cal := buildCalendar(opts)
	finalizer := intake.NewFinalizer(st, cal, nil)
	bulk := intake.NewBulkFlow(classifier, finalizer)
	sequential := intake.NewSequentialFlow(classifier, finalizer)

	var genAI genai.ClientInterface
	if client, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Warn("Generative client unavailable, falling back to canned replies", "error", err)
	} else {
		genAI = client
	}

	sessions := session.NewLRUStore(opts.SessionCapacity)
	orchestrator := bot.NewOrchestrator(messenger, sessions, classifier, bulk, sequential,
		bot.WithStore(st),
		bot.WithGenAI(genAI),
		bot.WithSequentialDefault(opts.SequentialDefault),
	)
	go orchestrator.Run(ctx)

	dispatcher := dispatch.NewDispatcher(st, messenger)
	if opts.DispatchCron != "" {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.AddJob(opts.DispatchCron, func() {
			if err := dispatcher.RunOnce(ctx); err != nil {
				slog.Error("Scheduled alert dispatch failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid dispatch cron expression %q: %w", opts.DispatchCron, err)
		}
		slog.Info("Alert dispatcher driven by cron", "expr", opts.DispatchCron)
	} else {
		go dispatcher.Run(ctx)
	}

	slog.Info("Courier running", "transport", transportName(opts), "store", storeName(storeOpts))
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping courier")
	return nil
}

// buildStore selects the storage backend from the DSN. No DSN means the
// ephemeral in-memory store.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var opts store.Opts
	for _, opt := range storeOpts {
		opt(&opts)
	}
	if opts.DSN == "" {
		slog.Info("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(opts.DSN) == "postgres" {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Info("Using SQLite store", "path", opts.DSN)
	return store.NewSQLiteStore(storeOpts...)
}

// buildMessenger constructs the selected transport. The second return value
// is the underlying Whatsmeow client when one exists, for connection
// supervision.
func buildMessenger(opts Opts, waOpts []whatsapp.Option) (messaging.Service, *whatsapp.Client, error) {
	if opts.UseTwilio {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTwilioService(client, opts.CountryPrefix), nil, nil
	}

	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, nil, err
	}
	return messaging.NewWhatsAppService(client, opts.CountryPrefix), client, nil
}

func buildRules(opts Opts) (classify.Rules, error) {
	if opts.RulesPath != "" {
		slog.Debug("Loading classifier rules from file", "path", opts.RulesPath)
		return classify.LoadRules(opts.RulesPath)
	}
	return classify.DefaultRules()
}

// buildCalendar assembles the tenant-then-default booking chain. With no
// calendars configured bookings are skipped and appointments are only
// persisted.
func buildCalendar(opts Opts) calendar.Provider {
	var providers []calendar.Provider
	if opts.TenantCalendar.CalendarID != "" {
		providers = append(providers, calendar.NewGoogleProvider(opts.TenantCalendar.CalendarID, opts.TenantCalendar.Token))
	}
	if opts.DefaultCalendar.CalendarID != "" {
		providers = append(providers, calendar.NewGoogleProvider(opts.DefaultCalendar.CalendarID, opts.DefaultCalendar.Token))
	}
	if len(providers) == 0 {
		slog.Info("No calendars configured, appointment booking will skip calendar events")
		return nil
	}
	return calendar.NewChain(providers...)
}

func transportName(opts Opts) string {
	if opts.UseTwilio {
		return "twilio"
	}
	return "whatsmeow"
}

func storeName(storeOpts []store.Option) string {
	var opts store.Opts
	for _, opt := range storeOpts {
		opt(&opts)
	}
	if opts.DSN == "" {
		return "memory"
	}
	return store.DetectDSNType(opts.DSN)
}
