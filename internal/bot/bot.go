// Package bot routes incoming conversation messages to the right handler:
// human-handoff suppression, registered-client forwarding, the appointment
// intake flows, keyword quick replies and finally the generative fallback.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/brightlawyers/courier/internal/classify"
	"github.com/brightlawyers/courier/internal/genai"
	"github.com/brightlawyers/courier/internal/intake"
	"github.com/brightlawyers/courier/internal/messaging"
	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/session"
	"github.com/brightlawyers/courier/internal/store"
	"github.com/brightlawyers/courier/internal/util"
)

const (
	// DefaultSendTimeout bounds a single outbound reply.
	DefaultSendTimeout = 15 * time.Second

	// escalationThreshold is the interaction count from which the
	// generative fallback starts pushing harder toward booking.
	escalationThreshold = 2
)

// Opts holds the orchestrator dependencies and configuration.
type Opts struct {
	Messenger      messaging.Service
	Sessions       session.Store
	Classifier     *classify.Classifier
	BulkFlow       intake.Flow
	SequentialFlow intake.Flow
	GenAI          genai.ClientInterface
	Store          store.Store

	// SequentialDefault selects the one-question-at-a-time flow as the
	// entry point for new intakes instead of the single-message bulk
	// capture.
	SequentialDefault bool

	Now func() time.Time
}

// Option configures Opts.
type Option func(*Opts)

// WithGenAI sets the generative client used for small-talk fallback.
func WithGenAI(c genai.ClientInterface) Option {
	return func(o *Opts) { o.GenAI = c }
}

// WithStore sets the persistence layer used for registered-client lookups.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithSequentialDefault makes new intakes start in the sequential flow.
func WithSequentialDefault(v bool) Option {
	return func(o *Opts) { o.SequentialDefault = v }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Orchestrator consumes incoming responses and produces at most one reply
// per contact message.
type Orchestrator struct {
	opts Opts
}

// NewOrchestrator creates an Orchestrator. Messenger, Sessions, Classifier
// and both flows are required; GenAI and Store are optional and disable
// their respective branches when nil.
func NewOrchestrator(messenger messaging.Service, sessions session.Store, classifier *classify.Classifier, bulk, sequential intake.Flow, options ...Option) *Orchestrator {
	opts := Opts{
		Messenger:      messenger,
		Sessions:       sessions,
		Classifier:     classifier,
		BulkFlow:       bulk,
		SequentialFlow: sequential,
		Now:            time.Now,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &Orchestrator{opts: opts}
}

// Run consumes the messenger's response channel until the context is
// cancelled or the channel closes.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("Orchestrator run loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Orchestrator run loop stopping", "reason", ctx.Err())
			return
		case resp, ok := <-o.opts.Messenger.Responses():
			if !ok {
				slog.Info("Orchestrator response channel closed")
				return
			}
			o.HandleResponse(ctx, resp)
		}
	}
}

// HandleResponse processes a single incoming message end to end.
func (o *Orchestrator) HandleResponse(ctx context.Context, resp models.Response) {
	if strings.TrimSpace(resp.Body) == "" {
		return
	}

	sess := o.opts.Sessions.Get(resp.From)

	if resp.FromOperator {
		o.handleOperatorMessage(resp, sess)
		return
	}

	if sess.HumanControl {
		slog.Debug("Suppressing bot reply, conversation under human control", "contact", resp.From)
		return
	}

	reply, sess, handled := o.route(ctx, resp, sess)

	sess.InteractionCount++
	if reply != "" {
		now := o.opts.Now()
		sess.LastBotReplyAt = now
		o.send(ctx, resp.From, reply)
	}
	o.opts.Sessions.Set(resp.From, sess)

	if !handled {
		slog.Debug("Message fell through all handlers", "contact", resp.From)
	}
}

// handleOperatorMessage watches outbound operator traffic for handoff
// phrases. Operator messages never get a bot reply.
func (o *Orchestrator) handleOperatorMessage(resp models.Response, sess models.ContactSession) {
	if o.opts.Classifier.IsHandoff(resp.Body, true) {
		sess.HumanControl = true
		sess.ClearIntake()
		o.opts.Sessions.Set(resp.From, sess)
		slog.Info("Human handoff detected, bot muted for contact", "contact", resp.From)
	}
}

// ReleaseHandoff returns a contact to bot control after a human
// conversation ends.
func (o *Orchestrator) ReleaseHandoff(contact string) {
	sess := o.opts.Sessions.Get(contact)
	sess.HumanControl = false
	o.opts.Sessions.Set(contact, sess)
	slog.Info("Human handoff released", "contact", contact)
}

// route picks exactly one handler for the message and returns the reply,
// the updated session and whether any handler claimed the message.
func (o *Orchestrator) route(ctx context.Context, resp models.Response, sess models.ContactSession) (string, models.ContactSession, bool) {
	// Registered clients bypass the intake funnel entirely; their
	// messages go to the case file and their lawyers get alerted.
	if reply, ok := o.forwardRegisteredClient(resp); ok {
		return reply, sess, true
	}

	if sess.IntakeState != models.IntakeStateNone {
		return o.continueIntake(ctx, resp, sess)
	}

	if reply, ok := o.opts.Classifier.QuickReply(resp.Body); ok {
		slog.Debug("Quick reply matched", "contact", resp.From)
		return reply, sess, true
	}

	if sess.InteractionCount > 0 && o.opts.Classifier.IsAppointmentIntent(resp.Body) {
		return o.startIntake(sess)
	}

	if sess.InteractionCount == 0 {
		return intake.MsgWelcome, sess, true
	}

	return o.generativeReply(ctx, resp, sess), sess, true
}

// forwardRegisteredClient checks whether the sender is a known recipient
// with an active case and, if so, files the message on the case and queues
// an in-app alert for each assigned lawyer.
func (o *Orchestrator) forwardRegisteredClient(resp models.Response) (string, bool) {
	if o.opts.Store == nil {
		return "", false
	}

	recipient, err := o.opts.Store.FindRecipientByPhone(resp.From)
	if err != nil {
		slog.Error("Registered client lookup failed", "error", err, "contact", resp.From)
		return "", false
	}
	if recipient == nil {
		return "", false
	}

	caseRef, err := o.opts.Store.ActiveCaseForRecipient(recipient.ID)
	if err != nil || caseRef == nil {
		return "", false
	}

	now := o.opts.Now()
	msgID, err := o.opts.Store.CreateCaseMessage(models.CaseMessage{
		ID:           util.GenerateCaseMessageID(),
		CaseID:       caseRef.ID,
		SenderUserID: recipient.ID,
		SenderRole:   "client",
		MessageText:  resp.Body,
		CreatedAt:    now,
	})
	if err != nil {
		slog.Error("Failed to file case message", "error", err, "case_id", caseRef.ID)
		return intake.MsgForwardError, true
	}

	for _, lawyerID := range caseRef.LawyerIDs {
		alert := models.Alert{
			ID:             util.GenerateAlertID(),
			OrganizationID: caseRef.OrganizationID,
			CaseID:         caseRef.ID,
			RecipientID:    lawyerID,
			Channel:        models.AlertChannelInApp,
			AlertType:      models.AlertTypeNewMessage,
			Status:         models.AlertStatusPending,
			ScheduledAt:    now,
			Payload: models.AlertPayload{
				OriginalMessage: resp.Body,
				SenderName:      recipient.FullName,
				CaseTitle:       caseRef.Title,
				Via:             "whatsapp",
			},
		}
		if _, err := o.opts.Store.CreateAlert(alert); err != nil {
			slog.Error("Failed to queue lawyer alert", "error", err, "lawyer_id", lawyerID, "case_id", caseRef.ID)
		}
	}

	slog.Info("Registered client message forwarded",
		"contact", resp.From,
		"case_id", caseRef.ID,
		"message_id", msgID,
		"lawyers_alerted", len(caseRef.LawyerIDs))
	return intake.MsgForwardReceipt, true
}

// startIntake begins a new appointment intake in the configured default
// flow.
func (o *Orchestrator) startIntake(sess models.ContactSession) (string, models.ContactSession, bool) {
	flow := o.opts.BulkFlow
	if o.opts.SequentialDefault {
		flow = o.opts.SequentialFlow
	}
	result := flow.Start(sess.CollectedFields)
	sess.IntakeState = result.Next
	if result.Completed {
		sess.ClearIntake()
	}
	slog.Debug("Appointment intake started", "next_state", sess.IntakeState)
	return result.Reply, sess, true
}

// continueIntake advances an in-progress intake. The single-message bulk
// state is owned by the bulk flow; every other collecting state belongs to
// the sequential flow.
func (o *Orchestrator) continueIntake(ctx context.Context, resp models.Response, sess models.ContactSession) (string, models.ContactSession, bool) {
	flow := o.opts.SequentialFlow
	if sess.IntakeState == models.IntakeStateCollectingAllFields {
		flow = o.opts.BulkFlow
	}

	result := flow.Handle(ctx, sess.IntakeState, sess.CollectedFields, resp.Body)
	sess.IntakeState = result.Next
	if result.Completed {
		sess.ClearIntake()
	}
	return result.Reply, sess, true
}

// generativeReply asks the generative client for a conversational answer,
// steering toward booking once the contact has been chatting for a while.
func (o *Orchestrator) generativeReply(ctx context.Context, resp models.Response, sess models.ContactSession) string {
	if o.opts.GenAI == nil {
		return intake.MsgGenericNudge
	}

	systemPrompt := genai.SystemPromptConversational
	if sess.InteractionCount >= escalationThreshold {
		systemPrompt = genai.SystemPromptConversion
	}

	reply, err := o.opts.GenAI.Generate(ctx, systemPrompt, resp.Body)
	if err != nil {
		slog.Error("Generative reply failed", "error", err, "contact", resp.From)
		return intake.MsgGenAIFallback
	}
	return reply
}

// send delivers a reply with a bounded timeout.
func (o *Orchestrator) send(ctx context.Context, to string, body string) {
	sendCtx, cancel := context.WithTimeout(ctx, DefaultSendTimeout)
	defer cancel()
	if err := o.opts.Messenger.SendMessage(sendCtx, to, body); err != nil {
		slog.Error("Failed to send reply", "error", err, "to", to)
	}
}
