package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio WhatsApp API. Twilio
// delivers inbound messages through webhooks rather than a persistent
// connection, so this service is outbound-only: Responses never yields and
// the conversational flows stay idle. It is intended for deployments that
// only need the notification dispatcher.
type TwilioService struct {
	client        twiliowhatsapp.Sender
	countryPrefix string
	responses     chan models.Response
	stopOnce      sync.Once
}

// NewTwilioService creates a new TwilioService wrapping the given Sender.
func NewTwilioService(client twiliowhatsapp.Sender, countryPrefix string) *TwilioService {
	if countryPrefix == "" {
		countryPrefix = DefaultCountryPrefix
	}
	return &TwilioService{
		client:        client,
		countryPrefix: countryPrefix,
		responses:     make(chan models.Response),
	}
}

// ValidateAndCanonicalizeRecipient normalizes a recipient into digits with
// country prefix.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return NormalizePhone(recipient, s.countryPrefix)
}

// Start is a no-op; Twilio has no persistent inbound connection.
func (s *TwilioService) Start(ctx context.Context) error {
	slog.Debug("TwilioService Start invoked (outbound only)")
	return nil
}

// Stop closes the response channel.
func (s *TwilioService) Stop() error {
	s.stopOnce.Do(func() {
		slog.Info("TwilioService Stop invoked")
		close(s.responses)
	})
	return nil
}

// SendMessage sends a message to a canonical recipient.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Debug("TwilioService SendMessage invoked", "to", to, "body_length", len(body))
	if err := s.client.SendMessage(ctx, to, body); err != nil {
		slog.Error("TwilioService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// Responses returns the channel of incoming messages. For Twilio the channel
// never yields; inbound traffic would arrive via webhook in a fronting HTTP
// layer, which this service does not run.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}
