package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// Constants for WhatsAppService configuration
const (
	// DefaultChannelBufferSize defines the buffer size for the response channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client.
type WhatsAppService struct {
	client        whatsapp.Sender
	waClient      *whatsapp.Client // full client for event handling, nil with mocks
	countryPrefix string
	responses     chan models.Response
	done          chan struct{}
	stopOnce      sync.Once
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
// An empty countryPrefix falls back to DefaultCountryPrefix.
func NewWhatsAppService(client whatsapp.Sender, countryPrefix string) *WhatsAppService {
	if countryPrefix == "" {
		countryPrefix = DefaultCountryPrefix
	}
	service := &WhatsAppService{
		client:        client,
		countryPrefix: countryPrefix,
		responses:     make(chan models.Response, DefaultChannelBufferSize),
		done:          make(chan struct{}),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient normalizes a recipient into digits with
// country prefix.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return NormalizePhone(recipient, s.countryPrefix)
}

// Start registers the transport event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	s.stopOnce.Do(func() {
		slog.Info("WhatsAppService Stop invoked")
		close(s.done)
		close(s.responses)
	})
	return nil
}

// SendMessage sends a message to a canonical recipient.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Debug("WhatsAppService SendMessage invoked", "to", to, "body_length", len(body))
	if err := s.client.SendMessage(ctx, to, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// Responses returns the channel of incoming messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// handleIncomingMessage converts a transport event into a Response. The
// conversation key is always the contact's number; messages typed by the
// operator on the linked device arrive with IsFromMe set and are forwarded
// with FromOperator=true so the handoff detector can see them.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		// Skip non-text messages (images, audio, etc.)
		slog.Debug("WhatsAppService ignoring non-text message", "chat", evt.Info.Chat.String())
		return
	}

	contact, err := NormalizePhone(evt.Info.Chat.User, s.countryPrefix)
	if err != nil {
		slog.Debug("WhatsAppService ignoring message with unusable chat JID", "chat", evt.Info.Chat.String())
		return
	}

	response := models.Response{
		From:         contact,
		Body:         messageText,
		Time:         evt.Info.Timestamp.Unix(),
		FromOperator: evt.Info.IsFromMe,
	}

	select {
	case <-s.done:
	case s.responses <- response:
		slog.Debug("WhatsAppService incoming message forwarded", "from", response.From, "from_operator", response.FromOperator)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From, "timeout", DefaultChannelTimeout)
	}
}
