package messaging

import (
	"context"
	"sync"

	"github.com/brightlawyers/courier/internal/models"
)

// MockMessage records a single outbound send.
type MockMessage struct {
	To   string
	Body string
}

// MockService is a mock implementation of Service for testing.
type MockService struct {
	mu        sync.Mutex
	Sent      []MockMessage
	SendErr   error
	responses chan models.Response
}

// NewMockService creates a new MockService with a buffered response channel.
func NewMockService() *MockService {
	return &MockService{
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return NormalizePhone(recipient, DefaultCountryPrefix)
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error { return nil }

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, MockMessage{To: to, Body: body})
	return nil
}

func (m *MockService) Responses() <-chan models.Response { return m.responses }

// Inject feeds a response into the channel as if it arrived from the
// transport.
func (m *MockService) Inject(r models.Response) { m.responses <- r }

// SentMessages returns a copy of everything sent so far.
func (m *MockService) SentMessages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}
