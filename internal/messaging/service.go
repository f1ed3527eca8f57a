// Package messaging provides the pluggable message delivery abstraction over
// the WhatsApp transports, and the phone normalization shared by the
// orchestrator and the dispatcher.
package messaging

import (
	"context"
	"regexp"

	"github.com/brightlawyers/courier/internal/models"
)

// DefaultCountryPrefix is the dialing prefix prepended to national numbers
// (Colombia).
const DefaultCountryPrefix = "57"

// phoneNumberRegex matches every non-digit character for canonicalization.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service defines a pluggable message delivery abstraction. It supports
// sending messages and provides a channel of incoming contact responses.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier into digits with country prefix.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a canonical recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., transport events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming messages. Events for a single
	// contact arrive in receipt order.
	Responses() <-chan models.Response
}

// NormalizePhone canonicalizes a phone-like string: every non-digit is
// stripped and the country prefix is prepended when missing. The operation
// is idempotent: NormalizePhone(NormalizePhone(x)) == NormalizePhone(x).
func NormalizePhone(raw, countryPrefix string) (string, error) {
	digits := phoneNumberRegex.ReplaceAllString(raw, "")
	if digits == "" {
		return "", models.ErrEmptyRecipient
	}
	if len(digits) <= len(countryPrefix) || digits[:len(countryPrefix)] != countryPrefix {
		digits = countryPrefix + digits
	}
	return digits, nil
}
