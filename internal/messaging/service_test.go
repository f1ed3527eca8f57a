package messaging

import (
	"context"
	"testing"

	"github.com/brightlawyers/courier/internal/models"
	"github.com/brightlawyers/courier/internal/whatsapp"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in     string
		prefix string
		want   string
	}{
		{"+57 300-123-4567", "57", "573001234567"},
		{"3001234567", "57", "573001234567"},
		{"573001234567", "57", "573001234567"},
		{"(300) 123 4567", "57", "573001234567"},
		{"300.123.4567", "1", "13001234567"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in, tc.prefix)
		if err != nil {
			t.Errorf("NormalizePhone(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q, %q) = %q, want %q", tc.in, tc.prefix, got, tc.want)
		}
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	inputs := []string{"+57 300-123-4567", "3001234567", "57300", "1234"}
	for _, in := range inputs {
		once, err := NormalizePhone(in, DefaultCountryPrefix)
		if err != nil {
			t.Fatalf("NormalizePhone(%q) error: %v", in, err)
		}
		twice, err := NormalizePhone(once, DefaultCountryPrefix)
		if err != nil {
			t.Fatalf("NormalizePhone(%q) second pass error: %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizePhoneEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "+-()"} {
		if _, err := NormalizePhone(in, DefaultCountryPrefix); err != models.ErrEmptyRecipient {
			t.Errorf("NormalizePhone(%q) error = %v, want ErrEmptyRecipient", in, err)
		}
	}
}

func TestWhatsAppServiceSendAndValidate(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock, "")

	got, err := svc.ValidateAndCanonicalizeRecipient("300-123-4567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "573001234567" {
		t.Errorf("canonical recipient = %q", got)
	}

	if err := svc.SendMessage(context.Background(), got, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Sent) != 1 || mock.Sent[0].To != "573001234567" || mock.Sent[0].Body != "hello" {
		t.Errorf("send not recorded correctly: %+v", mock.Sent)
	}

	// Mock-backed service has no event source; Start and Stop are no-ops.
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}
