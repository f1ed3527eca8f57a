package models

import "testing"

func TestNewContactSessionDefaults(t *testing.T) {
	s := NewContactSession()
	if s.HumanControl || s.InteractionCount != 0 {
		t.Errorf("fresh session not clean: %+v", s)
	}
	if s.IntakeState != IntakeStateNone {
		t.Errorf("intake state = %v, want none", s.IntakeState)
	}
	if s.CollectedFields == nil {
		t.Error("field buffer not initialized")
	}
}

func TestClearIntake(t *testing.T) {
	s := NewContactSession()
	s.IntakeState = IntakeStateConfirming
	s.CollectedFields[FieldNameFullName] = "Jane Doe"
	s.CollectedFields[FieldNamePhone] = "3001234567"

	s.ClearIntake()
	if s.IntakeState != IntakeStateNone {
		t.Errorf("intake state = %v after clear", s.IntakeState)
	}
	if len(s.CollectedFields) != 0 {
		t.Errorf("fields not cleared: %v", s.CollectedFields)
	}
}

func TestIsValidAlertChannel(t *testing.T) {
	for _, ch := range []AlertChannel{AlertChannelWhatsApp, AlertChannelEmail, AlertChannelInApp} {
		if !IsValidAlertChannel(ch) {
			t.Errorf("channel %q should be valid", ch)
		}
	}
	if IsValidAlertChannel("carrier_pigeon") || IsValidAlertChannel("") {
		t.Error("invalid channel accepted")
	}
}
