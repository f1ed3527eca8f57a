package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("failed to parse embedded rules: %v", err)
	}
	return NewClassifier(rules)
}

func TestIsHandoffOnlyFromOperator(t *testing.T) {
	c := newDefaultClassifier(t)

	if !c.IsHandoff("Hola soy Carlos, te voy a ayudar con tu caso", true) {
		t.Error("operator handoff phrase not detected")
	}
	if !c.IsHandoff("Hi, I am the attorney assigned to your case", true) {
		t.Error("English operator handoff phrase not detected")
	}

	// The same phrase typed by the contact must never mute the bot.
	if c.IsHandoff("Hola soy Maria y necesito ayuda", false) {
		t.Error("contact message wrongly classified as handoff")
	}
	if c.IsHandoff("totally unrelated", true) {
		t.Error("unrelated operator message wrongly classified as handoff")
	}
}

func TestIsAppointmentIntent(t *testing.T) {
	c := newDefaultClassifier(t)

	positives := []string{
		"I want to schedule a meeting",
		"quiero agendar una cita",
		"can I book a consultation?",
		"yes",
	}
	for _, text := range positives {
		if !c.IsAppointmentIntent(text) {
			t.Errorf("IsAppointmentIntent(%q) = false, want true", text)
		}
	}

	if c.IsAppointmentIntent("what are your office hours") {
		t.Error("hours question wrongly classified as appointment intent")
	}
}

func TestCancelAffirmativeNegative(t *testing.T) {
	c := newDefaultClassifier(t)

	if !c.IsCancel("cancelar") || !c.IsCancel("please CANCEL this") {
		t.Error("cancel words not detected")
	}
	if !c.IsAffirmative("Sí, claro") {
		t.Error("Spanish affirmative not detected")
	}
	if !c.IsNegative("no thanks") {
		t.Error("negative not detected")
	}
}

func TestQuickReplies(t *testing.T) {
	c := newDefaultClassifier(t)

	reply, ok := c.QuickReply("what are your office hours?")
	if !ok || reply == "" {
		t.Error("hours quick reply not matched")
	}
	reply, ok = c.QuickReply("cuál es el precio de la asesoría")
	if !ok || reply == "" {
		t.Error("price quick reply not matched")
	}
	if _, ok := c.QuickReply("tell me about my inheritance case"); ok {
		t.Error("unrelated question matched a quick reply")
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "appointment_keywords:\n  - \"turno\"\nquick_replies:\n  - keywords: [\"parking\"]\n    reply: \"Free parking on site.\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := NewClassifier(rules)
	if !c.IsAppointmentIntent("quiero un turno") {
		t.Error("custom appointment keyword not honored")
	}
	reply, ok := c.QuickReply("do you have parking?")
	if !ok || reply != "Free parking on site." {
		t.Errorf("custom quick reply = %q, %v", reply, ok)
	}

	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing rules file")
	}
}
