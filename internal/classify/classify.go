// Package classify implements the keyword-heuristic classifiers used by the
// conversation orchestrator: human-handoff detection, appointment-intent
// detection, cancel/affirmative/negative words and quick-reply routing.
//
// Rules are data, not code: an ordered ruleset is loaded from YAML so the
// classification behavior can be tuned without code changes. An embedded
// default ruleset ships with the binary.
package classify

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// QuickReply maps a keyword list to a complete canned reply.
type QuickReply struct {
	Keywords []string `yaml:"keywords"`
	Reply    string   `yaml:"reply"`
}

// Rules holds the ordered phrase lists driving every classifier decision.
type Rules struct {
	HandoffPhrases      []string     `yaml:"handoff_phrases"`
	AppointmentKeywords []string     `yaml:"appointment_keywords"`
	AffirmativeWords    []string     `yaml:"affirmative_words"`
	NegativeWords       []string     `yaml:"negative_words"`
	CancelWords         []string     `yaml:"cancel_words"`
	QuickReplies        []QuickReply `yaml:"quick_replies"`
}

// Classifier answers keyword-heuristic questions about inbound text.
type Classifier struct {
	rules Rules
}

// NewClassifier creates a classifier over the given ruleset.
func NewClassifier(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultRules parses the embedded ruleset.
func DefaultRules() (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(defaultRulesYAML, &r); err != nil {
		return r, fmt.Errorf("failed to parse embedded rules: %w", err)
	}
	return r, nil
}

// LoadRules reads a ruleset from a YAML file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	slog.Info("Loaded classifier rules from file", "path", path)
	return r, nil
}

// containsAny reports whether text contains any of the phrases,
// case-insensitively.
func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// IsHandoff reports whether the message signals a human operator taking over.
// Handoff phrases from the contact side are ignored: only the operator
// identity can trigger a handoff.
func (c *Classifier) IsHandoff(text string, fromOperator bool) bool {
	if !fromOperator {
		return false
	}
	return containsAny(text, c.rules.HandoffPhrases)
}

// IsAppointmentIntent reports whether the contact is asking to book a
// consultation. Bare affirmatives count as intent because the bot's replies
// always end by offering an appointment.
func (c *Classifier) IsAppointmentIntent(text string) bool {
	return containsAny(text, c.rules.AppointmentKeywords) || c.IsAffirmative(text)
}

// IsCancel reports whether the message aborts an active intake flow.
func (c *Classifier) IsCancel(text string) bool {
	return containsAny(text, c.rules.CancelWords)
}

// IsAffirmative reports whether the message is an agreement.
func (c *Classifier) IsAffirmative(text string) bool {
	return containsAny(text, c.rules.AffirmativeWords)
}

// IsNegative reports whether the message is a refusal.
func (c *Classifier) IsNegative(text string) bool {
	return containsAny(text, c.rules.NegativeWords)
}

// QuickReply returns the first canned reply whose keywords match the text.
func (c *Classifier) QuickReply(text string) (string, bool) {
	for _, qr := range c.rules.QuickReplies {
		if containsAny(text, qr.Keywords) {
			return qr.Reply, true
		}
	}
	return "", false
}
