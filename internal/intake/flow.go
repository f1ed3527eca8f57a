package intake

import (
	"context"
	"log/slog"
	"strings"

	"github.com/brightlawyers/courier/internal/classify"
	"github.com/brightlawyers/courier/internal/models"
)

// bulkMinSegments is the number of comma/newline-separated fields required on
// the bulk capture path: name, phone, area, preferred date/time.
const bulkMinSegments = 4

// Result is the outcome of feeding one inbound message to a flow.
type Result struct {
	// Reply is the message to send back to the contact.
	Reply string
	// Next is the intake state the session moves to.
	Next models.IntakeState
	// Completed is true when the flow finished (finalized or cancelled) and
	// the field buffer should be cleared.
	Completed bool
}

// Flow is one variant of the appointment intake state machine. Both variants
// converge on the same Finalizer.
type Flow interface {
	// Start opens the flow: it clears the field buffer and returns the
	// opening prompt together with the initial collecting state.
	Start(fields map[models.FieldName]string) Result
	// Handle consumes one inbound message given the session's current state
	// and field buffer. The buffer is mutated in place.
	Handle(ctx context.Context, state models.IntakeState, fields map[models.FieldName]string, text string) Result
}

// BulkFlow collects all four appointment fields from a single message. This
// is the primary supported path.
type BulkFlow struct {
	classifier *classify.Classifier
	finalizer  *Finalizer
}

// NewBulkFlow creates the bulk capture flow.
func NewBulkFlow(classifier *classify.Classifier, finalizer *Finalizer) *BulkFlow {
	return &BulkFlow{classifier: classifier, finalizer: finalizer}
}

// Start clears the buffer and asks for the four fields.
func (f *BulkFlow) Start(fields map[models.FieldName]string) Result {
	clear(fields)
	return Result{Reply: PromptAllFields, Next: models.IntakeStateCollectingAllFields}
}

// Handle parses the bulk reply. Fewer than four segments re-prompts without a
// state change; four or more finalize immediately.
func (f *BulkFlow) Handle(ctx context.Context, state models.IntakeState, fields map[models.FieldName]string, text string) Result {
	if f.classifier.IsCancel(text) {
		return Result{Reply: MsgCancelled, Next: models.IntakeStateNone, Completed: true}
	}

	if state != models.IntakeStateCollectingAllFields {
		slog.Warn("BulkFlow received unexpected state, resetting", "state", state)
		return Result{Reply: MsgFlowError, Next: models.IntakeStateNone, Completed: true}
	}

	segments := splitSegments(text)
	if len(segments) < bulkMinSegments {
		slog.Debug("BulkFlow incomplete capture, re-prompting", "segments", len(segments))
		return Result{Reply: PromptIncomplete, Next: models.IntakeStateCollectingAllFields}
	}

	fields[models.FieldNameFullName] = segments[0]
	fields[models.FieldNamePhone] = segments[1]
	fields[models.FieldNameArea] = segments[2]
	fields[models.FieldNameDateTime] = segments[3]

	reply, err := f.finalizer.Finalize(ctx, fields)
	if err != nil {
		slog.Error("BulkFlow finalize error", "error", err)
	}
	return Result{Reply: reply, Next: models.IntakeStateNone, Completed: true}
}

// SequentialFlow collects one field per message, ending with an explicit
// confirmation. It is the slower alternative path.
type SequentialFlow struct {
	classifier *classify.Classifier
	finalizer  *Finalizer
}

// NewSequentialFlow creates the field-by-field flow.
func NewSequentialFlow(classifier *classify.Classifier, finalizer *Finalizer) *SequentialFlow {
	return &SequentialFlow{classifier: classifier, finalizer: finalizer}
}

// Start clears the buffer and asks for the contact's name.
func (f *SequentialFlow) Start(fields map[models.FieldName]string) Result {
	clear(fields)
	return Result{Reply: PromptName, Next: models.IntakeStateCollectingName}
}

// Handle stores the message under the field for the current state and
// advances. Confirming accepts an affirmative (finalize) or a negative
// (restart at the name).
func (f *SequentialFlow) Handle(ctx context.Context, state models.IntakeState, fields map[models.FieldName]string, text string) Result {
	if f.classifier.IsCancel(text) {
		return Result{Reply: MsgCancelled, Next: models.IntakeStateNone, Completed: true}
	}

	trimmed := strings.TrimSpace(text)

	switch state {
	case models.IntakeStateCollectingName:
		if trimmed == "" {
			return Result{Reply: PromptName, Next: state}
		}
		fields[models.FieldNameFullName] = trimmed
		return Result{Reply: PromptPhone, Next: models.IntakeStateCollectingPhone}

	case models.IntakeStateCollectingPhone:
		if trimmed == "" {
			return Result{Reply: PromptPhone, Next: state}
		}
		fields[models.FieldNamePhone] = trimmed
		return Result{Reply: PromptArea, Next: models.IntakeStateCollectingArea}

	case models.IntakeStateCollectingArea:
		if trimmed == "" {
			return Result{Reply: PromptArea, Next: state}
		}
		fields[models.FieldNameArea] = trimmed
		return Result{Reply: PromptDescription, Next: models.IntakeStateCollectingDescription}

	case models.IntakeStateCollectingDescription:
		if trimmed == "" {
			return Result{Reply: PromptDescription, Next: state}
		}
		fields[models.FieldNameDescription] = trimmed
		return Result{Reply: PromptDateTime, Next: models.IntakeStateCollectingDateTime}

	case models.IntakeStateCollectingDateTime:
		if trimmed == "" {
			return Result{Reply: PromptDateTime, Next: state}
		}
		fields[models.FieldNameDateTime] = trimmed
		resolved := ResolveDateTime(trimmed, f.finalizer.now())
		return Result{Reply: confirmSummary(fields, resolved), Next: models.IntakeStateConfirming}

	case models.IntakeStateConfirming:
		if f.classifier.IsNegative(trimmed) {
			clear(fields)
			return Result{Reply: PromptName, Next: models.IntakeStateCollectingName}
		}
		if f.classifier.IsAffirmative(trimmed) {
			reply, err := f.finalizer.Finalize(ctx, fields)
			if err != nil {
				slog.Error("SequentialFlow finalize error", "error", err)
			}
			return Result{Reply: reply, Next: models.IntakeStateNone, Completed: true}
		}
		resolved := ResolveDateTime(fields[models.FieldNameDateTime], f.finalizer.now())
		return Result{Reply: confirmSummary(fields, resolved), Next: state}

	default:
		slog.Warn("SequentialFlow received unexpected state, resetting", "state", state)
		return Result{Reply: MsgFlowError, Next: models.IntakeStateNone, Completed: true}
	}
}

// splitSegments splits bulk capture text on commas and newlines into trimmed
// non-empty segments.
func splitSegments(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
