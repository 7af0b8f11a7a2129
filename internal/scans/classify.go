package scans

import (
	"encoding/json"
	"strings"

	"skinscan-backend/internal/vision"
)

// Reasons attached to a classification, for logs only.
const (
	ReasonContentFilter = "content_filter"
	ReasonRefusalField  = "refusal_field"
	ReasonRefusalText   = "refusal_text"
	ReasonEmpty         = "empty"
	ReasonParseError    = "parse_error"
)

// Outcome is the classification of one model reply together with the
// report it resolves to.
type Outcome struct {
	State  OutcomeState
	Reason string
	Marker string
	Report Report
	// Raw is the extracted JSON for completed replies and the fallback
	// payload otherwise.
	Raw json.RawMessage
}

// Classifier assigns exactly one OutcomeState to a model reply. Rules are
// evaluated in order and the first match wins.
type Classifier struct {
	refusals refusalMatcher
}

// NewClassifier builds a classifier using the default refusal markers plus
// any extra markers supplied.
func NewClassifier(extraMarkers ...string) *Classifier {
	return &Classifier{refusals: newRefusalMatcher(extraMarkers)}
}

// Classify returns the outcome state for reply.
func (c *Classifier) Classify(reply vision.Reply) OutcomeState {
	return c.Evaluate(reply).State
}

// Evaluate classifies reply and normalizes it in one pass.
func (c *Classifier) Evaluate(reply vision.Reply) Outcome {
	if reply.FinishReason == vision.FinishContentFilter {
		return fallbackOutcome(StatusFallback, ReasonContentFilter, "")
	}
	if strings.TrimSpace(reply.Refusal) != "" {
		return fallbackOutcome(StatusFallback, ReasonRefusalField, "")
	}
	if marker := c.refusals.match(reply.Content); marker != "" {
		return fallbackOutcome(StatusFallback, ReasonRefusalText, marker)
	}
	if strings.TrimSpace(reply.Content) == "" {
		return fallbackOutcome(StatusEmptyResponse, ReasonEmpty, "")
	}

	report, raw, err := parseReport(reply.Content)
	if err != nil {
		return fallbackOutcome(StatusParseError, ReasonParseError, "")
	}
	return Outcome{State: StatusCompleted, Report: report, Raw: raw}
}

// Normalize maps reply text to the canonical report for state. Only a
// completed state is parsed; if parsing fails the state is downgraded to
// parse_error and the safe default is returned.
func Normalize(text string, state OutcomeState) (Report, OutcomeState) {
	if state != StatusCompleted {
		return SafeDefault(), state
	}
	report, _, err := parseReport(text)
	if err != nil {
		return SafeDefault(), StatusParseError
	}
	return report, StatusCompleted
}

func fallbackOutcome(state OutcomeState, reason, marker string) Outcome {
	return Outcome{
		State:  state,
		Reason: reason,
		Marker: marker,
		Report: SafeDefault(),
		Raw:    FallbackRaw(),
	}
}
