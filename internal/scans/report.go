package scans

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errNoJSONObject  = errors.New("no JSON object in reply")
	errUnknownShape  = errors.New("reply matches no known report shape")
	errMalformedJSON = errors.New("malformed report JSON")
)

// Issue is one cosmetic observation.
type Issue struct {
	Name        string   `json:"name"`
	Severity    string   `json:"severity"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// Routine is a suggested morning and evening regimen.
type Routine struct {
	Morning []string `json:"morning"`
	Evening []string `json:"evening"`
}

// Report is the canonical analysis result every consumer relies on.
// Severity and skin type are passed through as the model wrote them.
type Report struct {
	Issues                []Issue  `json:"issues"`
	Recommendations       []string `json:"recommendations"`
	OverallAssessment     string   `json:"overallAssessment"`
	SkinType              string   `json:"skinType"`
	Routine               *Routine `json:"routine,omitempty"`
	IngredientsToConsider []string `json:"ingredientsToConsider"`
	AvoidIfSensitive      []string `json:"avoidIfSensitive"`
}

// flatReport is the shape that already matches Report. Discriminator: "issues".
type flatReport struct {
	Issues                []Issue  `json:"issues"`
	Recommendations       []string `json:"recommendations"`
	OverallAssessment     string   `json:"overallAssessment"`
	SkinType              string   `json:"skinType"`
	Routine               *Routine `json:"routine"`
	IngredientsToConsider []string `json:"ingredientsToConsider"`
	AvoidIfSensitive      []string `json:"avoidIfSensitive"`
}

// routineReport is the concerns/routine shape. Discriminator: "concerns" or "routine".
type routineReport struct {
	Concerns              []concern `json:"concerns"`
	Routine               *Routine  `json:"routine,omitempty"`
	IngredientsToConsider []string  `json:"ingredientsToConsider"`
	AvoidIfSensitive      []string  `json:"avoidIfSensitive"`
	OverallSummary        string    `json:"overallSummary"`
}

type concern struct {
	Name        string   `json:"name"`
	Area        string   `json:"area"`
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

const (
	routineSeverity = "mild"
	unknownSkinType = "unknown"
)

var fallbackPayload = routineReport{
	Concerns: []concern{},
	Routine: &Routine{
		Morning: []string{"gentle cleanser", "moisturizer", "SPF 30+"},
		Evening: []string{"gentle cleanser", "moisturizer"},
	},
	IngredientsToConsider: []string{"niacinamide", "ceramides", "hyaluronic acid"},
	AvoidIfSensitive:      []string{"fragrance", "harsh scrubs", "alcohol"},
	OverallSummary:        "Could not assess photo details reliably. Here is a safe basic routine.",
}

var (
	safeDefault = fallbackPayload.toReport()
	fallbackRaw = mustMarshal(fallbackPayload)
)

// SafeDefault returns a fresh copy of the fixed report used whenever the
// model reply cannot be trusted.
func SafeDefault() Report {
	return safeDefault.clone()
}

// FallbackRaw returns the raw payload the safe default is derived from.
func FallbackRaw() json.RawMessage {
	return append(json.RawMessage(nil), fallbackRaw...)
}

// parseReport extracts the first JSON object from text and decodes it as
// one of the known shapes.
func parseReport(text string) (Report, json.RawMessage, error) {
	span, ok := ExtractJSONObject(text)
	if !ok {
		return Report{}, nil, errNoJSONObject
	}
	report, err := decodeReport([]byte(span))
	if err != nil {
		return Report{}, nil, err
	}
	return report, json.RawMessage(span), nil
}

func decodeReport(raw []byte) (Report, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Report{}, fmt.Errorf("%w: %v", errMalformedJSON, err)
	}

	switch {
	case hasKey(top, "issues"):
		var flat flatReport
		if err := json.Unmarshal(raw, &flat); err != nil {
			return Report{}, fmt.Errorf("%w: flat shape: %v", errMalformedJSON, err)
		}
		return flat.toReport(), nil
	case hasKey(top, "concerns"), hasKey(top, "routine"):
		var rr routineReport
		if err := json.Unmarshal(raw, &rr); err != nil {
			return Report{}, fmt.Errorf("%w: routine shape: %v", errMalformedJSON, err)
		}
		return rr.toReport(), nil
	default:
		return Report{}, errUnknownShape
	}
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

func (f flatReport) toReport() Report {
	out := Report{
		Issues:                f.Issues,
		Recommendations:       f.Recommendations,
		OverallAssessment:     f.OverallAssessment,
		SkinType:              f.SkinType,
		Routine:               f.Routine,
		IngredientsToConsider: f.IngredientsToConsider,
		AvoidIfSensitive:      f.AvoidIfSensitive,
	}
	if out.SkinType == "" {
		out.SkinType = unknownSkinType
	}
	return out.finalize()
}

func (r routineReport) toReport() Report {
	issues := make([]Issue, 0, len(r.Concerns))
	for _, c := range r.Concerns {
		issues = append(issues, Issue{
			Name:        c.Name,
			Severity:    routineSeverity,
			Location:    c.Area,
			Description: c.Description,
			Confidence:  c.Confidence,
		})
	}

	var recs []string
	if r.Routine != nil {
		recs = appendPrefixed(recs, "Morning: ", r.Routine.Morning)
		recs = appendPrefixed(recs, "Evening: ", r.Routine.Evening)
	}
	recs = appendPrefixed(recs, "Consider: ", r.IngredientsToConsider)

	return Report{
		Issues:                issues,
		Recommendations:       recs,
		OverallAssessment:     r.OverallSummary,
		SkinType:              unknownSkinType,
		Routine:               r.Routine,
		IngredientsToConsider: r.IngredientsToConsider,
		AvoidIfSensitive:      r.AvoidIfSensitive,
	}.finalize()
}

func appendPrefixed(dst []string, prefix string, items []string) []string {
	for _, item := range items {
		dst = append(dst, prefix+item)
	}
	return dst
}

// finalize replaces nil collections with empty ones, clamps confidence into
// [0,1] and detaches the report from decoder-owned memory.
func (r Report) finalize() Report {
	out := r.clone()
	for i := range out.Issues {
		if c := out.Issues[i].Confidence; c != nil {
			v := clamp01(*c)
			out.Issues[i].Confidence = &v
		}
	}
	return out
}

func (r Report) clone() Report {
	out := r
	out.Issues = make([]Issue, len(r.Issues))
	for i, issue := range r.Issues {
		if issue.Confidence != nil {
			v := *issue.Confidence
			issue.Confidence = &v
		}
		out.Issues[i] = issue
	}
	out.Recommendations = cloneStrings(r.Recommendations)
	out.IngredientsToConsider = cloneStrings(r.IngredientsToConsider)
	out.AvoidIfSensitive = cloneStrings(r.AvoidIfSensitive)
	if r.Routine != nil {
		out.Routine = &Routine{
			Morning: cloneStrings(r.Routine.Morning),
			Evening: cloneStrings(r.Routine.Evening),
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
