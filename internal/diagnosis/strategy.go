package diagnosis

import (
	"regexp"
	"strconv"
	"strings"
)

// Fields is what a Strategy recovers from a non-JSON reply. Empty strings mean not found.
type Fields struct {
	Disease         string
	Confidence      float64
	ConfidenceFound bool
	Recommendation  string
}

// Strategy recovers diagnosis fields from free text.
type Strategy interface {
	Extract(text string) Fields
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(text string) Fields

func (f StrategyFunc) Extract(text string) Fields { return f(text) }

// DefaultConfidence applies when a disease is found without a readable confidence.
const DefaultConfidence = 0.5

var (
	emphasis = strings.NewReplacer("**", "", "__", "")

	diseaseLabel        = regexp.MustCompile(`(?im)disease\s*/\s*condition\s*:[ \t]*([^\n]*)`)
	confidenceLabel     = regexp.MustCompile(`(?im)confidence(?:\s+level)?\s*:[ \t]*([^\n]*)`)
	recommendationLabel = regexp.MustCompile(`(?is)recommended\s+actions\s*:\s*(.*?)(?:\n[ \t]*\n|\z)`)
	symptomsLabel       = regexp.MustCompile(`(?is)symptoms\s+observed\s*:(.*)`)
	numericConfidence   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(%)?`)
)

// LabelStrategy reads "Disease/Condition:", "Confidence Level:" and
// "Recommended Actions:" labelled sections, ignoring Markdown emphasis and case.
type LabelStrategy struct{}

func (LabelStrategy) Extract(text string) Fields {
	text = emphasis.Replace(strings.ReplaceAll(text, "\r\n", "\n"))

	var f Fields
	if m := diseaseLabel.FindStringSubmatch(text); m != nil {
		f.Disease = strings.TrimSpace(m[1])
	}

	if m := confidenceLabel.FindStringSubmatch(text); m != nil {
		f.ConfidenceFound = true
		f.Confidence = confidenceValue(m[1])
	} else if f.Disease != "" {
		f.Confidence = DefaultConfidence
	}

	if m := recommendationLabel.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		f.Recommendation = strings.TrimSpace(m[1])
	} else if m := symptomsLabel.FindStringSubmatch(text); m != nil {
		f.Recommendation = strings.TrimSpace(m[1])
	}
	return f
}

func confidenceValue(s string) float64 {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "high"):
		return 0.9
	case strings.Contains(s, "medium"), strings.Contains(s, "moderate"):
		return 0.7
	case strings.Contains(s, "low"):
		return 0.5
	}

	m := numericConfidence.FindStringSubmatch(s)
	if m == nil {
		return DefaultConfidence
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultConfidence
	}
	if m[2] == "%" || v > 1 {
		v /= 100
	}
	return clamp(v)
}
