// Package diagnosis turns free-form model output into a models.Diagnosis. It never fails:
// each step of the ladder falls through to a weaker one and the last step always produces
// a usable record.
package diagnosis

import (
	"encoding/json"
	"strings"

	"agroai/internal/llm"
	"agroai/internal/models"
)

const (
	UnknownDisease            = "Unknown"
	NoDiagnosisRecommendation = "No diagnosis available. Please try again with a clearer image."
	NoRecommendation          = "No specific recommendation provided."
)

// Normalizer runs the degradation ladder: strict JSON, then the fallback Strategy,
// then an Unknown record carrying the raw text.
type Normalizer struct {
	strategy   Strategy
	extractors []llm.Extractor
}

// NewNormalizer returns a Normalizer using strategy for non-JSON replies. A nil
// strategy means LabelStrategy.
func NewNormalizer(strategy Strategy, extractors ...llm.Extractor) *Normalizer {
	if strategy == nil {
		strategy = LabelStrategy{}
	}
	return &Normalizer{strategy: strategy, extractors: extractors}
}

// Normalize extracts the reply text from env and normalizes it.
func (n *Normalizer) Normalize(env *llm.Envelope) *models.Diagnosis {
	text, ok := llm.ExtractText(env, n.extractors...)
	if !ok {
		return noDiagnosis()
	}
	return n.FromText(text)
}

// FromText normalizes already extracted reply text.
func (n *Normalizer) FromText(text string) *models.Diagnosis {
	text = strings.TrimSpace(text)
	if text == "" {
		return noDiagnosis()
	}

	if d, ok := parseStrict(text); ok {
		d.Raw = text
		return d
	}

	fields := n.strategy.Extract(text)

	d := &models.Diagnosis{
		Disease:        fields.Disease,
		Confidence:     clamp(fields.Confidence),
		Recommendation: fields.Recommendation,
		Raw:            text,
	}
	if d.Disease == "" {
		d.Disease = UnknownDisease
		d.Recommendation = text
		if !fields.ConfidenceFound {
			d.Confidence = 0
		}
	}
	if d.Recommendation == "" {
		d.Recommendation = text
	}
	return d
}

func noDiagnosis() *models.Diagnosis {
	return &models.Diagnosis{
		Disease:        UnknownDisease,
		Confidence:     0,
		Recommendation: NoDiagnosisRecommendation,
	}
}

type strictDiagnosis struct {
	Disease        *string  `json:"disease"`
	Confidence     *float64 `json:"confidence"`
	Recommendation *string  `json:"recommendation"`
}

// parseStrict accepts only an object with all three keys of the right types and a
// non-empty disease. Surrounding prose and Markdown fences are ignored.
func parseStrict(text string) (*models.Diagnosis, bool) {
	candidate := stripFences(text)
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var parsed strictDiagnosis
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	if parsed.Disease == nil || parsed.Confidence == nil || parsed.Recommendation == nil {
		return nil, false
	}

	disease := strings.TrimSpace(*parsed.Disease)
	if disease == "" {
		return nil, false
	}
	recommendation := strings.TrimSpace(*parsed.Recommendation)
	if recommendation == "" {
		recommendation = NoRecommendation
	}

	return &models.Diagnosis{
		Disease:        disease,
		Confidence:     clamp(fromPercent(*parsed.Confidence)),
		Recommendation: recommendation,
	}, true
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the info string, e.g. "json".
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// fromPercent reads values in (1, 100] as percentages.
func fromPercent(v float64) float64 {
	if v > 1 && v <= 100 {
		return v / 100
	}
	return v
}

func clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
