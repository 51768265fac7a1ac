package diagnosis

import (
	"testing"

	"agroai/internal/llm"
	"agroai/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StrictJSON(t *testing.T) {
	n := NewNormalizer(nil)
	raw := `{"disease":"Blight","confidence":0.8,"recommendation":"Apply fungicide"}`

	got := n.Normalize(&llm.Envelope{Text: raw})

	assert.Equal(t, &models.Diagnosis{
		Disease:        "Blight",
		Confidence:     0.8,
		Recommendation: "Apply fungicide",
		Raw:            raw,
	}, got)
}

func TestFromText_StrictJSONVariants(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name           string
		text           string
		disease        string
		confidence     float64
		recommendation string
	}{
		{
			name:           "fenced",
			text:           "```json\n{\"disease\":\"Leaf Spot\",\"confidence\":0.65,\"recommendation\":\"Improve airflow\"}\n```",
			disease:        "Leaf Spot",
			confidence:     0.65,
			recommendation: "Improve airflow",
		},
		{
			name:           "surrounding prose",
			text:           "Here is the result:\n{\"disease\":\"Healthy\",\"confidence\":0.95,\"recommendation\":\"None needed\"}\nThanks",
			disease:        "Healthy",
			confidence:     0.95,
			recommendation: "None needed",
		},
		{
			name:           "extra keys ignored",
			text:           `{"disease":"Rust","confidence":0.4,"recommendation":"Spray","severity":"mild"}`,
			disease:        "Rust",
			confidence:     0.4,
			recommendation: "Spray",
		},
		{
			name:           "confidence as percentage",
			text:           `{"disease":"Rust","confidence":85,"recommendation":"Spray"}`,
			disease:        "Rust",
			confidence:     0.85,
			recommendation: "Spray",
		},
		{
			name:           "confidence above range",
			text:           `{"disease":"Rust","confidence":150,"recommendation":"Spray"}`,
			disease:        "Rust",
			confidence:     1,
			recommendation: "Spray",
		},
		{
			name:           "negative confidence",
			text:           `{"disease":"Rust","confidence":-0.2,"recommendation":"Spray"}`,
			disease:        "Rust",
			confidence:     0,
			recommendation: "Spray",
		},
		{
			name:           "empty recommendation",
			text:           `{"disease":"Rust","confidence":0.3,"recommendation":""}`,
			disease:        "Rust",
			confidence:     0.3,
			recommendation: NoRecommendation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.FromText(tt.text)
			assert.Equal(t, tt.disease, got.Disease)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.recommendation, got.Recommendation)
			assert.Equal(t, tt.text, got.Raw)
		})
	}
}

func TestFromText_InvalidJSONFallsThrough(t *testing.T) {
	n := NewNormalizer(nil)

	for _, text := range []string{
		`{"disease":"Rust","recommendation":"Spray"}`,
		`{"disease":"Rust","confidence":"high","recommendation":"Spray"}`,
		`{"disease":"","confidence":0.5,"recommendation":"Spray"}`,
		`{"disease":"Rust","confidence":0.5`,
	} {
		got := n.FromText(text)
		assert.Equal(t, UnknownDisease, got.Disease, text)
		assert.Equal(t, 0.0, got.Confidence, text)
		assert.Equal(t, text, got.Recommendation, text)
	}
}

func TestFromText_Labelled(t *testing.T) {
	n := NewNormalizer(nil)
	text := "Disease/Condition: Leaf Rust\nConfidence Level: High\nRecommended Actions: Remove affected leaves\n\n"

	got := n.FromText(text)

	assert.Equal(t, "Leaf Rust", got.Disease)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, "Remove affected leaves", got.Recommendation)
}

func TestFromText_Unparseable(t *testing.T) {
	n := NewNormalizer(nil)

	for _, text := range []string{"", "   ", "I am not sure what this is.", "lorem ipsum\n\ndolor"} {
		got := n.FromText(text)
		assert.Equal(t, UnknownDisease, got.Disease, text)
		assert.Equal(t, 0.0, got.Confidence, text)
		assert.NotEmpty(t, got.Recommendation, text)
	}

	assert.Equal(t, NoDiagnosisRecommendation, n.FromText("").Recommendation)
	assert.Equal(t, "I am not sure what this is.", n.FromText("I am not sure what this is.").Recommendation)
}

func TestFromText_ConfidenceWithoutDisease(t *testing.T) {
	n := NewNormalizer(nil)
	text := "The photo is blurry.\nConfidence Level: Low"

	got := n.FromText(text)

	assert.Equal(t, UnknownDisease, got.Disease)
	assert.Equal(t, 0.5, got.Confidence)
	assert.Equal(t, text, got.Recommendation)
}

func TestFromText_DiseaseWithoutRecommendation(t *testing.T) {
	n := NewNormalizer(nil)
	text := "Disease/Condition: Powdery Mildew"

	got := n.FromText(text)

	assert.Equal(t, "Powdery Mildew", got.Disease)
	assert.Equal(t, DefaultConfidence, got.Confidence)
	assert.Equal(t, text, got.Recommendation)
}

func TestNormalize_NoText(t *testing.T) {
	n := NewNormalizer(nil)

	for _, env := range []*llm.Envelope{nil, {}, {Candidates: []llm.Candidate{{Parts: []string{" "}}}}} {
		got := n.Normalize(env)
		assert.Equal(t, &models.Diagnosis{
			Disease:        UnknownDisease,
			Confidence:     0,
			Recommendation: NoDiagnosisRecommendation,
		}, got)
	}
}

func TestNormalize_CandidateParts(t *testing.T) {
	n := NewNormalizer(nil)
	env := &llm.Envelope{Candidates: []llm.Candidate{{Parts: []string{
		`{"disease":"Blight",`,
		`"confidence":0.8,"recommendation":"Apply fungicide"}`,
	}}}}

	got := n.Normalize(env)

	assert.Equal(t, "Blight", got.Disease)
	assert.Equal(t, 0.8, got.Confidence)
}

func TestNormalizer_CustomStrategy(t *testing.T) {
	calls := 0
	n := NewNormalizer(StrategyFunc(func(text string) Fields {
		calls++
		return Fields{Disease: "Custom", Confidence: 0.6, ConfidenceFound: true, Recommendation: "Do it"}
	}))

	got := n.FromText("free text")
	require.Equal(t, 1, calls)
	assert.Equal(t, "Custom", got.Disease)
	assert.Equal(t, 0.6, got.Confidence)

	// A valid JSON reply never reaches the strategy.
	n.FromText(`{"disease":"Blight","confidence":0.8,"recommendation":"Apply fungicide"}`)
	assert.Equal(t, 1, calls)
}

func TestFromText_PercentConfidenceAgreesAcrossPaths(t *testing.T) {
	n := NewNormalizer(LabelStrategy{})

	strict := n.FromText(`{"disease":"Scab","confidence":85,"recommendation":"Prune"}`)
	labelled := n.FromText("Disease/Condition: Scab\nConfidence Level: 85\nRecommended Actions: Prune")

	assert.InDelta(t, 0.85, strict.Confidence, 1e-9)
	assert.InDelta(t, strict.Confidence, labelled.Confidence, 1e-9)
	assert.Equal(t, strict.Disease, labelled.Disease)
	assert.Equal(t, strict.Recommendation, labelled.Recommendation)
}
