// Package llm defines the provider-neutral request/response shapes for generative
// model calls and the helpers shared by every provider.
package llm

import (
	"context"
	"strings"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// Attachment is binary content sent alongside the prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request is a single generation call.
type Request struct {
	System     string
	Prompt     string
	Attachment *Attachment
	// JSON asks the provider for a JSON-only reply where it supports that.
	JSON bool
}

// Candidate is one alternative reply. Parts are its text parts in order.
type Candidate struct {
	Parts []string
}

// Envelope is the raw reply. Either field may be empty; providers differ in which
// one they fill.
type Envelope struct {
	Text       string
	Candidates []Candidate
}

// Provider interface for any LLM provider
type Provider interface {
	Generate(ctx context.Context, req Request) (*Envelope, error)
	Name() string
	Close() error
}

// Extractor pulls reply text out of an envelope.
type Extractor func(env *Envelope) (string, bool)

// DirectText uses the envelope's text field.
func DirectText(env *Envelope) (string, bool) {
	text := strings.TrimSpace(env.Text)
	return text, text != ""
}

// CandidateParts joins the text parts of the first candidate.
func CandidateParts(env *Envelope) (string, bool) {
	if len(env.Candidates) == 0 {
		return "", false
	}
	text := strings.TrimSpace(strings.Join(env.Candidates[0].Parts, ""))
	return text, text != ""
}

// DefaultExtractors is the order used by ExtractText.
var DefaultExtractors = []Extractor{DirectText, CandidateParts}

// ExtractText returns the first non-empty text produced by extractors, trying
// DefaultExtractors when none are given.
func ExtractText(env *Envelope, extractors ...Extractor) (string, bool) {
	if env == nil {
		return "", false
	}
	if len(extractors) == 0 {
		extractors = DefaultExtractors
	}
	for _, extract := range extractors {
		if text, ok := extract(env); ok {
			return text, true
		}
	}
	return "", false
}
