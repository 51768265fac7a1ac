package gemini

import (
	"context"
	"errors"
	"fmt"

	"agroai/internal/llm"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const DefaultModelName = "gemini-1.5-flash"

// Client wraps the Gemini API client
type Client struct {
	client          *genai.Client
	logger          *zap.Logger
	modelName       string
	visionModelName string
}

// Config for Gemini client
type Config struct {
	APIKey    string
	ModelName string
	// VisionModelName is used for requests with an attachment. Empty means ModelName.
	VisionModelName string
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.VisionModelName == "" {
		cfg.VisionModelName = cfg.ModelName
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.String("vision_model", cfg.VisionModelName))

	return &Client{
		client:          client,
		logger:          logger,
		modelName:       cfg.ModelName,
		visionModelName: cfg.VisionModelName,
	}, nil
}

func (c *Client) Name() string {
	return string(llm.ProviderGemini)
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate sends a single request. A reply withheld by the safety filters is
// returned as an empty envelope rather than an error.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Envelope, error) {
	modelName := c.modelName
	if req.Attachment != nil {
		modelName = c.visionModelName
	}

	model := c.client.GenerativeModel(modelName)
	configureModel(model, req)

	resp, err := model.GenerateContent(ctx, buildParts(req)...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			c.logger.Warn("Gemini reply blocked", zap.String("model", modelName), zap.Error(err))
			return &llm.Envelope{}, nil
		}
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	env := toEnvelope(resp)
	c.logger.Debug("Gemini reply received",
		zap.String("model", modelName),
		zap.Int("candidates", len(env.Candidates)))
	return env, nil
}

func configureModel(model *genai.GenerativeModel, req llm.Request) {
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	model.GenerationConfig.Temperature = genai.Ptr[float32](0.4)
}

func buildParts(req llm.Request) []genai.Part {
	parts := []genai.Part{genai.Text(req.Prompt)}
	if req.Attachment != nil {
		parts = append(parts, genai.Blob{
			MIMEType: req.Attachment.MIMEType,
			Data:     req.Attachment.Data,
		})
	}
	return parts
}

// toEnvelope keeps the text parts of every candidate. Gemini has no top-level text field.
func toEnvelope(resp *genai.GenerateContentResponse) *llm.Envelope {
	env := &llm.Envelope{}
	if resp == nil {
		return env
	}
	for _, cand := range resp.Candidates {
		var c llm.Candidate
		if cand != nil && cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					c.Parts = append(c.Parts, string(text))
				}
			}
		}
		env.Candidates = append(env.Candidates, c)
	}
	return env
}
