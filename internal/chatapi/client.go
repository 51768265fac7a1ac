// Package chatapi talks to OpenAI-compatible /chat/completions endpoints (Groq, OpenRouter).
package chatapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"agroai/internal/llm"

	"go.uber.org/zap"
)

const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultGroqModel       = "llama-3.3-70b-versatile"
	defaultOpenRouterModel = "meta-llama/llama-3.2-11b-vision-instruct:free"

	// maxErrorBody bounds how much of a failed response is kept for the error message.
	maxErrorBody = 512
)

// Client wraps an OpenAI-compatible chat completions API
type Client struct {
	provider        llm.ProviderType
	apiKey          string
	baseURL         string
	modelName       string
	visionModelName string
	httpClient      *http.Client
	logger          *zap.Logger
}

// Config for the chat completions client. BaseURL and ModelName default per provider.
type Config struct {
	Provider        llm.ProviderType
	APIKey          string
	BaseURL         string
	ModelName       string
	VisionModelName string
	HTTPClient      *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    float32         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatMessage content is either a string or a list of contentPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewClient creates a new chat completions client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}

	switch cfg.Provider {
	case llm.ProviderGroq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		if cfg.ModelName == "" {
			cfg.ModelName = defaultGroqModel
		}
	case llm.ProviderOpenRouter:
		if cfg.BaseURL == "" {
			cfg.BaseURL = OpenRouterBaseURL
		}
		if cfg.ModelName == "" {
			cfg.ModelName = defaultOpenRouterModel
		}
	default:
		return nil, fmt.Errorf("unsupported chat provider %q", cfg.Provider)
	}

	if cfg.VisionModelName == "" {
		cfg.VisionModelName = cfg.ModelName
	}
	if cfg.HTTPClient == nil {
		// Deadlines come from the caller's context.
		cfg.HTTPClient = &http.Client{}
	}

	logger.Info("Chat completions client initialized",
		zap.String("provider", string(cfg.Provider)),
		zap.String("model", cfg.ModelName),
		zap.String("vision_model", cfg.VisionModelName))

	return &Client{
		provider:        cfg.Provider,
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		modelName:       cfg.ModelName,
		visionModelName: cfg.VisionModelName,
		httpClient:      cfg.HTTPClient,
		logger:          logger,
	}, nil
}

func (c *Client) Name() string {
	return string(c.provider)
}

// Close closes the client
func (c *Client) Close() error {
	return nil
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Envelope, error) {
	jsonData, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.provider == llm.ProviderOpenRouter {
		httpReq.Header.Set("X-Title", "AgroAI")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		c.logger.Error("Chat completions API error",
			zap.String("provider", string(c.provider)),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%s API returned status %d: %s", c.provider, resp.StatusCode, snippet)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return toEnvelope(&chatResp), nil
}

func (c *Client) buildRequest(req llm.Request) chatRequest {
	out := chatRequest{
		Model:       c.modelName,
		Stream:      false,
		Temperature: 0.4,
	}

	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}

	if req.Attachment == nil {
		out.Messages = append(out.Messages, chatMessage{Role: "user", Content: req.Prompt})
	} else {
		out.Model = c.visionModelName
		dataURI := "data:" + req.Attachment.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Attachment.Data)
		out.Messages = append(out.Messages, chatMessage{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			},
		})
	}

	if req.JSON {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return out
}

// toEnvelope puts the first choice into Text and every choice into Candidates.
func toEnvelope(resp *chatResponse) *llm.Envelope {
	env := &llm.Envelope{}
	for i, choice := range resp.Choices {
		if i == 0 {
			env.Text = choice.Message.Content
		}
		env.Candidates = append(env.Candidates, llm.Candidate{Parts: []string{choice.Message.Content}})
	}
	return env
}
