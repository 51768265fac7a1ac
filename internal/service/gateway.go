package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"agroai/internal/apperr"
	"agroai/internal/diagnosis"
	"agroai/internal/llm"
	"agroai/internal/models"
	"agroai/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrEmptyMessage     = apperr.New(apperr.ErrValidation, "No message provided")
	ErrNoImage          = apperr.New(apperr.ErrValidation, "No image file provided")
	ErrUnsupportedImage = apperr.New(apperr.ErrValidation, "Uploaded file is not a supported image")
	ErrUnauthenticated  = apperr.New(apperr.ErrAuth, "Authentication required")
	ErrProviderFailed   = apperr.New(apperr.ErrUpstream, "AI service unavailable")
)

// ImageArchive stores uploaded images.
type ImageArchive interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

type Gateway interface {
	Chat(ctx context.Context, user *models.User, message string) (*models.ChatExchange, error)
	Diagnose(ctx context.Context, user *models.User, image models.Image) (*models.Diagnosis, error)
}

type gateway struct {
	provider   llm.Provider
	normalizer *diagnosis.Normalizer
	archive    ImageArchive // optional
	timeout    time.Duration
	logger     *zap.Logger
}

func NewGateway(provider llm.Provider, normalizer *diagnosis.Normalizer, archive ImageArchive, timeout time.Duration, logger *zap.Logger) Gateway {
	if normalizer == nil {
		normalizer = diagnosis.NewNormalizer(nil)
	}
	return &gateway{
		provider:   provider,
		normalizer: normalizer,
		archive:    archive,
		timeout:    timeout,
		logger:     logger,
	}
}

func (g *gateway) Chat(ctx context.Context, user *models.User, message string) (*models.ChatExchange, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	env, err := g.generate(ctx, llm.Request{
		System: chatSystemInstruction,
		Prompt: buildChatPrompt(message),
	})
	if err != nil {
		return nil, err
	}

	reply, ok := llm.ExtractText(env)
	if !ok {
		g.logger.Warn("Empty chat reply, using fallback", zap.Int64("user_id", user.ID))
		reply = ChatFallbackReply
	}

	return &models.ChatExchange{User: user.Email, Message: message, Reply: reply}, nil
}

func (g *gateway) Diagnose(ctx context.Context, user *models.User, image models.Image) (*models.Diagnosis, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if len(image.Data) == 0 {
		return nil, ErrNoImage
	}

	mimeType, err := imageMIMEType(image)
	if err != nil {
		return nil, err
	}

	env, err := g.generate(ctx, llm.Request{
		System:     diagnosisSystemInstruction,
		Prompt:     diagnosisPrompt,
		Attachment: &llm.Attachment{MIMEType: mimeType, Data: image.Data},
		JSON:       true,
	})
	if err != nil {
		return nil, err
	}

	g.archiveImage(ctx, user, image, mimeType)

	result := g.normalizer.Normalize(env)
	g.logger.Info("Diagnosis completed",
		zap.Int64("user_id", user.ID),
		zap.String("disease", result.Disease),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

// generate makes exactly one provider call bounded by the gateway timeout.
func (g *gateway) generate(ctx context.Context, req llm.Request) (*llm.Envelope, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	env, err := g.provider.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("Provider call timed out",
				zap.String("provider", g.provider.Name()),
				zap.Duration("timeout", g.timeout))
		} else {
			g.logger.Error("Provider call failed", zap.String("provider", g.provider.Name()), zap.Error(err))
		}
		return nil, apperr.Wrap(apperr.ErrUpstream, ErrProviderFailed.Msg, err)
	}

	g.logger.Debug("Provider call finished",
		zap.String("provider", g.provider.Name()),
		zap.Duration("latency", time.Since(started)))
	return env, nil
}

// archiveImage stores the upload if an archive is configured. Failures are only logged.
func (g *gateway) archiveImage(ctx context.Context, user *models.User, image models.Image, mimeType string) {
	if g.archive == nil {
		return
	}
	key := storage.DiagnosisImageKey(user.ID, mimeType, image.Filename)
	if err := g.archive.Upload(ctx, key, image.Data, mimeType); err != nil {
		g.logger.Warn("Failed to archive image", zap.String("key", key), zap.Error(err))
		return
	}
	g.logger.Debug("Image archived", zap.String("key", key))
}

// imageMIMEType trusts the declared type unless it is missing or generic.
func imageMIMEType(image models.Image) (string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(image.MIMEType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image.Data)
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", ErrUnsupportedImage
	}
	return mimeType, nil
}
