package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"nailart/internal/imageinput"
	"nailart/internal/models"
	"nailart/internal/prompt"
)

// Model is the subset of *genai.Models used here.
type Model interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ImageNormalizer resolves raw image strings into payloads.
type ImageNormalizer interface {
	Normalize(ctx context.Context, images []string) ([]models.ImagePayload, error)
}

// Service turns generation requests into calls to the image model.
type Service struct {
	model      Model
	normalizer ImageNormalizer
	modelName  string
	imageSize  string
	limiter    *rate.Limiter
	log        *zap.Logger
}

func NewService(model Model, normalizer ImageNormalizer, cfg models.GeminiConfig, log *zap.Logger) (*Service, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RateInterval), max(cfg.RateBurst, 1))
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = models.DefaultGeminiModel
	}
	imageSize := cfg.ImageSize
	if imageSize == "" {
		imageSize = models.DefaultImageSize
	}

	return &Service{
		model:      model,
		normalizer: normalizer,
		modelName:  modelName,
		imageSize:  imageSize,
		limiter:    limiter,
		log:        log,
	}, nil
}

// Generate validates req, builds the content sequence and calls the model.
// A response without an image part yields an *EmptyResultError.
func (s *Service) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	const op = "generator.Generate"

	req = req.Normalize()
	if req.Prompt == "" && len(req.Images) == 0 {
		return nil, fmt.Errorf("%s: %w: prompt and images are both empty", op, ErrValidation)
	}
	if !models.IsAspectRatio(req.AspectRatio) {
		return nil, fmt.Errorf("%s: %w: unsupported aspect ratio %q", op, ErrValidation, req.AspectRatio)
	}
	if len(req.Images) > models.MaxImages {
		return nil, fmt.Errorf("%s: %w: %d images exceeds %d", op, ErrValidation, len(req.Images), models.MaxImages)
	}

	payloads, err := s.normalizer.Normalize(ctx, req.Images)
	if err != nil {
		if errors.Is(err, imageinput.ErrInvalidData) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrValidation, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	parts := make([]*genai.Part, 0, len(payloads)+1)
	if req.Prompt != "" {
		parts = append(parts, genai.NewPartFromText(prompt.BuildThumbnailPrompt(req.Prompt)))
	}
	for _, p := range payloads {
		parts = append(parts, genai.NewPartFromBytes(p.Bytes, p.MimeType))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%s: %w: no usable images", op, ErrValidation)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
		}
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   s.imageSize,
		},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := s.model.GenerateContent(ctx, s.modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	s.log.Info("generation finished",
		zap.String("model", s.modelName),
		zap.Int("parts", len(parts)),
		zap.String("aspect_ratio", req.AspectRatio),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)

	result, err := parseResponse(resp)
	if err != nil {
		var empty *EmptyResultError
		if errors.As(err, &empty) && empty.FinishReason != "" {
			s.log.Warn("model returned no image", zap.String("finish_reason", empty.FinishReason))
		}
		return nil, err
	}
	return result, nil
}

// parseResponse takes the first text part and the first image part of the
// first candidate, in whatever order they appear.
func parseResponse(resp *genai.GenerateContentResponse) (*models.GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, &EmptyResultError{}
	}
	candidate := resp.Candidates[0]

	var (
		text      string
		textFound bool
		image     *genai.Blob
	)
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought && !textFound {
				text, textFound = part.Text, true
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 && image == nil {
				image = part.InlineData
			}
		}
	}

	if image == nil {
		e := &EmptyResultError{Text: text}
		if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
			e.FinishReason = string(candidate.FinishReason)
		}
		return nil, e
	}

	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = models.DefaultMimeType
	}
	return &models.GenerationResult{
		Text:      text,
		ImageData: base64.StdEncoding.EncodeToString(image.Data),
		MimeType:  mimeType,
	}, nil
}
