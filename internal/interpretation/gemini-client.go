package interpretation

import (
	"context"
	"fmt"

	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const jsonMIMEType = "application/json"

// ContentGenerator is the part of genai.Models the client uses.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	cfg    config.Gemini
	models ContentGenerator
	logger *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.Gemini, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(
		ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewGeminiClientWithGenerator(cfg, client.Models, logger), nil
}

func NewGeminiClientWithGenerator(cfg config.Gemini, models ContentGenerator, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		cfg:    cfg,
		models: models,
		logger: logger,
	}
}

func (c *GeminiClient) Interpret(
	ctx context.Context,
	turnText string,
	ictx model.InterpretationContext,
) (model.InterpretationResult, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	contents := make([]*genai.Content, 0, len(ictx.History)+1)
	for _, message := range ictx.History {
		role := genai.Role(genai.RoleUser)
		if message.Source == model.MessageSourceAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Body, role))
	}
	contents = append(contents, genai.NewContentFromText(turnText, genai.RoleUser))

	system := genai.NewContentFromText(systemPrompt(ictx), genai.RoleUser)

	replyTemperature := c.cfg.ReplyTemperature
	reply, err := c.generate(
		ctx, contents, &genai.GenerateContentConfig{
			SystemInstruction: system,
			Temperature:       &replyTemperature,
		},
	)
	if err != nil {
		return model.InterpretationResult{}, err
	}
	result := model.InterpretationResult{ResponseText: reply}
	if !ictx.ExtractParams {
		return result, nil
	}

	contents = append(
		contents,
		genai.NewContentFromText(reply, genai.RoleModel),
		genai.NewContentFromText(extractionPrompt, genai.RoleUser),
	)
	extractionTemperature := c.cfg.ExtractionTemperature
	extracted, err := c.generate(
		ctx, contents, &genai.GenerateContentConfig{
			SystemInstruction: system,
			Temperature:       &extractionTemperature,
			ResponseMIMEType:  jsonMIMEType,
		},
	)
	if err != nil {
		return model.InterpretationResult{}, err
	}

	interpretations, params, err := parseExtraction(extracted)
	if err != nil {
		c.logger.Warn("extraction ignored", zap.Error(err))
		return result, nil
	}
	result.Interpretations = interpretations
	result.GeneratorParameters = params
	return result, nil
}

func (c *GeminiClient) ExplainProperty(ctx context.Context, property string, level model.UserLevel) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	temperature := float32(guidanceTemperature)
	return c.generate(
		ctx, []*genai.Content{genai.NewContentFromText(guidanceUserPrompt(property, level), genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(guidanceSystemPrompt(level), genai.RoleUser),
			Temperature:       &temperature,
		},
	)
}

func (c *GeminiClient) generate(
	ctx context.Context,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, cfg)
	if err != nil {
		c.logger.Error("gemini generate content failed", zap.String("model", c.cfg.Model), zap.Error(err))
		return "", fmt.Errorf("%w: %w", model.ErrServiceUnavailable, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", model.ErrMalformedResponse)
	}
	return resp.Text(), nil
}
