package interpretation

import (
	"context"
	"fmt"

	"github.com/iamvkosarev/easymatter-bot/config"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	openai_tools "github.com/iamvkosarev/easymatter-bot/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient answers turns with an OpenAI chat model: one reply call and,
// when parameters are requested, one JSON extraction call.
type OpenAIClient struct {
	cfg    config.OpenAI
	client *openai.Client
	logger *zap.Logger
}

func NewOpenAIClient(cfg config.OpenAI, logger *zap.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}
}

func (c *OpenAIClient) Interpret(
	ctx context.Context,
	turnText string,
	ictx model.InterpretationContext,
) (model.InterpretationResult, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	messages := c.buildMessages(turnText, ictx)

	reply, err := c.complete(ctx, messages, c.cfg.ReplyTemperature, nil)
	if err != nil {
		return model.InterpretationResult{}, err
	}
	result := model.InterpretationResult{ResponseText: reply}
	if !ictx.ExtractParams {
		return result, nil
	}

	extractionMessages := append(
		messages,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: extractionPrompt},
	)
	extracted, err := c.complete(
		ctx, extractionMessages, c.cfg.ExtractionTemperature,
		&openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
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

func (c *OpenAIClient) ExplainProperty(ctx context.Context, property string, level model.UserLevel) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	return c.complete(
		ctx, []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: guidanceSystemPrompt(level)},
			{Role: openai.ChatMessageRoleUser, Content: guidanceUserPrompt(property, level)},
		}, guidanceTemperature, nil,
	)
}

func (c *OpenAIClient) buildMessages(turnText string, ictx model.InterpretationContext) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(ictx.History)+2)
	messages = append(
		messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt(ictx),
		},
	)
	for _, message := range ictx.History {
		messages = append(
			messages, openai.ChatCompletionMessage{
				Role:    parseMessageSourceToRole(message.Source),
				Content: message.Body,
			},
		)
	}
	messages = append(
		messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: turnText,
		},
	)

	trimmed, dropped, err := openai_tools.TrimHistory(messages, 1, c.cfg.Model, c.cfg.MaxContextTokens)
	if err != nil {
		c.logger.Warn("count token error", zap.Error(err))
		return messages
	}
	if dropped {
		c.logger.Debug(
			"history trimmed due to token limit",
			zap.Int("before", len(messages)),
			zap.Int("after", len(trimmed)),
		)
	}
	return trimmed
}

func (c *OpenAIClient) complete(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
	temperature float32,
	format *openai.ChatCompletionResponseFormat,
) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:          c.cfg.Model,
		Temperature:    temperature,
		TopP:           1,
		N:              1,
		Messages:       messages,
		ResponseFormat: format,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("chat completion failed", zap.String("model", c.cfg.Model), zap.Error(err))
		return "", fmt.Errorf("%w: %w", model.ErrServiceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", model.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func parseMessageSourceToRole(source model.MessageSource) string {
	switch source {
	case model.MessageSourceAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
