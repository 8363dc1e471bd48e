package openai_tools

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const defaultEncoding = "cl100k_base"

// CountToken estimates the prompt tokens of messages the way the OpenAI cookbook does:
// a fixed overhead per message plus the encoded role, content and name.
func CountToken(messages []openai.ChatCompletionMessage, model string) (int, error) {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return 0, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}

	const (
		tokensPerMessage = 3
		tokensPerName    = 1
		replyPriming     = 3
	)

	numTokens := 0
	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(message.Role, nil, nil))
		if message.Name != "" {
			numTokens += len(tkm.Encode(message.Name, nil, nil))
			numTokens += tokensPerName
		}
	}
	numTokens += replyPriming
	return numTokens, nil
}

// TrimHistory drops the oldest messages after the first keep ones until the
// conversation fits into limit tokens. It reports whether anything was dropped.
func TrimHistory(messages []openai.ChatCompletionMessage, keep int, model string, limit int) (
	[]openai.ChatCompletionMessage,
	bool,
	error,
) {
	if limit <= 0 {
		return messages, false, nil
	}
	trimmed := false
	for len(messages) > keep+1 {
		tokenCount, err := CountToken(messages, model)
		if err != nil {
			return messages, trimmed, err
		}
		if tokenCount < limit {
			break
		}
		messages = append(messages[:keep:keep], messages[keep+1:]...)
		trimmed = true
	}
	return messages, trimmed, nil
}
