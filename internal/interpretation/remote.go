package interpretation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"go.uber.org/zap"
)

const (
	queryPath        = "/api/chat/query"
	guidancePath     = "/api/chat/property-guidance"
	maxResponseBytes = 1 << 20
)

// RemoteClient asks a deployed interpretation service over HTTP.
// It sends exactly one request per Interpret call.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewRemoteClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteClient {
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *RemoteClient) Interpret(
	ctx context.Context,
	turnText string,
	ictx model.InterpretationContext,
) (model.InterpretationResult, error) {
	body, err := json.Marshal(NewQueryRequest(turnText, ictx))
	if err != nil {
		return model.InterpretationResult{}, fmt.Errorf("failed to encode query: %w", err)
	}

	raw, err := c.post(ctx, queryPath, body)
	if err != nil {
		return model.InterpretationResult{}, err
	}

	var decoded QueryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return model.InterpretationResult{}, fmt.Errorf("%w: %w", model.ErrMalformedResponse, err)
	}
	result, ok := decoded.Result()
	if !ok {
		return model.InterpretationResult{}, fmt.Errorf("%w: response has no text", model.ErrMalformedResponse)
	}
	return result, nil
}

// ExplainProperty asks the service for a property explanation at the given level.
func (c *RemoteClient) ExplainProperty(ctx context.Context, property string, level model.UserLevel) (string, error) {
	body, err := json.Marshal(GuidanceRequest{PropertyName: property, UserLevel: string(level)})
	if err != nil {
		return "", fmt.Errorf("failed to encode guidance request: %w", err)
	}
	raw, err := c.post(ctx, guidancePath, body)
	if err != nil {
		return "", err
	}
	var decoded GuidanceResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(decoded.Text) == "" {
		return "", fmt.Errorf("%w: guidance has no text", model.ErrMalformedResponse)
	}
	return decoded.Text, nil
}

// post sends one JSON request and returns the body of a 2xx answer.
func (c *RemoteClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrServiceUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", model.ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn(
			"interpretation service answered with error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(raw, 256)),
		)
		return nil, fmt.Errorf("%w: unexpected status %d", model.ErrServiceUnavailable, resp.StatusCode)
	}
	return raw, nil
}

func truncate(raw []byte, limit int) []byte {
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit]
}
