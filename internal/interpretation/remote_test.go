package interpretation_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iamvkosarev/easymatter-bot/internal/interpretation"
	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRemote(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *interpretation.RemoteClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return interpretation.NewRemoteClient(server.URL+"/", timeout, zap.NewNop())
}

func TestRemoteClientSendsContext(t *testing.T) {
	var received map[string]any
	client := newRemote(
		t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/chat/query", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &received))
			_, _ = w.Write([]byte(`{"text":"Got it."}`))
		}, time.Second,
	)

	result, err := client.Interpret(
		context.Background(), "make it stable", model.InterpretationContext{
			ExtractParams: true,
			History: []model.Message{
				{Source: model.MessageSourceAssistant, Body: "Hi!"},
				{Source: model.MessageSourceUser, Body: "I want a solar material"},
			},
			Goal: "solar cell",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "Got it.", result.ResponseText)
	assert.Nil(t, result.Interpretations)
	assert.Nil(t, result.GeneratorParameters)

	assert.Equal(t, "make it stable", received["text"])
	ctx := received["context"].(map[string]any)
	assert.Equal(t, true, ctx["extract_params"])
	assert.Equal(t, "solar cell", ctx["goal"])
	history := ctx["chat_history"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, map[string]any{"role": "assistant", "content": "Hi!"}, history[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "I want a solar material"}, history[1])
}

func TestRemoteClientDecodesBothInterpretationShapes(t *testing.T) {
	client := newRemote(
		t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(
				[]byte(`{
					"text": "Here is a stable perovskite.",
					"interpretations": [
						{"key": "composition", "displayName": "Composition", "value": "CsPbBr3"},
						{"property_name": "Band Gap", "technical_value": 1.5, "unit": "eV", "confidence": 0.8},
						{"display_name": "Stability", "value": "stable"}
					],
					"mattergen_params": {"chemical_system": "Cs-Pb-Br"}
				}`),
			)
		}, time.Second,
	)

	result, err := client.Interpret(context.Background(), "perovskite", model.InterpretationContext{ExtractParams: true})
	require.NoError(t, err)

	assert.Equal(t, "Here is a stable perovskite.", result.ResponseText)
	assert.Equal(
		t, []model.Interpretation{
			{Key: "composition", DisplayName: "Composition", Value: "CsPbBr3"},
			{Key: "band_gap", DisplayName: "Band Gap", Value: "1.5", Unit: "eV"},
			{DisplayName: "Stability", Value: "stable"},
		}, result.Interpretations,
	)
	assert.Equal(t, map[string]any{"chemical_system": "Cs-Pb-Br"}, result.GeneratorParameters)
}

func TestRemoteClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: model.ErrServiceUnavailable,
		},
		{
			name: "bad gateway",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: model.ErrServiceUnavailable,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			want: model.ErrServiceUnavailable,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			want: model.ErrMalformedResponse,
		},
		{
			name: "missing text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"interpretations": []}`))
			},
			want: model.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				client := newRemote(t, tt.handler, 100*time.Millisecond)
				_, err := client.Interpret(context.Background(), "hello", model.InterpretationContext{})
				assert.ErrorIs(t, err, tt.want)
			},
		)
	}
}

func TestRemoteClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := interpretation.NewRemoteClient(url, time.Second, zap.NewNop())
	_, err := client.Interpret(context.Background(), "hello", model.InterpretationContext{})
	assert.ErrorIs(t, err, model.ErrServiceUnavailable)
}

func TestRemoteClientExplainProperty(t *testing.T) {
	client := newRemote(
		t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/chat/property-guidance", r.URL.Path)
			var req interpretation.GuidanceRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Bandgap", req.PropertyName)
			assert.Equal(t, "advanced", req.UserLevel)
			_, _ = w.Write([]byte(`{"text":"Eg is the energy between bands."}`))
		}, time.Second,
	)

	text, err := client.ExplainProperty(context.Background(), "Bandgap", model.UserLevelAdvanced)
	require.NoError(t, err)
	assert.Equal(t, "Eg is the energy between bands.", text)
}

func TestRemoteClientExplainPropertyErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantErr: model.ErrServiceUnavailable},
		{name: "blank text", status: http.StatusOK, body: `{"text":"  "}`, wantErr: model.ErrMalformedResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: model.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				client := newRemote(
					t, func(w http.ResponseWriter, _ *http.Request) {
						w.WriteHeader(tt.status)
						_, _ = w.Write([]byte(tt.body))
					}, time.Second,
				)
				_, err := client.ExplainProperty(context.Background(), "Density", model.UserLevelBeginner)
				assert.ErrorIs(t, err, tt.wantErr)
			},
		)
	}
}
