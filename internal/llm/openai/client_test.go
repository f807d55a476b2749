package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-extractor/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

func TestComplete_TextPrompt(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse("  {\"vendor\":\"Acme\"}\n"))
	})

	out, err := client.Complete(context.Background(), llm.CompletionRequest{Prompt: "extract this"})
	require.NoError(t, err)
	assert.Equal(t, `{"vendor":"Acme"}`, out)

	assert.Equal(t, "test-model", body["model"])
	assert.EqualValues(t, 1000, body["max_tokens"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "extract this", msg["content"])
}

func TestComplete_ImageIsSentAsDataURL(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, chatResponse(`{"vendor":"Acme"}`))
	})

	_, err := client.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "extract",
		Image:  &llm.ImageInput{MIMEType: "image/png", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)

	parts := body["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "data:image/png;base64,AQID", img["image_url"].(map[string]any)["url"])
}

func TestComplete_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		auth   bool
		quota  bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, true, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, false, true},
		{"upstream html", http.StatusBadGateway, `<html>bad gateway</html>`, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := client.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"})
			var se *llm.StatusError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.auth, se.IsAuth())
			assert.Equal(t, tt.quota, se.IsQuota())
		})
	}
}

func TestComplete_EmptyResponses(t *testing.T) {
	for name, payload := range map[string]string{
		"no choices":    `{"id":"x","object":"chat.completion","choices":[]}`,
		"blank content": chatResponse("   "),
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, payload)
			})
			_, err := client.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"})
			assert.ErrorIs(t, err, llm.ErrEmptyResponse)
		})
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, llm.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
