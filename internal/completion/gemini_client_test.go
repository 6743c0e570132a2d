package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var freeModel = models.Descriptor{ID: "cognix-ai", Provider: models.ProviderGemini, Upstream: "gemini-2.5-flash-lite"}

func newGemini(t *testing.T, srv *httptest.Server, key string) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClient(ClientConfig{BaseURL: srv.URL, APIKey: key, Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestGeminiComplete(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-lite:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"I am "},{"text":"COGNIX."}]}}]}`))
	}))
	defer srv.Close()

	now := time.Now()
	hist := []chat.Message{
		chat.NewUserMessage("who are you?", now),
		chat.NewAssistantMessage("COGNIX", now),
		chat.NewErrorMessage("Service Unavailable", now),
		chat.NewUserMessage("again?", now),
	}

	text, err := newGemini(t, srv, "g-key").Complete(context.Background(), Request{Model: freeModel, SystemPrompt: "persona", History: hist})
	require.NoError(t, err)
	assert.Equal(t, "I am COGNIX.", text)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "persona", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "again?", got.Contents[2].Parts[0].Text)
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   FailureKind
	}{
		{400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, BadRequest},
		{429, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`, RateLimited},
		{503, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`, Unavailable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newGemini(t, srv, "k").Complete(context.Background(), Request{Model: freeModel, History: history()})
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestGeminiBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := newGemini(t, srv, "k").Complete(context.Background(), Request{Model: freeModel, History: history()})
	assert.Equal(t, BadRequest, KindOf(err))
	assert.Contains(t, DetailOf(err), "SAFETY")
}

func TestGeminiMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	_, err := newGemini(t, srv, "").Complete(context.Background(), Request{Model: freeModel, History: history()})
	assert.Equal(t, AuthInvalid, KindOf(err))
}

func TestGeminiStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-lite:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		_, _ = fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hi \"}]}}]}\r\n\r\n")
		_, _ = fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"there\"}]}}]}\r\n\r\n")
	}))
	defer srv.Close()

	var deltas []string
	text, err := newGemini(t, srv, "k").Complete(context.Background(), Request{
		Model:   freeModel,
		History: history(),
		OnDelta: func(s string) { deltas = append(deltas, s) },
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	assert.Equal(t, []string{"Hi ", "there"}, deltas)
}
