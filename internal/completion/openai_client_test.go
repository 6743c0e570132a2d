package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var premiumModel = models.Descriptor{ID: "openai/gpt-4", Provider: models.ProviderOpenRouter}

func history() []chat.Message {
	now := time.Now()
	return []chat.Message{
		chat.NewUserMessage("first", now),
		chat.NewErrorMessage("Rate Limit Exceeded!", now),
		chat.NewUserMessage("Hello", now),
	}
}

func newOpenRouter(t *testing.T, srv *httptest.Server, key string) *OpenAIClient {
	t.Helper()
	c, err := NewOpenRouterClient(ClientConfig{BaseURL: srv.URL + "/api", APIKey: key, Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestOpenAIComplete(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "COGNIX", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"  Hi there!  "}}]}`))
	}))
	defer srv.Close()

	c := newOpenRouter(t, srv, "secret")
	text, err := c.Complete(context.Background(), Request{Model: premiumModel, SystemPrompt: "persona", History: history()})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)

	assert.Equal(t, "openai/gpt-4", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, []Message{
		{Role: chat.RoleSystem, Content: "persona"},
		{Role: chat.RoleUser, Content: "first"},
		{Role: chat.RoleUser, Content: "Hello"},
	}, got.Messages)
}

func TestOpenAIStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   FailureKind
		detail string
	}{
		{401, `{"error":{"message":"No auth credentials found"}}`, AuthInvalid, "No auth credentials found"},
		{400, `{"error":{"message":"bad model"}}`, BadRequest, "bad model"},
		{429, `{"error":{"message":"slow down"}}`, RateLimited, "slow down"},
		{402, `{"error":{"message":"Insufficient credits"}}`, QuotaExhausted, "Insufficient credits"},
		{403, `{"error":{"message":"nope"}}`, Forbidden, "nope"},
		{503, `upstream down`, Unavailable, "upstream down"},
		{500, `{"error":{"message":"internal"}}`, Unknown, "internal"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newOpenRouter(t, srv, "k").Complete(context.Background(), Request{Model: premiumModel, History: history()})
			require.Error(t, err)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, tt.status, ce.Status)
			assert.Equal(t, tt.detail, ce.Detail)
		})
	}
}

func TestOpenAIMissingKeyMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	_, err := newOpenRouter(t, srv, "").Complete(context.Background(), Request{Model: premiumModel, History: history()})
	assert.Equal(t, AuthInvalid, KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestOpenAIBodyFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind FailureKind
	}{
		{"bad json", "not-json", Transport},
		{"empty choices", `{"choices":[]}`, Unknown},
		{"error payload", `{"error":{"message":"moderation"}}`, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newOpenRouter(t, srv, "k").Complete(context.Background(), Request{Model: premiumModel, History: history()})
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestOpenAITransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newOpenRouter(t, srv, "k")
	srv.Close()

	_, err := c.Complete(context.Background(), Request{Model: premiumModel, History: history()})
	assert.Equal(t, Transport, KindOf(err))
}

func TestOpenAITimeoutIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newOpenRouter(t, srv, "k")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Request{Model: premiumModel, History: history()})
	assert.Equal(t, Transport, KindOf(err))
}

func TestOpenAIStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			": OPENROUTER PROCESSING",
			`data: {"choices":[{"delta":{"role":"assistant","content":""}}]}`,
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			"",
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: {"choices":[{"delta":{"content":"!"}}]}`,
			"data: [DONE]",
			`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
		}
		for _, l := range lines {
			_, _ = fmt.Fprintln(w, l)
		}
	}))
	defer srv.Close()

	var deltas []string
	text, err := newOpenRouter(t, srv, "k").Complete(context.Background(), Request{
		Model:   premiumModel,
		History: history(),
		OnDelta: func(s string) { deltas = append(deltas, s) },
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", text)
	assert.Equal(t, []string{"Hel", "lo", "!"}, deltas)
}

func TestOpenAIStreamingErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, `data: {"error":{"message":"provider overloaded"}}`)
	}))
	defer srv.Close()

	_, err := newOpenRouter(t, srv, "k").Complete(context.Background(), Request{
		Model:   premiumModel,
		History: history(),
		OnDelta: func(string) {},
	})
	assert.Equal(t, Unknown, KindOf(err))
	assert.Equal(t, "provider overloaded", DetailOf(err))
}

func TestOpenAIModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","owned_by":"openai"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	list, err := c.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "gpt-4o", list[0].ID)
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewOpenAIClient(ClientConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}
