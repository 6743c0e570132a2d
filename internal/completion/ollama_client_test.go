package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bz888/cognix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var localModel = models.Descriptor{ID: "ollama/llama3:latest", Provider: models.ProviderOllama, Upstream: "llama3:latest"}

func newOllama(t *testing.T, srv *httptest.Server) *OllamaClient {
	t.Helper()
	c, err := NewOllamaClient(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	require.NoError(t, err)
	return c
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3:latest", req.Model)
		assert.False(t, req.Stream)

		_, _ = w.Write([]byte(`{"model":"llama3:latest","message":{"role":"assistant","content":"local hello"},"done":true}`))
	}))
	defer srv.Close()

	text, err := newOllama(t, srv).Complete(context.Background(), Request{Model: localModel, History: history()})
	require.NoError(t, err)
	assert.Equal(t, "local hello", text)
}

func TestOllamaStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range []string{"one ", "two"} {
			_, _ = fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		_, _ = fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	var deltas []string
	text, err := newOllama(t, srv).Complete(context.Background(), Request{
		Model:   localModel,
		History: history(),
		OnDelta: func(s string) { deltas = append(deltas, s) },
	})
	require.NoError(t, err)
	assert.Equal(t, "one two", text)
	assert.Equal(t, []string{"one ", "two"}, deltas)
}

func TestOllamaModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3:latest' not found, try pulling it first"}`))
	}))
	defer srv.Close()

	_, err := newOllama(t, srv).Complete(context.Background(), Request{Model: localModel, History: history()})
	assert.Equal(t, Unknown, KindOf(err))
	assert.Contains(t, DetailOf(err), "try pulling it first")
}

func TestOllamaModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","details":{"families":null}},{"name":"mistral:7b","details":{"families":["llama"]}}]}`))
	}))
	defer srv.Close()

	c := newOllama(t, srv)
	list, err := c.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, Families{}, list[0].Details.Families)
	assert.Equal(t, Families{"llama"}, list[1].Details.Families)

	names, err := c.ModelNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "mistral:7b"}, names)
}
