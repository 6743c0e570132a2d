package google

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"result":[]}
{"result":[{"alternative":[{"transcript":"what is the weather","confidence":0.71},{"transcript":"what is the whether","confidence":0.92},{"transcript":"watt is the weather"}],"final":true}],"result_index":0}
`

func TestParsePicksMostConfident(t *testing.T) {
	text, confidence, err := parse(sample)
	require.NoError(t, err)
	assert.Equal(t, "what is the whether", text)
	assert.InDelta(t, 0.92, confidence, 1e-9)
}

func TestParseDefaultsConfidence(t *testing.T) {
	text, confidence, err := parse(`{"result":[{"alternative":[{"transcript":"hello"}]}]}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 0.5, confidence)
}

func TestParseFailures(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"only empty":       `{"result":[]}`,
		"no alternatives":  `{"result":[{"alternative":[]}]}`,
		"blank transcript": `{"result":[{"alternative":[{"transcript":"  ","confidence":0.9}]}]}`,
		"not json":         "<html>",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := parse(body)
			assert.Error(t, err)
		})
	}

	_, _, err := parse(`{"result":[]}`)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "audio/x-flac; rate=16000", r.Header.Get("Content-Type"))
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("key"))
		assert.Equal(t, "en-GB", q.Get("lang"))
		assert.Equal(t, "chromium", q.Get("client"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte("fLaC-data"), body)

		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "secret", Language: "en-GB", Endpoint: srv.URL})
	require.NoError(t, err)

	text, _, err := c.Recognize(context.Background(), []byte("fLaC-data"), 16000)
	require.NoError(t, err)
	assert.Equal(t, "what is the whether", text)
}

func TestRecognizeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)

	_, _, err = c.Recognize(context.Background(), []byte("x"), 16000)
	assert.ErrorContains(t, err, "403")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingKey)
}
