package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	tests := map[int]FailureKind{
		http.StatusUnauthorized:        AuthInvalid,
		http.StatusBadRequest:          BadRequest,
		http.StatusTooManyRequests:     RateLimited,
		http.StatusPaymentRequired:     QuotaExhausted,
		http.StatusForbidden:           Forbidden,
		http.StatusServiceUnavailable:  Unavailable,
		http.StatusBadGateway:          Unavailable,
		http.StatusGatewayTimeout:      Unavailable,
		http.StatusInternalServerError: Unknown,
		http.StatusNotFound:            Unknown,
	}
	for status, want := range tests {
		assert.Equal(t, want, KindForStatus(status), "status %d", status)
	}
}

func TestUpstreamMessage(t *testing.T) {
	assert.Equal(t, "API key not valid", upstreamMessage([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)))
	assert.Equal(t, "model 'x' not found", upstreamMessage([]byte(`{"error":"model 'x' not found"}`)))
	assert.Equal(t, "oops", upstreamMessage([]byte(" oops \n")))

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, upstreamMessage(long), maxDetail+3)

	// "é" is two bytes, so byte maxDetail falls inside one
	wide := []byte("a" + strings.Repeat("é", maxDetail))
	got := upstreamMessage(wide)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "é..."))
	assert.LessOrEqual(t, len(got), maxDetail+3)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", &Error{Kind: QuotaExhausted, Status: 402})
	assert.Equal(t, QuotaExhausted, KindOf(wrapped))
	assert.Equal(t, Transport, KindOf(context.DeadlineExceeded))
	assert.Equal(t, Unknown, KindOf(errors.New("boom")))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: RateLimited, Status: 429, Detail: "slow down"}
	assert.Equal(t, "completion rate_limited (status 429): slow down", err.Error())
	assert.Equal(t, "slow down", DetailOf(err))

	cause := errors.New("dial tcp: refused")
	terr := transportError(cause)
	assert.ErrorIs(t, terr, cause)
	assert.Equal(t, Transport, KindOf(terr))
}
