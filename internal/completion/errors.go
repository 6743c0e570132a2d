package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

type FailureKind int

const (
	Unknown FailureKind = iota
	AuthInvalid
	BadRequest
	RateLimited
	QuotaExhausted
	Forbidden
	Unavailable
	Transport
)

func (k FailureKind) String() string {
	switch k {
	case AuthInvalid:
		return "auth_invalid"
	case BadRequest:
		return "bad_request"
	case RateLimited:
		return "rate_limited"
	case QuotaExhausted:
		return "quota_exhausted"
	case Forbidden:
		return "forbidden"
	case Unavailable:
		return "unavailable"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified completion failure.
type Error struct {
	Kind   FailureKind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("completion ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil && e.Detail == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies any error returned by a Completer.
func KindOf(err error) FailureKind {
	if err == nil {
		return Unknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if isTransport(err) {
		return Transport
	}
	return Unknown
}

// DetailOf returns the human-facing detail carried by err.
func DetailOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Detail != "" {
			return ce.Detail
		}
		if ce.Err != nil {
			return ce.Err.Error()
		}
		return ""
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func KindForStatus(status int) FailureKind {
	switch status {
	case http.StatusUnauthorized:
		return AuthInvalid
	case http.StatusBadRequest:
		return BadRequest
	case http.StatusTooManyRequests:
		return RateLimited
	case http.StatusPaymentRequired:
		return QuotaExhausted
	case http.StatusForbidden:
		return Forbidden
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return Unavailable
	default:
		return Unknown
	}
}

const maxDetail = 300

// statusError builds the failure for a non-2xx response, pulling the
// upstream message out of the usual {"error": {...}} or {"error": "..."} bodies.
func statusError(status int, body []byte) *Error {
	return &Error{
		Kind:   KindForStatus(status),
		Status: status,
		Detail: upstreamMessage(body),
	}
}

func upstreamMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > maxDetail {
		cut := maxDetail
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "..."
	}
	return raw
}

func transportError(err error) *Error {
	return &Error{Kind: Transport, Detail: err.Error(), Err: err}
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
