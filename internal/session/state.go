package session

import (
	"errors"
	"fmt"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/completion"
)

var (
	// ErrInputRejected is wrapped by every reason a Submit is refused.
	ErrInputRejected = errors.New("input rejected")
	ErrEmptyInput    = fmt.Errorf("%w: message is empty", ErrInputRejected)
	ErrBusy          = fmt.Errorf("%w: a request is already pending", ErrInputRejected)

	ErrPremiumGated          = errors.New("model requires a premium subscription")
	ErrModelNotFound         = errors.New("model not found")
	ErrCapabilityUnavailable = errors.New("speech capability unavailable")
	ErrMessageNotFound       = errors.New("message not found")
	ErrClosed                = errors.New("session closed")
)

type Phase int

const (
	Idle Phase = iota
	Pending
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RequestState is the request gate. Succeeded and Failed are only seen in
// notifications; the controller settles back on Idle right after them.
type RequestState struct {
	Phase Phase `json:"phase"`
	// Failure is set when Phase is Failed.
	Failure completion.FailureKind `json:"-"`
}

type EventKind int

const (
	TranscriptChanged EventKind = iota
	StateChanged
	PreferencesChanged
	InputChanged
	CaptureChanged
	PlaybackChanged
	ReplyDelta
	Notice
)

func (k EventKind) String() string {
	return [...]string{
		"transcript_changed",
		"state_changed",
		"preferences_changed",
		"input_changed",
		"capture_changed",
		"playback_changed",
		"reply_delta",
		"notice",
	}[k]
}

// Event tells a host what changed. Only the fields relevant to Kind are set:
// Message for TranscriptChanged, State for StateChanged, Text for
// InputChanged, ReplyDelta and Notice, Active for CaptureChanged and
// PlaybackChanged.
type Event struct {
	Kind    EventKind
	State   RequestState
	Message chat.Message
	Text    string
	Active  bool
	// Cleared is set on the TranscriptChanged that follows a clear.
	Cleared bool
}
