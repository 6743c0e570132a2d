// Package speech runs speech capture and playback on behalf of a chat
// session. Backends do the platform work; the Adapter enforces that at most
// one capture and one playback run at a time and reports every outcome as an
// Event.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bz888/cognix/internal/logger"
)

// ErrNoSpeech is reported when a capture finished without recognisable words.
var ErrNoSpeech = errors.New("no speech recognised")

// Recognizer turns one utterance into text. Listen returns when speech has
// been recognised, when it fails, or when ctx is cancelled.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// Synthesizer speaks text aloud. Speak blocks until playback finishes or ctx
// is cancelled. rate 1.0 is the engine's normal speed.
type Synthesizer interface {
	Speak(ctx context.Context, text string, rate float64) error
}

type Capabilities struct {
	Capture  bool `json:"capture"`
	Playback bool `json:"playback"`
}

type EventKind int

const (
	EventTranscript EventKind = iota
	EventCaptureError
	EventCancelled
	EventPlaybackStarted
	EventPlaybackEnded
	EventPlaybackError
)

func (k EventKind) String() string {
	switch k {
	case EventTranscript:
		return "transcript"
	case EventCaptureError:
		return "capture_error"
	case EventCancelled:
		return "cancelled"
	case EventPlaybackStarted:
		return "playback_started"
	case EventPlaybackEnded:
		return "playback_ended"
	case EventPlaybackError:
		return "playback_error"
	}
	return "unknown"
}

// Terminal reports whether k ends its operation.
func (k EventKind) Terminal() bool {
	return k != EventPlaybackStarted
}

// Event reports progress of a capture or playback operation. Op identifies
// the operation that produced it.
type Event struct {
	Kind EventKind
	Op   uint64
	Text string
	Err  error
}

type operation struct {
	id     uint64
	cancel context.CancelFunc
}

type Adapter struct {
	rec    Recognizer
	syn    Synthesizer
	caps   Capabilities
	events chan Event
	done   chan struct{}
	log    *logger.Logger

	mu       sync.Mutex
	nextOp   uint64
	capture  *operation
	playback *operation
	closed   bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAdapter wraps the given backends. A nil backend leaves the matching
// capability unavailable for the adapter's lifetime.
func NewAdapter(rec Recognizer, syn Synthesizer) *Adapter {
	return &Adapter{
		rec:    rec,
		syn:    syn,
		caps:   Capabilities{Capture: rec != nil, Playback: syn != nil},
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		log:    logger.NewLogger("speech"),
	}
}

func (a *Adapter) Capabilities() Capabilities {
	return a.caps
}

// Events delivers operation results. The channel is closed by Close.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

func (a *Adapter) Capturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capture != nil
}

func (a *Adapter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playback != nil
}

// StartCapture begins listening in the background. It reports false, and
// does nothing, when capture is unsupported or already running.
func (a *Adapter) StartCapture() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rec == nil || a.closed || a.capture != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	op := a.newOp(cancel)
	a.capture = op

	a.wg.Add(1)
	go a.listen(ctx, op)
	return true
}

// StopCapture cancels the running capture. The capture still finishes with
// exactly one event: Cancelled, or its result if one had already arrived.
func (a *Adapter) StopCapture() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture != nil {
		a.capture.cancel()
	}
}

func (a *Adapter) listen(ctx context.Context, op *operation) {
	defer a.wg.Done()
	defer op.cancel()

	text, err := a.rec.Listen(ctx)

	a.mu.Lock()
	if a.capture == op {
		a.capture = nil
	}
	a.mu.Unlock()

	ev := Event{Op: op.id}
	switch {
	case err == nil && strings.TrimSpace(text) != "":
		ev.Kind = EventTranscript
		ev.Text = strings.TrimSpace(text)
	case ctx.Err() != nil:
		ev.Kind = EventCancelled
	case err == nil:
		ev.Kind = EventCaptureError
		ev.Err = ErrNoSpeech
	default:
		a.log.Warn("capture ", op.id, " failed: ", err)
		ev.Kind = EventCaptureError
		ev.Err = err
	}
	a.emit(ev)
}

// Speak normalizes text and plays it, replacing any playback in progress.
// It returns the playback's operation ID, or false when playback is
// unsupported or nothing speakable is left after normalization.
func (a *Adapter) Speak(text string, rate float64) (uint64, bool) {
	spoken := Normalize(text)
	if a.syn == nil || spoken == "" {
		return 0, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, false
	}
	if a.playback != nil {
		a.playback.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	op := a.newOp(cancel)
	a.playback = op

	a.wg.Add(1)
	go a.play(ctx, op, spoken, rate)
	return op.id, true
}

// StopPlayback cancels the running playback, if any.
func (a *Adapter) StopPlayback() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playback != nil {
		a.playback.cancel()
		a.playback = nil
	}
}

func (a *Adapter) play(ctx context.Context, op *operation, text string, rate float64) {
	defer a.wg.Done()
	defer op.cancel()

	a.emit(Event{Kind: EventPlaybackStarted, Op: op.id})
	err := a.syn.Speak(ctx, text, rate)

	a.mu.Lock()
	if a.playback == op {
		a.playback = nil
	}
	a.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		a.log.Warn("playback ", op.id, " failed: ", err)
		a.emit(Event{Kind: EventPlaybackError, Op: op.id, Err: err})
		return
	}
	a.emit(Event{Kind: EventPlaybackEnded, Op: op.id})
}

// Close cancels capture and playback, waits for both to wind down and
// closes the Events channel. Events not yet consumed may be dropped.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		if a.capture != nil {
			a.capture.cancel()
		}
		if a.playback != nil {
			a.playback.cancel()
			a.playback = nil
		}
		a.mu.Unlock()

		close(a.done)
		a.wg.Wait()
		close(a.events)
	})
}

func (a *Adapter) newOp(cancel context.CancelFunc) *operation {
	a.nextOp++
	return &operation{id: a.nextOp, cancel: cancel}
}

func (a *Adapter) emit(ev Event) {
	select {
	case a.events <- ev:
	case <-a.done:
		a.log.Debug("dropping ", ev.Kind, " for operation ", ev.Op, " after close")
	}
}
