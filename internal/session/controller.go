// Package session runs one chat session: the transcript, the request gate,
// speech input and output, and model selection. A Controller owns all of
// its state on a single goroutine started by Run; every public method is
// handed to that goroutine and waits for it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/completion"
	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/models"
	"github.com/bz888/cognix/internal/preferences"
	"github.com/bz888/cognix/internal/speech"
)

type Options struct {
	Registry  *models.Registry
	Completer completion.Completer
	// Speech may be nil, in which case no speech capability is available.
	Speech *speech.Adapter
	// Store defaults to an in-memory store.
	Store preferences.Store

	// SystemPrompt defaults to completion.DefaultSystemPrompt.
	SystemPrompt string
	// Greeting opens a fresh transcript. Defaults to chat.InitialGreeting.
	Greeting string
	// IncludeGreeting sends the opening greeting upstream as part of the
	// conversation history.
	IncludeGreeting bool
	// KeepStale appends replies that arrive after the conversation was
	// cleared. By default they are dropped.
	KeepStale bool
	// Stream requests replies incrementally and reports them as ReplyDelta
	// events.
	Stream bool

	// Notify receives every Event on the controller goroutine. It must not
	// block; it may call the snapshot methods.
	Notify func(Event)
	Now    func() time.Time
}

type reply struct {
	epoch uint64
	text  string
	err   error
}

type delta struct {
	epoch uint64
	text  string
}

type Controller struct {
	opts      Options
	reg       *models.Registry
	completer completion.Completer
	speech    *speech.Adapter
	store     preferences.Store
	log       *logger.Logger

	ops     chan func()
	replies chan reply
	deltas  chan delta
	quit    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	// written only by the controller goroutine
	mu         sync.RWMutex
	transcript *chat.Transcript
	state      RequestState
	prefs      preferences.Preferences
	selected   models.Descriptor
	input      string
	capturing  bool
	speaking   bool
	playbackOp uint64

	epoch   uint64
	persist bool
}

func New(opts Options) (*Controller, error) {
	if opts.Registry == nil {
		return nil, errors.New("session: a model registry is required")
	}
	if opts.Completer == nil {
		return nil, errors.New("session: a completer is required")
	}
	if opts.Store == nil {
		opts.Store = preferences.NewMemoryStore(opts.Registry)
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = completion.DefaultSystemPrompt
	}
	if opts.Greeting == "" {
		opts.Greeting = chat.InitialGreeting
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notify == nil {
		opts.Notify = func(Event) {}
	}

	c := &Controller{
		opts:      opts,
		reg:       opts.Registry,
		completer: opts.Completer,
		speech:    opts.Speech,
		store:     opts.Store,
		log:       logger.NewLogger("session"),
		ops:       make(chan func()),
		replies:   make(chan reply, 1),
		deltas:    make(chan delta, 64),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		persist:   true,
	}

	c.prefs = opts.Store.Load().Sanitize(c.reg)
	c.selected, _ = c.reg.Find(c.prefs.SelectedModelID)
	c.transcript = chat.NewTranscript(chat.NewGreeting(opts.Greeting, opts.Now()))
	return c, nil
}

// Run processes operations until ctx is done or Close is called. It may be
// called once; later calls return ErrClosed.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() { started = true })
	if !started {
		return ErrClosed
	}
	defer close(c.stopped)

	var speechEvents <-chan speech.Event
	if c.speech != nil {
		speechEvents = c.speech.Events()
	}

	c.log.Info("session started with model ", c.selected.ID)
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-c.quit:
			c.shutdown()
			return nil
		case op := <-c.ops:
			op()
		case r := <-c.replies:
			c.finish(r)
		case d := <-c.deltas:
			if d.epoch == c.epoch {
				c.notify(Event{Kind: ReplyDelta, Text: d.text})
			}
		case ev, ok := <-speechEvents:
			if !ok {
				speechEvents = nil
				continue
			}
			c.handleSpeech(ev)
		}
	}
}

func (c *Controller) shutdown() {
	if c.speech != nil {
		c.speech.Close()
	}
	c.log.Info("session stopped")
}

// Close stops Run and releases speech resources. A pending completion runs
// to completion in the background and its reply is dropped.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// do runs fn on the controller goroutine and waits for it.
func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(done) }:
	case <-c.stopped:
		return ErrClosed
	case <-c.quit:
		return ErrClosed
	}
	<-done
	return nil
}

func (c *Controller) notify(ev Event) {
	c.opts.Notify(ev)
}

func (c *Controller) setState(s RequestState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify(Event{Kind: StateChanged, State: s})
}

func (c *Controller) appendMessage(m chat.Message) {
	c.mu.Lock()
	err := c.transcript.Append(m)
	c.mu.Unlock()
	if err != nil {
		c.log.Error("dropping message: ", err)
		return
	}
	c.notify(Event{Kind: TranscriptChanged, Message: m})
}

func (c *Controller) setInput(text string) {
	c.mu.Lock()
	changed := c.input != text
	c.input = text
	c.mu.Unlock()
	if changed {
		c.notify(Event{Kind: InputChanged, Text: text})
	}
}

// Submit sends text as the next user message. It is refused with an error
// wrapping ErrInputRejected when text is blank or a request is pending.
func (c *Controller) Submit(text string) error {
	_, err := c.Send(text)
	return err
}

// Submitted describes an accepted message. Notice is set when the selected
// model is premium: the message was answered locally with the upgrade notice
// and nothing was sent upstream.
type Submitted struct {
	Message chat.Message
	Notice  *chat.Message
}

// Send is Submit reporting what was appended, decided in the same step that
// accepted the message.
func (c *Controller) Send(text string) (Submitted, error) {
	var sub Submitted
	var err error
	if e := c.do(func() { sub, err = c.submit(text) }); e != nil {
		return Submitted{}, e
	}
	return sub, err
}

func (c *Controller) submit(text string) (Submitted, error) {
	if strings.TrimSpace(text) == "" {
		return Submitted{}, ErrEmptyInput
	}
	if c.state.Phase != Idle {
		return Submitted{}, ErrBusy
	}

	now := c.opts.Now()
	sub := Submitted{Message: chat.NewUserMessage(text, now)}
	c.appendMessage(sub.Message)
	c.setInput("")

	model := c.selected
	if model.IsPremium {
		c.log.Info("not sending to premium model ", model.ID)
		notice := chat.NewErrorMessage(premiumNotice, now)
		c.appendMessage(notice)
		sub.Notice = &notice
		return sub, nil
	}

	c.setState(RequestState{Phase: Pending})

	req := completion.Request{
		Model:        model,
		SystemPrompt: c.opts.SystemPrompt,
		History:      c.transcript.History(c.opts.IncludeGreeting),
	}
	epoch := c.epoch
	if c.opts.Stream {
		req.OnDelta = func(text string) {
			select {
			case c.deltas <- delta{epoch: epoch, text: text}:
			case <-c.stopped:
			}
		}
	}

	go func() {
		text, err := c.completer.Complete(context.Background(), req)
		c.replies <- reply{epoch: epoch, text: text, err: err}
	}()
	return sub, nil
}

func (c *Controller) finish(r reply) {
	c.drainDeltas()
	if r.epoch != c.epoch && !c.opts.KeepStale {
		c.log.Debug("dropping reply from before the conversation was cleared")
		c.setState(RequestState{Phase: Idle})
		return
	}

	now := c.opts.Now()
	if r.err != nil {
		kind := completion.KindOf(r.err)
		c.log.Warn("completion failed (", kind, "): ", completion.DetailOf(r.err))
		c.appendMessage(chat.NewErrorMessage(explain(r.err), now))
		c.setState(RequestState{Phase: Failed, Failure: kind})
		c.setState(RequestState{Phase: Idle})
		return
	}

	c.appendMessage(chat.NewAssistantMessage(r.text, now))
	c.setState(RequestState{Phase: Succeeded})
	if c.prefs.AutoSpeak {
		c.speak(r.text)
	}
	c.setState(RequestState{Phase: Idle})
}

// drainDeltas reports fragments still buffered when the reply lands. The
// completer sends every fragment before its reply, so none arrive later.
func (c *Controller) drainDeltas() {
	for {
		select {
		case d := <-c.deltas:
			if d.epoch == c.epoch {
				c.notify(Event{Kind: ReplyDelta, Text: d.text})
			}
		default:
			return
		}
	}
}

// ClearConversation resets the transcript to a single greeting. A pending
// request keeps running.
func (c *Controller) ClearConversation() {
	_ = c.do(func() {
		c.epoch++
		greeting := chat.NewGreeting(chat.ClearedGreeting, c.opts.Now())
		c.mu.Lock()
		c.transcript.Reset(greeting)
		c.mu.Unlock()
		c.notify(Event{Kind: TranscriptChanged, Message: greeting, Cleared: true})
	})
}

// SelectModel switches the model used for the next request. A premium model
// is shown as selected but never persisted or used; ErrPremiumGated is
// returned for it.
func (c *Controller) SelectModel(id string) error {
	var err error
	if e := c.do(func() { err = c.selectModel(id) }); e != nil {
		return e
	}
	return err
}

func (c *Controller) selectModel(id string) error {
	d, err := c.reg.Find(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrModelNotFound, id)
	}

	c.mu.Lock()
	c.selected = d
	c.mu.Unlock()

	if d.IsPremium {
		c.notify(Event{Kind: PreferencesChanged})
		return ErrPremiumGated
	}
	c.updatePrefs(func(p *preferences.Preferences) { p.SelectedModelID = d.ID })
	return nil
}

func (c *Controller) ToggleAutoSpeak() bool {
	var on bool
	_ = c.do(func() {
		c.updatePrefs(func(p *preferences.Preferences) { p.AutoSpeak = !p.AutoSpeak })
		on = c.prefs.AutoSpeak
	})
	return on
}

func (c *Controller) SetAutoSpeak(on bool) {
	_ = c.do(func() {
		c.updatePrefs(func(p *preferences.Preferences) { p.AutoSpeak = on })
	})
}

// SetVoiceSpeed stores v clamped to the supported range and returns the
// stored value.
func (c *Controller) SetVoiceSpeed(v float64) float64 {
	speed := preferences.ClampSpeed(v)
	_ = c.do(func() {
		c.updatePrefs(func(p *preferences.Preferences) { p.VoiceSpeed = speed })
	})
	return speed
}

func (c *Controller) updatePrefs(change func(*preferences.Preferences)) {
	c.mu.Lock()
	change(&c.prefs)
	prefs := c.prefs
	c.mu.Unlock()

	c.notify(Event{Kind: PreferencesChanged})
	c.save(prefs)
}

// save persists prefs. After the first failure the session keeps its
// preferences in memory only.
func (c *Controller) save(prefs preferences.Preferences) {
	if !c.persist {
		return
	}
	if err := c.store.Save(prefs); err != nil {
		c.persist = false
		c.log.Error("saving preferences failed, keeping them in memory: ", err)
		c.notify(Event{Kind: Notice, Text: "Your preferences could not be saved. Changes will last until you quit."})
	}
}

// SetInput replaces the pending input buffer.
func (c *Controller) SetInput(text string) {
	_ = c.do(func() { c.setInput(text) })
}

// ToggleCapture starts listening, or stops a capture in progress. Without a
// capture capability it reports a notice and returns
// ErrCapabilityUnavailable.
func (c *Controller) ToggleCapture() error {
	var err error
	if e := c.do(func() { err = c.toggleCapture() }); e != nil {
		return e
	}
	return err
}

func (c *Controller) toggleCapture() error {
	if c.speech == nil || !c.speech.Capabilities().Capture {
		c.notify(Event{Kind: Notice, Text: captureUnsupported})
		return ErrCapabilityUnavailable
	}
	if c.capturing {
		c.speech.StopCapture()
		return nil
	}
	if c.speech.StartCapture() {
		c.setCapturing(true)
	}
	return nil
}

func (c *Controller) setCapturing(on bool) {
	c.mu.Lock()
	changed := c.capturing != on
	c.capturing = on
	c.mu.Unlock()
	if changed {
		c.notify(Event{Kind: CaptureChanged, Active: on})
	}
}

func (c *Controller) setSpeaking(on bool) {
	c.mu.Lock()
	changed := c.speaking != on
	c.speaking = on
	c.mu.Unlock()
	if changed {
		c.notify(Event{Kind: PlaybackChanged, Active: on})
	}
}

// StopPlayback silences any speech in progress.
func (c *Controller) StopPlayback() {
	_ = c.do(func() {
		if c.speech != nil {
			c.speech.StopPlayback()
		}
		c.playbackOp = 0
		c.setSpeaking(false)
	})
}

// Speak reads the message with the given ID aloud.
func (c *Controller) Speak(messageID string) error {
	var err error
	if e := c.do(func() {
		m, ok := c.transcript.Find(messageID)
		if !ok {
			err = fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
			return
		}
		if c.speech == nil || !c.speech.Capabilities().Playback {
			err = ErrCapabilityUnavailable
			return
		}
		c.speak(m.Content)
	}); e != nil {
		return e
	}
	return err
}

func (c *Controller) speak(text string) {
	if c.speech == nil {
		return
	}
	op, ok := c.speech.Speak(text, c.prefs.VoiceSpeed)
	if !ok {
		c.log.Debug("nothing to speak")
		return
	}
	// events of the playback this one replaced no longer move the flag
	c.playbackOp = op
	c.setSpeaking(true)
}

func (c *Controller) handleSpeech(ev speech.Event) {
	switch ev.Kind {
	case speech.EventTranscript:
		c.setCapturing(false)
		c.setInput(ev.Text)
	case speech.EventCaptureError:
		c.setCapturing(false)
		c.log.Warn("capture failed: ", ev.Err)
		c.notify(Event{Kind: Notice, Text: "Speech recognition failed: " + ev.Err.Error()})
	case speech.EventCancelled:
		c.setCapturing(false)
	case speech.EventPlaybackStarted:
		if ev.Op == c.playbackOp {
			c.setSpeaking(true)
		}
	case speech.EventPlaybackEnded, speech.EventPlaybackError:
		if ev.Kind == speech.EventPlaybackError {
			c.log.Warn("playback failed: ", ev.Err)
			c.notify(Event{Kind: Notice, Text: "Speech playback failed: " + ev.Err.Error()})
		}
		if ev.Op == c.playbackOp {
			c.playbackOp = 0
			c.setSpeaking(false)
		}
	}
}

// Transcript returns a copy of the conversation.
func (c *Controller) Transcript() []chat.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcript.Messages()
}

func (c *Controller) State() RequestState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Preferences() preferences.Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// SelectedModel is the model shown as selected. It is premium only when the
// user picked a premium model that cannot be used.
func (c *Controller) SelectedModel() models.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

func (c *Controller) Models() []models.Descriptor {
	return c.reg.List()
}

func (c *Controller) Input() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.input
}

func (c *Controller) Capturing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capturing
}

func (c *Controller) Speaking() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speaking
}

func (c *Controller) Capabilities() speech.Capabilities {
	if c.speech == nil {
		return speech.Capabilities{}
	}
	return c.speech.Capabilities()
}
