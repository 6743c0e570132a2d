package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bz888/cognix/internal/completion"
	"github.com/bz888/cognix/internal/config"
	"github.com/bz888/cognix/internal/identity"
	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/models"
	"github.com/bz888/cognix/internal/preferences"
	"github.com/bz888/cognix/internal/session"
	"github.com/bz888/cognix/internal/speech"
	"github.com/bz888/cognix/internal/speech/google"
	"github.com/bz888/cognix/internal/speech/mic"
	"github.com/bz888/cognix/internal/speech/voice"
	"github.com/supabase-community/supabase-go"
)

const discoverTimeout = 3 * time.Second

// deps holds everything a session needs that outlives a single sign-in.
// wire only builds clients; discover does the network probing and logging
// once the logger is set up.
type deps struct {
	cfg      *config.Config
	registry *models.Registry
	router   *completion.Router
	ollama   *completion.OllamaClient
	supabase *supabase.Client
	log      *logger.Logger

	backends sync.Once
	rec      speech.Recognizer
	syn      speech.Synthesizer

	mu      sync.Mutex
	closers []func()
}

func wire(cfg *config.Config) (*deps, error) {
	d := &deps{cfg: cfg, log: logger.NewLogger("cmd")}

	reg := models.Builtin()
	d.router = completion.NewRouter()
	timeout := cfg.Session.Timeout
	rpm := cfg.Session.RequestsPerMinute

	gemini, err := completion.NewGeminiClient(completion.ClientConfig{
		BaseURL: cfg.Gemini.BaseURL, APIKey: cfg.Gemini.APIKey, Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	d.router.Register(models.ProviderGemini, completion.Throttle(gemini, rpm))

	openRouter, err := completion.NewOpenRouterClient(completion.ClientConfig{
		BaseURL: cfg.OpenRouter.BaseURL, APIKey: cfg.OpenRouter.APIKey, Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	d.router.Register(models.ProviderOpenRouter, completion.Throttle(openRouter, rpm))

	openAI, err := completion.NewOpenAIClient(completion.ClientConfig{
		BaseURL: cfg.OpenAI.BaseURL, APIKey: cfg.OpenAI.APIKey, Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	d.router.Register(models.ProviderOpenAI, completion.Throttle(openAI, rpm))

	if cfg.Ollama.Enabled {
		ollama, err := completion.NewOllamaClient(cfg.Ollama.Host, timeout)
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		d.router.Register(models.ProviderOllama, ollama)
		d.ollama = ollama
	}
	d.registry = reg

	if !cfg.Offline && cfg.Supabase.URL != "" && cfg.Supabase.AnonKey != "" {
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, nil)
		if err != nil {
			return nil, fmt.Errorf("supabase: %w", err)
		}
		d.supabase = client
	}
	return d, nil
}

func (d *deps) provider() identity.Provider {
	if d.supabase == nil {
		return identity.NewOffline()
	}
	return identity.NewSupabaseProvider(d.supabase)
}

// discover adds the models of a local Ollama daemon to the registry. It must
// run before the first session opens.
func (d *deps) discover(ctx context.Context) {
	if d.supabase == nil {
		d.log.Info("using offline identity")
	} else {
		d.log.Info("signing in with supabase at ", d.cfg.Supabase.URL)
	}
	if d.ollama == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()
	names, err := d.ollama.ModelNames(ctx)
	if err != nil {
		d.log.Warn("listing ollama models: ", err)
		return
	}
	reg, err := d.registry.With(models.Local(names...)...)
	if err != nil {
		d.log.Warn("adding ollama models: ", err)
		return
	}
	d.registry = reg
	d.log.Info("found ", len(names), " ollama models")
}

// newSpeech probes the microphone and the TTS engine once. Whatever is missing
// stays unavailable for every session.
func (d *deps) newSpeech() *speech.Adapter {
	d.backends.Do(d.probeSpeech)
	return speech.NewAdapter(d.rec, d.syn)
}

func (d *deps) probeSpeech() {
	if stt, err := google.New(google.Config{
		APIKey:   d.cfg.Speech.APIKey,
		Language: d.cfg.Speech.Language,
		Timeout:  d.cfg.Session.Timeout,
	}); err != nil {
		d.log.Warn("speech recognition disabled: ", err)
	} else if r, err := mic.New(mic.Config{
		SileroModelPath: d.cfg.Speech.SileroModelPath,
		MinVolume:       d.cfg.Speech.MinVolume,
		DeviceIndex:     d.cfg.Speech.DeviceIndex,
	}, stt); err != nil {
		d.log.Warn("speech capture disabled: ", err)
	} else {
		d.rec = r
		d.onClose(func() {
			if err := r.Close(); err != nil {
				d.log.Warn("closing microphone: ", err)
			}
		})
	}

	if s, err := voice.New(d.cfg.Speech.Voice); err != nil {
		d.log.Warn("speech playback disabled: ", err)
	} else {
		d.log.Info("speaking with ", s.Engine())
		d.syn = s
	}
}

func (d *deps) store(user identity.User) preferences.Store {
	switch {
	case user.Remote && d.cfg.Preferences.Remote && d.supabase != nil:
		return preferences.NewSupabaseStore(d.supabase, user.ID, d.registry)
	case d.cfg.Preferences.Path != "":
		return preferences.NewFileStore(d.cfg.Preferences.Path, d.registry)
	}
	return preferences.NewMemoryStore(d.registry)
}

func (d *deps) open(user identity.User, notify func(session.Event)) (*session.Controller, error) {
	ctl, err := session.New(session.Options{
		Registry:        d.registry,
		Completer:       d.router,
		Speech:          d.newSpeech(),
		Store:           d.store(user),
		IncludeGreeting: d.cfg.Session.IncludeGreeting,
		KeepStale:       !d.cfg.Session.DiscardStale,
		Stream:          d.cfg.Session.Stream,
		Notify:          notify,
	})
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return ctl, nil
}

func (d *deps) onClose(fn func()) {
	d.mu.Lock()
	d.closers = append(d.closers, fn)
	d.mu.Unlock()
}

func (d *deps) Close() {
	d.mu.Lock()
	closers := d.closers
	d.closers = nil
	d.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

func runUntilDone(ctx context.Context, ctl *session.Controller) error {
	err := ctl.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
