// Package voice speaks text through a command line speech engine.
package voice

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/bz888/cognix/internal/logger"
)

var ErrNoEngine = errors.New("no text-to-speech engine found on PATH")

// Engine describes how to drive one text-to-speech executable.
type Engine struct {
	Name string
	// BaseWPM is the engine's normal speaking rate in words per minute.
	BaseWPM int
	// Args builds the arguments for speaking text at wpm words per minute
	// with an optional voice.
	Args func(text string, wpm int, voice string) []string
}

var (
	say = Engine{Name: "say", BaseWPM: 175, Args: func(text string, wpm int, voice string) []string {
		args := []string{"-r", strconv.Itoa(wpm)}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		return append(args, "--", text)
	}}
	espeak = func(name string) Engine {
		return Engine{Name: name, BaseWPM: 175, Args: func(text string, wpm int, voice string) []string {
			args := []string{"-s", strconv.Itoa(wpm)}
			if voice != "" {
				args = append(args, "-v", voice)
			}
			return append(args, "--", text)
		}}
	}
	spdSay = Engine{Name: "spd-say", BaseWPM: 0, Args: func(text string, wpm int, voice string) []string {
		// spd-say takes a relative rate in [-100, 100] and waits with -w
		args := []string{"-w", "-r", strconv.Itoa(wpm)}
		if voice != "" {
			args = append(args, "-t", voice)
		}
		return append(args, "--", text)
	}}
)

// Candidates lists the engines tried on this platform, most preferred first.
func Candidates() []Engine {
	if runtime.GOOS == "darwin" {
		return []Engine{say}
	}
	return []Engine{espeak("espeak-ng"), espeak("espeak"), spdSay}
}

type Synthesizer struct {
	engine Engine
	path   string
	voice  string
	log    *logger.Logger
}

// New picks the first engine from candidates that is installed.
func New(voice string, candidates ...Engine) (*Synthesizer, error) {
	if len(candidates) == 0 {
		candidates = Candidates()
	}
	for _, e := range candidates {
		path, err := exec.LookPath(e.Name)
		if err != nil {
			continue
		}
		return &Synthesizer{engine: e, path: path, voice: voice, log: logger.NewLogger("voice")}, nil
	}
	return nil, ErrNoEngine
}

func (s *Synthesizer) Engine() string {
	return s.engine.Name
}

// rate converts a speed multiplier to the engine's own unit.
func (s *Synthesizer) rate(multiplier float64) int {
	if s.engine.BaseWPM == 0 {
		r := int((multiplier - 1) * 100)
		return max(-100, min(100, r))
	}
	return int(float64(s.engine.BaseWPM) * multiplier)
}

// Speak runs the engine and waits for it to finish. Cancelling ctx kills
// the engine process.
func (s *Synthesizer) Speak(ctx context.Context, text string, multiplier float64) error {
	cmd := exec.CommandContext(ctx, s.path, s.engine.Args(text, s.rate(multiplier), s.voice)...)
	s.log.Debug("speaking ", len(text), " characters with ", s.engine.Name)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", s.engine.Name, err, out)
	}
	return nil
}
