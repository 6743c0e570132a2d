// Package preferences persists the per-user settings of a chat session: the
// selected model, automatic read-aloud and the read-aloud speed.
package preferences

import (
	"math"

	"github.com/bz888/cognix/internal/models"
)

const (
	MinVoiceSpeed     = 0.5
	MaxVoiceSpeed     = 2.0
	DefaultVoiceSpeed = 1.0
)

type Preferences struct {
	SelectedModelID string  `json:"selected_model" toml:"selected_model"`
	AutoSpeak       bool    `json:"auto_speak" toml:"auto_speak"`
	VoiceSpeed      float64 `json:"voice_speed" toml:"voice_speed"`
}

// Store loads and saves preferences. Load never fails: missing or invalid
// data yields defaults.
type Store interface {
	Load() Preferences
	Save(Preferences) error
}

func Defaults(reg *models.Registry) Preferences {
	return Preferences{
		SelectedModelID: reg.Default().ID,
		AutoSpeak:       true,
		VoiceSpeed:      DefaultVoiceSpeed,
	}
}

// ClampSpeed limits v to [MinVoiceSpeed, MaxVoiceSpeed]. NaN becomes the
// default speed.
func ClampSpeed(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultVoiceSpeed
	}
	return math.Max(MinVoiceSpeed, math.Min(MaxVoiceSpeed, v))
}

// Sanitize replaces a model that is unknown or premium with the registry
// default and clamps the voice speed.
func (p Preferences) Sanitize(reg *models.Registry) Preferences {
	if !reg.Usable(p.SelectedModelID) {
		p.SelectedModelID = reg.Default().ID
	}
	p.VoiceSpeed = ClampSpeed(p.VoiceSpeed)
	return p
}

// MemoryStore keeps preferences in process.
type MemoryStore struct {
	reg   *models.Registry
	prefs *Preferences
	// Err, when set, is returned by Save.
	Err   error
	Saves int
}

func NewMemoryStore(reg *models.Registry) *MemoryStore {
	return &MemoryStore{reg: reg}
}

func (m *MemoryStore) Load() Preferences {
	if m.prefs == nil {
		return Defaults(m.reg)
	}
	return m.prefs.Sanitize(m.reg)
}

func (m *MemoryStore) Save(p Preferences) error {
	m.Saves++
	if m.Err != nil {
		return m.Err
	}
	m.prefs = &p
	return nil
}
