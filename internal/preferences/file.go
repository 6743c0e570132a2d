package preferences

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/models"
)

// fileFormat uses pointers so keys missing from the file keep their defaults.
type fileFormat struct {
	SelectedModel *string  `toml:"selected_model"`
	AutoSpeak     *bool    `toml:"auto_speak"`
	VoiceSpeed    *float64 `toml:"voice_speed"`
}

// FileStore keeps preferences in a TOML file.
type FileStore struct {
	path string
	reg  *models.Registry
	log  *logger.Logger
}

func NewFileStore(path string, reg *models.Registry) *FileStore {
	return &FileStore{path: path, reg: reg, log: logger.NewLogger("preferences")}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() Preferences {
	prefs := Defaults(s.reg)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return prefs
	}
	if err != nil {
		s.log.Warn("reading ", s.path, ": ", err)
		return prefs
	}

	var f fileFormat
	if err := toml.Unmarshal(data, &f); err != nil {
		s.log.Warn("ignoring invalid preferences file ", s.path, ": ", err)
		return prefs
	}
	if f.SelectedModel != nil {
		prefs.SelectedModelID = *f.SelectedModel
	}
	if f.AutoSpeak != nil {
		prefs.AutoSpeak = *f.AutoSpeak
	}
	if f.VoiceSpeed != nil {
		prefs.VoiceSpeed = *f.VoiceSpeed
	}
	return prefs.Sanitize(s.reg)
}

// Save writes the file atomically through a temporary file in the same
// directory.
func (s *FileStore) Save(p Preferences) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".preferences-*.toml")
	if err != nil {
		return fmt.Errorf("create temporary preferences file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace preferences file: %w", err)
	}
	return nil
}
