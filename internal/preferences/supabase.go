package preferences

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/models"
	"github.com/supabase-community/postgrest-go"
)

const Table = "preferences"

// Querier is satisfied by both *supabase.Client and *postgrest.Client.
type Querier interface {
	From(table string) *postgrest.QueryBuilder
}

type row struct {
	UserID        string    `json:"user_id"`
	SelectedModel string    `json:"selected_model"`
	AutoSpeak     bool      `json:"auto_speak"`
	VoiceSpeed    float64   `json:"voice_speed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SupabaseStore keeps one row per user in the preferences table.
type SupabaseStore struct {
	db     Querier
	userID string
	reg    *models.Registry
	now    func() time.Time
	log    *logger.Logger
}

func NewSupabaseStore(db Querier, userID string, reg *models.Registry) *SupabaseStore {
	return &SupabaseStore{db: db, userID: userID, reg: reg, now: time.Now, log: logger.NewLogger("preferences")}
}

func (s *SupabaseStore) Load() Preferences {
	var rows []row
	_, err := s.db.From(Table).
		Select("selected_model,auto_speak,voice_speed", "", false).
		Eq("user_id", s.userID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		s.log.Warn("loading preferences for ", s.userID, ": ", err)
		return Defaults(s.reg)
	}
	if len(rows) == 0 {
		return Defaults(s.reg)
	}
	return Preferences{
		SelectedModelID: rows[0].SelectedModel,
		AutoSpeak:       rows[0].AutoSpeak,
		VoiceSpeed:      rows[0].VoiceSpeed,
	}.Sanitize(s.reg)
}

func (s *SupabaseStore) Save(p Preferences) error {
	r := row{
		UserID:        s.userID,
		SelectedModel: p.SelectedModelID,
		AutoSpeak:     p.AutoSpeak,
		VoiceSpeed:    p.VoiceSpeed,
		UpdatedAt:     s.now().UTC(),
	}
	if _, _, err := s.db.From(Table).Upsert(r, "user_id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("save preferences for %s: %w", s.userID, err)
	}
	s.log.Debug("saved preferences for ", s.userID, ": model ", p.SelectedModelID, " speed ", strconv.FormatFloat(p.VoiceSpeed, 'f', 2, 64))
	return nil
}
