package preferences

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bz888/cognix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/postgrest-go"
)

func newSupabaseStore(t *testing.T, h http.HandlerFunc) *SupabaseStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	db := postgrest.NewClient(srv.URL+"/rest/v1", "public", map[string]string{"apikey": "anon"})
	s := NewSupabaseStore(db, "user-1", registry(t))
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestSupabaseLoad(t *testing.T) {
	s := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/preferences", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`[{"selected_model":"ollama/llama3","auto_speak":false,"voice_speed":1.4}]`))
	})

	assert.Equal(t, Preferences{SelectedModelID: "ollama/llama3", AutoSpeak: false, VoiceSpeed: 1.4}, s.Load())
}

func TestSupabaseLoadFallsBack(t *testing.T) {
	reg := registry(t)

	empty := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	assert.Equal(t, Defaults(reg), empty.Load())

	failing := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"PGRST301","message":"JWT expired"}`))
	})
	assert.Equal(t, Defaults(reg), failing.Load())

	premium := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"selected_model":"openai/gpt-4","auto_speak":true,"voice_speed":7}]`))
	})
	assert.Equal(t, Preferences{SelectedModelID: models.DefaultID, AutoSpeak: true, VoiceSpeed: 2}, premium.Load())
}

func TestSupabaseSave(t *testing.T) {
	var got row
	s := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "user_id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, s.Save(Preferences{SelectedModelID: models.DefaultID, AutoSpeak: false, VoiceSpeed: 0.5}))
	assert.Equal(t, row{
		UserID:        "user-1",
		SelectedModel: models.DefaultID,
		AutoSpeak:     false,
		VoiceSpeed:    0.5,
		UpdatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, got)
}

func TestSupabaseSaveError(t *testing.T) {
	s := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"42501","message":"permission denied for table preferences"}`))
	})
	assert.ErrorContains(t, s.Save(Preferences{}), "permission denied")
}
