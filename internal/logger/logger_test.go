package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerBeforeInitDiscards(t *testing.T) {
	require.NoError(t, InitLogger(false, "", nil))
	l := NewLogger("quiet")
	assert.NotPanics(t, func() {
		l.Info("nothing to see")
		l.Errorf("still %s", "nothing")
	})
}

func TestLoggerDevWritesTaggedLinesToView(t *testing.T) {
	var view bytes.Buffer
	require.NoError(t, InitLogger(true, "", &view))
	t.Cleanup(func() { _ = InitLogger(false, "", nil) })

	NewLogger("session").Warn("save failed")

	out := view.String()
	assert.Contains(t, out, "[yellow]DEBUG")
	assert.Contains(t, out, "(session):")
	assert.Contains(t, out, "save failed[-]")
}

func TestLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(false, dir, nil))

	NewLogger("completion").Error("upstream returned ", 503)
	Close()

	files, err := filepath.Glob(filepath.Join(dir, "cognix_log_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
	assert.Equal(t, "error", record["level"])
	assert.Equal(t, "completion", record["tag"])
	assert.Equal(t, "upstream returned 503", record["message"])

	require.NoError(t, InitLogger(false, "", nil))
}

func TestLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(false, dir, nil))
	t.Cleanup(func() { _ = InitLogger(false, "", nil) })

	l := NewLogger("levels")
	l.Debug("hidden at info level")
	SetLevel("warn")
	l.Info("hidden at warn level")
	l.Warn("kept")
	Close()

	files, _ := filepath.Glob(filepath.Join(dir, "cognix_log_*.log"))
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "kept")
}

func TestTypesString(t *testing.T) {
	assert.Equal(t, "WARN", Warn.String())
	assert.Equal(t, "UNKNOWN", Types(42).String())
}
