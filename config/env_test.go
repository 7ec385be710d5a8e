package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFiles_MergesJSONThenDotEnv(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"tick_rate": 30, "event_debug": true, "event_log_path": "a.txt"}`), 0o644))
	require.NoError(t, os.WriteFile(envPath, []byte("# comment\nEVENT_LOG_PATH=\"b.txt\"\nbroken line\n"), 0o644))

	require.NoError(t, loadFromFiles(jsonPath, envPath))
	t.Cleanup(func() {
		mu.Lock()
		values = defaultValues()
		mu.Unlock()
	})

	assert.Equal(t, "30", get("TICK_RATE", ""))
	assert.Equal(t, "true", get("EVENT_DEBUG", ""))
	assert.Equal(t, "b.txt", get("EVENT_LOG_PATH", ""))
}

func TestLoadFromFiles_MissingFilesKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, loadFromFiles(filepath.Join(dir, "nope.json"), filepath.Join(dir, "nope.env")))
	t.Cleanup(func() {
		mu.Lock()
		values = defaultValues()
		mu.Unlock()
	})

	assert.Equal(t, defaultEventLogPath, get("EVENT_LOG_PATH", ""))
	assert.Equal(t, defaultDebugAddr, get("DEBUG_ADDR", ""))
}

func TestLoadFromFiles_BadJSON(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{not json`), 0o644))

	err := loadFromFiles(jsonPath, filepath.Join(dir, ".env"))
	assert.ErrorContains(t, err, "decode")
}

func TestTickRateAndFrameInterval(t *testing.T) {
	Set("TICK_RATE", "50")
	t.Cleanup(func() { Set("TICK_RATE", "60") })

	assert.Equal(t, 50.0, TickRate())
	assert.Equal(t, 20*time.Millisecond, FrameInterval())

	Set("TICK_RATE", "-3")
	assert.Equal(t, float64(defaultTickRate), TickRate())
}

func TestEventDebug(t *testing.T) {
	t.Cleanup(func() {
		Set("EVENT_DEBUG", "")
		Set("APP_ENV", defaultAppEnv)
	})

	Set("EVENT_DEBUG", "")
	Set("APP_ENV", "local")
	assert.True(t, EventDebug())

	Set("APP_ENV", "production")
	assert.False(t, EventDebug())

	Set("EVENT_DEBUG", "true")
	assert.True(t, EventDebug())

	Set("EVENT_DEBUG", "nonsense")
	assert.False(t, EventDebug())
}
