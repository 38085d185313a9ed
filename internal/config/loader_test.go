package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_DefaultsWithoutFiles(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.HTTP.Port)
	assert.Equal(t, "gemini", cfg.LLM.DefaultProvider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Providers["gemini"].Model)
	assert.Equal(t, "en-US-ken", cfg.Voice.VoiceID)
	assert.Equal(t, "MP3", cfg.Voice.Format)
	assert.Equal(t, 5, cfg.Voice.MinTextLength)
	assert.Equal(t, "Sanction_Letter.pdf", cfg.Documents.DownloadName)
	assert.Equal(t, 30*time.Second, cfg.Speech.Timeout)
	assert.False(t, cfg.Features.Agents.StrictLabels)
	assert.True(t, cfg.Features.Agents.JSONResponse)
}

func TestLoadFrom_ExpandsPlaceholdersAndMergesEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "staging")
	t.Setenv("FINCORE_TEST_PORT", "8088")

	base := []byte(`
server:
  http:
    port: ${FINCORE_TEST_PORT:9000}
documents:
  dir: ${FINCORE_TEST_UNSET:/tmp/letters}
`)
	staging := []byte(`
features:
  agents:
    strict_labels: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), base, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yaml"), staging, 0o644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.HTTP.Port)
	assert.Equal(t, "/tmp/letters", cfg.Documents.Dir)
	assert.True(t, cfg.Features.Agents.StrictLabels)
}

func TestLoadFrom_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("MURF_API_KEY", "murf-key")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "dg-key", cfg.Speech.APIKey)
	assert.Equal(t, "murf-key", cfg.Voice.APIKey)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FINCORE_EXPAND_SET", "value")

	assert.Equal(t, "a=value", expandEnv("a=${FINCORE_EXPAND_SET}"))
	assert.Equal(t, "b=fallback", expandEnv("b=${FINCORE_EXPAND_UNSET:fallback}"))
	assert.Equal(t, "c=", expandEnv("c=${FINCORE_EXPAND_UNSET}"))
}
