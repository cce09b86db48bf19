package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"PADCHAT_ENDPOINT",
		"PADCHAT_TOKEN",
		"PADCHAT_CACHE_DIR",
		"ENVIRONMENT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// setMinimalEnv sets the minimum env vars for a successful load.
func setMinimalEnv(t *testing.T, cacheDir string) {
	t.Helper()
	t.Setenv("PADCHAT_TOKEN", "padchat-token-123")
	t.Setenv("PADCHAT_CACHE_DIR", cacheDir)
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	setMinimalEnv(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "padchat-token-123", cfg.Token)
	assert.Equal(t, dir, cfg.CacheDir)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_MissingToken(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PADCHAT_CACHE_DIR", t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PADCHAT_TOKEN")
}

func TestLoad_EndpointOverride(t *testing.T) {
	clearConfigEnv(t)
	setMinimalEnv(t, t.TempDir())
	t.Setenv("PADCHAT_ENDPOINT", "ws://gateway.internal:8788/wx")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://gateway.internal:8788/wx", cfg.Endpoint)
}

// --- CacheDir resolution ---

func TestLoad_ResolvesRelativeCacheDir(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PADCHAT_TOKEN", "padchat-token-123")
	t.Setenv("PADCHAT_CACHE_DIR", "relative/path")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.CacheDir), "CacheDir should be absolute, got: %s", cfg.CacheDir)
	assert.Contains(t, cfg.CacheDir, filepath.Join("relative", "path"))
}

func TestLoad_AbsoluteCacheDirUnchanged(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	setMinimalEnv(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.CacheDir)
}

func TestLoad_DefaultCacheDirUnderHome(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PADCHAT_TOKEN", "padchat-token-123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.CacheDir))
	assert.Contains(t, cfg.CacheDir, ".padchat")
}

// --- IsProduction ---

func TestIsProduction_True(t *testing.T) {
	cfg := &Config{Environment: "production"}
	assert.True(t, cfg.IsProduction())
}

func TestIsProduction_False(t *testing.T) {
	cfg := &Config{Environment: "development"}
	assert.False(t, cfg.IsProduction())
}

// --- validate ---

func TestValidate_TokenPresent(t *testing.T) {
	cfg := &Config{Token: "padchat-token-123"}
	assert.NoError(t, cfg.validate())
}

func TestValidate_TokenMissing(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.validate())
}
