package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	// Keep config files from the developer's home out of the test.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())
	return NewLoaderWithViper(viper.New())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	loader := newTestLoader(t)

	cfg, err := loader.Load()
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Equal(t, want, *cfg)
	assert.Empty(t, loader.GetConfigFileUsed())
}

func TestLoad_ReadsFileInWorkingDirectory(t *testing.T) {
	loader := newTestLoader(t)

	content := `
log_level: debug
pipeline:
  parallel: true
  organizer:
    containment_threshold: 0.75
server:
  port: 9090
`
	require.NoError(t, os.WriteFile("chatocr.yaml", []byte(content), 0o600))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Pipeline.Parallel)
	assert.InDelta(t, 0.75, cfg.Pipeline.Organizer.ContainmentThreshold, 1e-9)
	assert.Equal(t, 9090, cfg.Server.Port)
	// untouched keys keep defaults
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Contains(t, loader.GetConfigFileUsed(), "chatocr.yaml")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	loader := newTestLoader(t)
	require.NoError(t, os.WriteFile("chatocr.yaml", []byte("server:\n  port: 9090\n"), 0o600))

	t.Setenv("CHATOCR_SERVER_PORT", "7070")
	t.Setenv("CHATOCR_PIPELINE_DETECTOR_CONFIDENCE_THRESHOLD", "0.6")

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.InDelta(t, 0.6, cfg.Pipeline.Detector.ConfidenceThreshold, 1e-9)
}

func TestLoad_TrustedProxies(t *testing.T) {
	loader := newTestLoader(t)
	require.NoError(t, os.WriteFile("chatocr.yaml", []byte("server:\n  trusted_proxies: [10.0.0.0/8, 192.0.2.1]\n"), 0o600))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)

	t.Setenv("CHATOCR_SERVER_TRUSTED_PROXIES", "172.16.0.0/12,127.0.0.1")
	cfg, err = newTestLoader(t).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"172.16.0.0/12", "127.0.0.1"}, cfg.Server.TrustedProxies)
}

func TestLoad_InvalidValueFailsValidation(t *testing.T) {
	loader := newTestLoader(t)
	t.Setenv("CHATOCR_PIPELINE_ORGANIZER_CONTAINMENT_THRESHOLD", "1.5")

	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithoutValidation()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, cfg.Pipeline.Organizer.ContainmentThreshold, 1e-9)
}

func TestLoadWithFile(t *testing.T) {
	loader := newTestLoader(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: text\n"), 0o600))

	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, path, loader.GetConfigFileUsed())
}

func TestLoadWithFile_Missing(t *testing.T) {
	loader := newTestLoader(t)
	_, err := loader.LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	loader := newTestLoader(t)
	require.NoError(t, os.WriteFile("chatocr.yaml", []byte("server: [unclosed\n"), 0o600))

	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	newTestLoader(t)
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(xdg, "chatocr"))
	assert.Equal(t, "/etc/chatocr", paths[len(paths)-1])
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
