package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps user and working-directory config files out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Browser.Name, "browser must never be defaulted")
	assert.False(t, cfg.Browser.Remote)
	assert.False(t, cfg.Browser.Grid)
	assert.Nil(t, cfg.Browser.Marionette, "marionette must stay unset")
	assert.Equal(t, FilterConfig{}, cfg.Filter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, DefaultConfig().Logging, cfg.Logging)
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("ADMIT_BROWSER_NAME", "firefox")
	t.Setenv("ADMIT_BROWSER_GRID", "true")
	t.Setenv("ADMIT_BROWSER_MARIONETTE", "false")
	t.Setenv("ADMIT_FILTER_ONLY_RUN", "LoginTest,LogoutTest")
	t.Setenv("ADMIT_FILTER_IGNORED_ONLY", "true")
	t.Setenv("ADMIT_MANIFEST", "/tmp/tests.yaml")
	t.Setenv("ADMIT_AUDIT_DSN", "sqlite::memory:")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "firefox", cfg.Browser.Name)
	assert.True(t, cfg.Browser.Grid)
	require.NotNil(t, cfg.Browser.Marionette)
	assert.False(t, *cfg.Browser.Marionette)
	assert.Equal(t, "LoginTest,LogoutTest", cfg.Filter.OnlyRun)
	assert.True(t, cfg.Filter.IgnoredOnly)
	assert.Equal(t, "/tmp/tests.yaml", cfg.Manifest)
	assert.Equal(t, "sqlite::memory:", cfg.Audit.DSN)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
browser:
  name: chrome
  remote: true
  marionette: true
filter:
  ignore_class: SlowTest
  ignore_method: testUpload
manifest: tests.yaml
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "chrome", cfg.Browser.Name)
	assert.True(t, cfg.Browser.Remote)
	require.NotNil(t, cfg.Browser.Marionette)
	assert.True(t, *cfg.Browser.Marionette)
	assert.Equal(t, "SlowTest", cfg.Filter.IgnoreClass)
	assert.Equal(t, "testUpload", cfg.Filter.IgnoreMethod)
	assert.Equal(t, "tests.yaml", cfg.Manifest)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "browser:\n  name: chrome\nfilter:\n  only_run: A\n")
	t.Setenv("ADMIT_BROWSER_NAME", "edge")
	t.Setenv("ADMIT_FILTER_ONLY_RUN", "B")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "edge", cfg.Browser.Name)
	assert.Equal(t, "B", cfg.Filter.OnlyRun)
}

func TestLoad_DiscoversWorkingDirectoryFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("admit.yaml", []byte("browser:\n  name: safari\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "safari", cfg.Browser.Name)
}

func TestLoad_MalformedFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "browser: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
}
