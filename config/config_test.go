package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

const testConfig = `
general:
  destination: /srv/archive
  max-depth: 3
zeta:
  regex: "^https?://zeta\\.example/.+"
  regex-old: "^https?://old\\.zeta\\.example/.+"
  destination: /srv/zeta
alpha:
  regex:
    - "^https?://alpha\\.example/a/"
    - "^https?://alpha\\.example/b/"
  not-a-regex: "ignored"
extractor:
  directory: ["{{.category}}"]
  alpha:
    filename: "{{.id}}.{{.extension}}"
    gallery:
      directory: ["{{.category}}", "{{.gallery}}"]
downloader:
  http:
    retries: 7
`

func TestParse(t *testing.T) {
	assert := assert_.New(t)
	cfg, err := Parse([]byte(testConfig))
	require_.NoError(t, err)

	assert.Equal("/srv/archive", cfg.Destination())
	assert.Equal(3, cfg.GetInt("general.max-depth"))
	assert.Equal(7, cfg.GetInt("downloader.http.retries"))
	assert.Equal(2, cfg.GetInt("downloader.ftp.retries"))
	assert.Equal(30*time.Second, cfg.GetDuration("downloader.http.timeout"))
}

func TestRegexEntriesKeepDeclarationOrder(t *testing.T) {
	cfg, err := Parse([]byte(testConfig))
	require_.NoError(t, err)

	assert_.Equal(t, []RegexEntry{
		{Category: "zeta", Key: "regex", Pattern: `^https?://zeta\.example/.+`},
		{Category: "zeta", Key: "regex-old", Pattern: `^https?://old\.zeta\.example/.+`},
		{Category: "alpha", Key: "regex", Pattern: `^https?://alpha\.example/a/`},
		{Category: "alpha", Key: "regex", Pattern: `^https?://alpha\.example/b/`},
	}, cfg.RegexEntries())
}

func TestInterpolate(t *testing.T) {
	assert := assert_.New(t)
	cfg, err := Parse([]byte(testConfig))
	require_.NoError(t, err)

	path := []string{"extractor", "alpha", "gallery"}
	assert.Equal([]string{"{{.category}}", "{{.gallery}}"}, cfg.InterpolateStrings(path, "directory", nil))
	assert.Equal("{{.id}}.{{.extension}}", cfg.InterpolateString(path, "filename", "default"))

	path = []string{"extractor", "beta", "thread"}
	assert.Equal([]string{"{{.category}}"}, cfg.InterpolateStrings(path, "directory", nil))
	assert.Equal("default", cfg.InterpolateString(path, "filename", "default"))

	_, ok := cfg.Interpolate([]string{"extractor", "beta"}, "missing")
	assert.False(ok)
}

func TestDefaults(t *testing.T) {
	assert := assert_.New(t)
	cfg := New()
	assert.Equal(DefaultDestination, cfg.Destination())
	assert.Equal("manager", cfg.GetString("downloader.scope"))
	assert.Empty(cfg.RegexEntries())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GALLERY_GENERAL_DESTINATION", "/from/env")
	cfg, err := Parse([]byte(testConfig))
	require_.NoError(t, err)
	assert_.Equal(t, "/from/env", cfg.Destination())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require_.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	cfg, err := Load(path)
	require_.NoError(t, err)
	assert_.Len(t, cfg.RegexEntries(), 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert_.Error(t, err)

	_, err = Parse([]byte("general: [unclosed"))
	assert_.Error(t, err)
}

func TestLoadDefaultWithoutFiles(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadDefault()
	require_.NoError(t, err)
	assert_.Equal(t, DefaultDestination, cfg.Destination())
}
