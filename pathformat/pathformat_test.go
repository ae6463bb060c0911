package pathformat

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	"github.com/alanbriolat/gallery-archiver/config"
)

func TestFuncs(t *testing.T) {
	assert := assert_.New(t)
	cases := []struct {
		format   string
		expected string
	}{
		{`{{.title | lower}}`, "hello world"},
		{`{{.title | upper}}`, "HELLO WORLD"},
		{`{{"some thing" | title}}`, "Some Thing"},
		{`{{.padded | trim}}`, "x"},
		{`{{index . "missing" | default "none"}}`, "none"},
		{`{{.tags | join ", "}}`, "a, b"},
		{`{{.title | replace " " "_"}}`, "Hello_World"},
		{`{{.title | maxlen 5}}`, "Hello"},
		{`{{.id | optional "[" "]"}}`, "[7]"},
		{`{{index . "missing" | optional "[" "]"}}`, ""},
	}
	meta := map[string]any{"title": "Hello World", "padded": "  x ", "tags": []any{"a", "b"}, "id": 7}
	for _, c := range cases {
		t.Run(c.format, func(t *testing.T) {
			tmpl, err := Parse("test", c.format)
			require_.NoError(t, err)
			result, err := Render(tmpl, meta)
			assert.NoError(err)
			assert.Equal(c.expected, result)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("bad", "{{.unclosed")
	assert_.Error(t, err)

	tmpl, err := Parse("missing", "{{.missing}}")
	require_.NoError(t, err)
	_, err = Render(tmpl, map[string]any{})
	assert_.Error(t, err)
}

func TestSanitizer(t *testing.T) {
	assert := assert_.New(t)

	s := DefaultSanitizer()
	assert.Equal("a_b", s.Clean("a/b"))
	assert.Equal("a_b", s.Clean("a\x00b"))
	assert.Equal(`a:b?`, s.Clean(`a:b?`))
	assert.Equal("__", s.Clean(".."))
	assert.Equal("_", s.Clean("."))

	w := Sanitizer{Restrict: `\/:*?"<>|`, Replace: "-", Strip: ". "}
	assert.Equal("a-b-c", w.Clean(`a:b?c`))
	assert.Equal("name", w.Clean("name. "))
}

func TestSanitizerFromConfig(t *testing.T) {
	assert := assert_.New(t)

	s := SanitizerFromConfig(config.New())
	assert.Equal(DefaultSanitizer(), s)

	cfg := config.New()
	cfg.Set("path.restrict", "windows")
	s = SanitizerFromConfig(cfg)
	assert.Equal(`\/:*?"<>|`, s.Restrict)
	assert.Equal(". ", s.Strip)
}

func TestPathFormat(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	base := t.TempDir()

	p, err := New(base, []string{"{{.category}}", "{{.id}} {{.title}}"}, "{{.num}}.{{.extension}}", DefaultSanitizer())
	require.NoError(err)
	assert.Equal(base, p.Directory())

	meta := map[string]any{"category": "site", "id": 12, "title": "a/b", "num": 1, "extension": "jpg"}
	dir, err := p.SetDirectory(meta)
	require.NoError(err)
	assert.Equal(filepath.Join(base, "site", "12 a_b"), dir)
	assert.DirExists(dir)

	// Idempotent.
	_, err = p.SetDirectory(meta)
	assert.NoError(err)

	path, err := p.Build(meta)
	require.NoError(err)
	assert.Equal(filepath.Join(dir, "1.jpg"), path)
	assert.False(Exists(path))
	require.NoError(os.WriteFile(path, []byte("x"), 0644))
	assert.True(Exists(path))
}

func TestPathFormat_Errors(t *testing.T) {
	assert := assert_.New(t)
	base := t.TempDir()

	_, err := New(base, []string{"{{"}, "x", DefaultSanitizer())
	assert.Error(err)

	p, err := New(base, []string{"{{.missing}}"}, "{{index . \"name\" | default \"\"}}", DefaultSanitizer())
	assert.NoError(err)
	_, err = p.SetDirectory(map[string]any{})
	assert.Error(err)
	assert.Equal(base, p.Directory())

	_, err = p.Build(map[string]any{})
	assert.ErrorIs(err, ErrEmptyFilename)
}
