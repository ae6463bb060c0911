// Package pathformat turns message metadata into output paths, using text/template formats for each directory
// segment and for the filename.
package pathformat

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

var ErrEmptyFilename = errors.New("empty filename")

// Funcs are available in every format. The value being transformed is always the last argument, so they can be used
// in pipelines, e.g. `{{.title | maxlen 40 | lower}}`.
var Funcs = template.FuncMap{
	"lower":    func(v any) string { return strings.ToLower(str(v)) },
	"upper":    func(v any) string { return strings.ToUpper(str(v)) },
	"title":    func(v any) string { return title(str(v)) },
	"trim":     func(v any) string { return strings.TrimSpace(str(v)) },
	"default":  defaultValue,
	"join":     join,
	"replace":  func(old, new string, v any) string { return strings.ReplaceAll(str(v), old, new) },
	"maxlen":   maxlen,
	"optional": optional,
}

func str(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func title(s string) string {
	var b strings.Builder
	prev := ' '
	for _, r := range s {
		if unicode.IsSpace(prev) || prev == '-' || prev == '_' {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

func defaultValue(def string, v any) string {
	if s := str(v); s != "" {
		return s
	}
	return def
}

func join(sep string, v any) string {
	switch v := v.(type) {
	case []string:
		return strings.Join(v, sep)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = str(item)
		}
		return strings.Join(parts, sep)
	default:
		return str(v)
	}
}

func maxlen(n int, v any) string {
	s := str(v)
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// optional wraps a non-empty value in prefix and suffix, and renders an empty value as nothing.
func optional(prefix, suffix string, v any) string {
	if s := str(v); s != "" {
		return prefix + s + suffix
	}
	return ""
}

// Parse compiles a single format. Referencing a missing key with `{{.key}}` is an error at render time; use
// `{{index . "key"}}` for keys that may be absent.
func Parse(name string, format string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(Funcs).Option("missingkey=error").Parse(format)
	if err != nil {
		return nil, fmt.Errorf("invalid format %q: %w", format, err)
	}
	return tmpl, nil
}

// Render executes tmpl against metadata.
func Render(tmpl *template.Template, metadata map[string]any) (string, error) {
	builder := strings.Builder{}
	if err := tmpl.Execute(&builder, metadata); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// A PathFormat builds the paths for one job: SetDirectory selects the current directory, and Build gives the path of
// a file inside it.
type PathFormat struct {
	base      string
	directory []*template.Template
	filename  *template.Template
	sanitizer Sanitizer
	current   string
}

func New(base string, directoryFmt []string, filenameFmt string, sanitizer Sanitizer) (*PathFormat, error) {
	p := &PathFormat{
		base:      base,
		sanitizer: sanitizer,
		current:   base,
	}
	for i, format := range directoryFmt {
		tmpl, err := Parse(fmt.Sprintf("directory[%d]", i), format)
		if err != nil {
			return nil, err
		}
		p.directory = append(p.directory, tmpl)
	}
	tmpl, err := Parse("filename", filenameFmt)
	if err != nil {
		return nil, err
	}
	p.filename = tmpl
	return p, nil
}

// Base is the directory all output goes under.
func (p *PathFormat) Base() string {
	return p.base
}

// Directory is the directory selected by the last SetDirectory, or Base.
func (p *PathFormat) Directory() string {
	return p.current
}

// SetDirectory renders each directory segment, sanitizes it, joins the result under Base and creates it. Creating a
// directory that exists is not an error.
func (p *PathFormat) SetDirectory(metadata map[string]any) (string, error) {
	dir, err := p.RenderDirectory(metadata)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	p.current = dir
	return dir, nil
}

// RenderDirectory is SetDirectory without touching the filesystem or the current directory.
func (p *PathFormat) RenderDirectory(metadata map[string]any) (string, error) {
	segments := make([]string, 0, len(p.directory)+1)
	segments = append(segments, p.base)
	for _, tmpl := range p.directory {
		s, err := Render(tmpl, metadata)
		if err != nil {
			return "", fmt.Errorf("failed to render directory: %w", err)
		}
		if s = p.sanitizer.Clean(s); s != "" {
			segments = append(segments, s)
		}
	}
	return filepath.Join(segments...), nil
}

// Build renders the filename for metadata and joins it with the current directory.
func (p *PathFormat) Build(metadata map[string]any) (string, error) {
	name, err := Render(p.filename, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to render filename: %w", err)
	}
	name = p.sanitizer.Clean(name)
	if name == "" {
		return "", ErrEmptyFilename
	}
	return filepath.Join(p.current, name), nil
}

// Exists reports whether something is already at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
