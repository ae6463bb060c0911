package pathformat

import (
	"strings"

	"github.com/alanbriolat/gallery-archiver/config"
)

// A Sanitizer makes a rendered segment safe to use as a single path component.
type Sanitizer struct {
	// Restrict is the set of characters to replace. "/" and NUL are always replaced.
	Restrict string
	// Replace is what each restricted character becomes.
	Replace string
	// Strip is the set of characters removed from the end of each segment.
	Strip string
}

func DefaultSanitizer() Sanitizer {
	return Sanitizer{Restrict: "/", Replace: "_"}
}

// SanitizerFromConfig reads the path.restrict, path.replace and path.strip keys. The special value "windows" for
// path.restrict selects the characters Windows refuses in filenames.
func SanitizerFromConfig(cfg *config.Config) Sanitizer {
	s := Sanitizer{
		Restrict: cfg.GetString("path.restrict"),
		Replace:  cfg.GetString("path.replace"),
		Strip:    cfg.GetString("path.strip"),
	}
	if s.Restrict == "windows" {
		s.Restrict = `\/:*?"<>|`
		if !cfg.IsSet("path.strip") || s.Strip == "" {
			s.Strip = ". "
		}
	}
	return s
}

func (s Sanitizer) Clean(segment string) string {
	var b strings.Builder
	for _, r := range segment {
		if r == 0 || r == '/' || strings.ContainsRune(s.Restrict, r) {
			b.WriteString(s.Replace)
		} else {
			b.WriteRune(r)
		}
	}
	result := b.String()
	if s.Strip != "" {
		result = strings.TrimRight(result, s.Strip)
	}
	if result == "." || result == ".." {
		result = strings.Repeat("_", len(result))
	}
	return result
}
