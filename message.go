package gallery_archiver

import (
	"fmt"
	"maps"
	"strconv"
)

// SupportedVersion is the only message protocol version a Job understands.
const SupportedVersion = 1

// Reserved metadata keys, not used for path formatting.
const (
	KeyExtractor   = "_extractor"
	KeyHTTPHeaders = "_http_headers"
	KeyCategory    = "category"
	KeySubcategory = "subcategory"
	KeyFilename    = "filename"
	KeyExtension   = "extension"
)

// A Message is one unit of the stream an Extractor produces: Version, Directory, URL or Queue.
type Message interface {
	isMessage()
}

// Version announces the protocol version, and must be the first message if present.
type Version struct {
	Version int
}

// Directory sets the metadata used to compute the output directory for all following URL messages.
type Directory struct {
	Metadata Metadata
}

// URL is one downloadable resource.
type URL struct {
	URL      string
	Metadata Metadata
}

// Queue is a URL to be resolved and processed as a new job, instead of being downloaded.
type Queue struct {
	URL      string
	Metadata Metadata
}

func (Version) isMessage()   {}
func (Directory) isMessage() {}
func (URL) isMessage()       {}
func (Queue) isMessage()     {}

func (m Version) String() string {
	return fmt.Sprintf("Version(%d)", m.Version)
}

func (m Directory) String() string {
	return fmt.Sprintf("Directory(%v)", map[string]any(m.Metadata))
}

func (m URL) String() string {
	return fmt.Sprintf("URL(%s)", m.URL)
}

func (m Queue) String() string {
	return fmt.Sprintf("Queue(%s)", m.URL)
}

// Metadata is the open set of fields threaded through messages. Keys starting with "_" are for the pipeline itself.
type Metadata map[string]any

// Clone returns a shallow copy, never nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	return maps.Clone(m)
}

// Merge returns a copy of m with other's entries on top.
func (m Metadata) Merge(other Metadata) Metadata {
	result := m.Clone()
	maps.Copy(result, other)
	return result
}

func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// String returns the value as a string, or "" if missing or nil.
func (m Metadata) String(key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value as an int, or 0 if missing or not numeric.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Extractor returns the name of the extractor a Queue message is meant for, if any. The hint may be given as a name
// ("category" or "category:subcategory") or as a *Descriptor.
func (m Metadata) Extractor() string {
	switch v := m[KeyExtractor].(type) {
	case string:
		return v
	case *Descriptor:
		return v.Name()
	default:
		return ""
	}
}

// Headers returns extra HTTP headers requested for a URL message.
func (m Metadata) Headers() map[string]string {
	switch v := m[KeyHTTPHeaders].(type) {
	case map[string]string:
		return v
	case map[string]any:
		headers := make(map[string]string, len(v))
		for key, value := range v {
			headers[key] = fmt.Sprint(value)
		}
		return headers
	default:
		return nil
	}
}
