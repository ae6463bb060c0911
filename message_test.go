package gallery_archiver

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestMetadataClone(t *testing.T) {
	assert := assert_.New(t)

	var nilMeta Metadata
	clone := nilMeta.Clone()
	assert.NotNil(clone)

	m := Metadata{"id": 1}
	clone = m.Clone()
	clone["id"] = 2
	assert.Equal(1, m["id"])

	merged := m.Merge(Metadata{"title": "x"})
	assert.Equal(Metadata{"id": 1, "title": "x"}, merged)
	assert.False(m.Has("title"))
}

func TestMetadataAccessors(t *testing.T) {
	assert := assert_.New(t)

	m := Metadata{"s": "text", "n": 42, "f": 3.0, "ns": "17", "nil": nil}
	assert.Equal("text", m.String("s"))
	assert.Equal("42", m.String("n"))
	assert.Equal("", m.String("nil"))
	assert.Equal("", m.String("missing"))
	assert.Equal(42, m.Int("n"))
	assert.Equal(3, m.Int("f"))
	assert.Equal(17, m.Int("ns"))
	assert.Equal(0, m.Int("s"))
}

func TestMetadataExtractorHint(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("", Metadata{}.Extractor())
	assert.Equal("feed", Metadata{KeyExtractor: "feed"}.Extractor())
	d := &Descriptor{Category: "telegraph", Subcategory: "gallery"}
	assert.Equal("telegraph:gallery", Metadata{KeyExtractor: d}.Extractor())
}

func TestMetadataHeaders(t *testing.T) {
	assert := assert_.New(t)

	assert.Nil(Metadata{}.Headers())
	assert.Equal(map[string]string{"Referer": "https://a"}, Metadata{KeyHTTPHeaders: map[string]string{"Referer": "https://a"}}.Headers())
	assert.Equal(map[string]string{"X-N": "1"}, Metadata{KeyHTTPHeaders: map[string]any{"X-N": 1}}.Headers())
}
