package directlink

import (
	"context"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

func TestPattern(t *testing.T) {
	r := gallery_archiver.NewRegistry()
	r.MustRegister(Descriptor)

	matching := []string{
		"https://example.com/a/b/photo.jpg",
		"http://cdn.example.org/x.PNG?w=100",
		"https://example.com/v/clip.webm#t=10",
	}
	for _, u := range matching {
		assert_.NotNil(t, r.Find(u), u)
	}
	notMatching := []string{
		"https://example.com/page.html",
		"https://example.com/",
		"ftp://example.com/photo.jpg",
	}
	for _, u := range notMatching {
		assert_.Nil(t, r.Find(u), u)
	}
}

func TestItems(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	r := gallery_archiver.NewRegistry()
	r.MustRegister(Descriptor)

	ex, match, err := r.Resolve("https://Example.com/albums/one/My%20Photo.JPG?size=l", nil)
	require.NoError(err)
	assert.Equal("size=l", match.Group("query"))

	var msgs []gallery_archiver.Message
	for msg, err := range ex.Items(context.Background()) {
		require.NoError(err)
		msgs = append(msgs, msg)
	}
	require.Len(msgs, 3)
	assert.Equal(gallery_archiver.Version{Version: 1}, msgs[0])
	dir := msgs[1].(gallery_archiver.Directory)
	assert.Equal("example.com", dir.Metadata["domain"])
	assert.Equal("albums/one", dir.Metadata["path"])
	file := msgs[2].(gallery_archiver.URL)
	assert.Equal("My Photo", file.Metadata["filename"])
	assert.Equal("jpg", file.Metadata["extension"])
	assert.Equal("example.com", file.Metadata["domain"])
}
