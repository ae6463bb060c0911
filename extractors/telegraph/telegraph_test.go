package telegraph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

const page = `<!DOCTYPE html>
<html><head>
<meta property="og:title" content="Fallback">
<meta property="article:author" content="Someone">
</head><body>
<article>
<h1>Holiday   Photos</h1>
<address><a rel="author">Ann Author</a><time datetime="2024-05-06T10:00:00Z">May 6</time></address>
<figure><img src="/file/aaa.jpg"><figcaption>First one</figcaption></figure>
<p>Some text</p>
<img src="/file/bbb.png">
<img src="/file/aaa.jpg">
<figure><video src="https://cdn.example.com/clip.mp4"></video></figure>
</article>
</body></html>`

func TestPattern(t *testing.T) {
	r := gallery_archiver.NewRegistry()
	r.MustRegister(Descriptor)
	m := r.Find("https://telegra.ph/Holiday-Photos-05-06")
	require_.NotNil(t, m)
	assert_.Equal(t, "Holiday-Photos-05-06", m.Group("slug"))
	assert_.NotNil(t, r.Find("https://graph.org/Other-01-01"))
	assert_.Nil(t, r.Find("https://telegram.org/x"))
}

func newExtractor(t *testing.T, handler http.HandlerFunc) (gallery_archiver.Extractor, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	env := gallery_archiver.NewEnv(nil, nil, server.Client())
	match := &gallery_archiver.Match{
		URL:        server.URL + "/Holiday-Photos-05-06",
		Named:      map[string]string{"slug": "Holiday-Photos-05-06"},
		Descriptor: &Descriptor,
	}
	ex, err := New(match, env)
	require_.NoError(t, err)
	return ex, server
}

func TestItems(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	ex, server := newExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	})

	var msgs []gallery_archiver.Message
	for msg, err := range ex.Items(context.Background()) {
		require.NoError(err)
		msgs = append(msgs, msg)
	}
	require.Len(msgs, 5)
	assert.Equal(gallery_archiver.Version{Version: 1}, msgs[0])

	dir := msgs[1].(gallery_archiver.Directory).Metadata
	assert.Equal("Holiday Photos", dir["title"])
	assert.Equal("Ann Author", dir["author"])
	assert.Equal("2024-05-06", dir["date"])
	assert.Equal(3, dir["count"])

	first := msgs[2].(gallery_archiver.URL)
	assert.Equal(server.URL+"/file/aaa.jpg", first.URL)
	assert.Equal(1, first.Metadata["num"])
	assert.Equal("First one", first.Metadata["caption"])
	assert.Equal("Holiday-Photos-05-06", first.Metadata["slug"])

	assert.Equal(server.URL+"/file/bbb.png", msgs[3].(gallery_archiver.URL).URL)
	assert.Equal("https://cdn.example.com/clip.mp4", msgs[4].(gallery_archiver.URL).URL)
	assert.Equal(3, msgs[4].(gallery_archiver.URL).Metadata["num"])
}

func TestItems_Errors(t *testing.T) {
	ex, _ := newExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	for _, err := range ex.Items(context.Background()) {
		assert_.ErrorIs(t, err, gallery_archiver.ErrNotFound)
	}

	ex, _ = newExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<article><h1>Empty</h1></article>`))
	})
	var errs []error
	for _, err := range ex.Items(context.Background()) {
		errs = append(errs, err)
	}
	require_.Len(t, errs, 1)
	assert_.ErrorIs(t, errs[0], gallery_archiver.ErrNotFound)
}
