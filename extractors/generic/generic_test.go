package generic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

const page = `<html><head>
<title>  Some
 Gallery </title>
<meta name="description" content=" Pictures of things ">
</head><body>
<img src="/images/a.jpg">
<img src="data:image/gif;base64,R0lGOD" data-src="lazy/b.png">
<img src="https://other.example.com/c.gif">
<img src="/images/a.jpg">
<img src="data:image/gif;base64,R0lGOD">
<img src="javascript:void(0)">
</body></html>`

func TestPattern(t *testing.T) {
	r := gallery_archiver.NewRegistry()
	r.MustRegister(Descriptor)
	m := r.Find("generic:https://example.com/gallery/")
	require_.NotNil(t, m)
	assert_.Equal(t, "https://example.com/gallery/", m.Group("url"))
	assert_.Nil(t, r.Find("https://example.com/gallery/"))
}

func TestItems(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	env := gallery_archiver.NewEnv(nil, nil, server.Client())
	match := &gallery_archiver.Match{
		URL:        "generic:" + server.URL + "/gallery/",
		Named:      map[string]string{"url": server.URL + "/gallery/"},
		Descriptor: &Descriptor,
	}
	ex, err := New(match, env)
	require.NoError(err)

	var msgs []gallery_archiver.Message
	for msg, err := range ex.Items(context.Background()) {
		require.NoError(err)
		msgs = append(msgs, msg)
	}
	require.Len(msgs, 5)

	dir := msgs[1].(gallery_archiver.Directory).Metadata
	assert.Equal("Some Gallery", dir["title"])
	assert.Equal("127.0.0.1", dir["domain"])
	assert.Equal("Pictures of things", dir["description"])

	var urls []string
	for _, msg := range msgs[2:] {
		urls = append(urls, msg.(gallery_archiver.URL).URL)
	}
	assert.Equal([]string{
		server.URL + "/images/a.jpg",
		server.URL + "/gallery/lazy/b.png",
		"https://other.example.com/c.gif",
	}, urls)
	assert.Equal(2, msgs[3].(gallery_archiver.URL).Metadata["num"])
	assert.Equal(1, msgs[3].(gallery_archiver.URL).Metadata["page_num"])
}

func TestItems_FollowsNextPage(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	pages := map[string]string{
		"/gallery/":  `<html><head><title>Paged</title><link rel="next" href="/gallery/2"></head><body><img src="/logo.png"><img src="/p1.jpg"></body></html>`,
		"/gallery/2": `<html><body><img src="/logo.png"><img src="/p2.jpg"><a rel="next" href="/gallery/3">next</a></body></html>`,
		"/gallery/3": `<html><body><img src="/logo.png"><img src="/p3.jpg"><a rel="next" href="/gallery/">again</a></body></html>`,
	}
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	env := gallery_archiver.NewEnv(nil, nil, server.Client())
	match := &gallery_archiver.Match{
		URL:        "generic:" + server.URL + "/gallery/",
		Named:      map[string]string{"url": server.URL + "/gallery/"},
		Descriptor: &Descriptor,
	}
	ex, err := New(match, env)
	require.NoError(err)

	var urls []string
	var pageNums []any
	for msg, err := range ex.Items(context.Background()) {
		require.NoError(err)
		if u, ok := msg.(gallery_archiver.URL); ok {
			urls = append(urls, u.URL)
			pageNums = append(pageNums, u.Metadata["page_num"])
		}
	}
	assert.Equal([]string{
		server.URL + "/logo.png",
		server.URL + "/p1.jpg",
		server.URL + "/p2.jpg",
		server.URL + "/p3.jpg",
	}, urls)
	assert.Equal([]any{1, 1, 2, 3}, pageNums)
	assert.Equal([]string{"/gallery/", "/gallery/2", "/gallery/3"}, requests)
}

func TestItems_NextPageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><img src="/a.jpg"><a rel="next" href="/missing">next</a></body></html>`))
	}))
	defer server.Close()

	env := gallery_archiver.NewEnv(nil, nil, server.Client())
	match := &gallery_archiver.Match{
		URL:        "generic:" + server.URL + "/",
		Named:      map[string]string{"url": server.URL + "/"},
		Descriptor: &Descriptor,
	}
	ex, err := New(match, env)
	require_.NoError(t, err)
	var last error
	urls := 0
	for msg, err := range ex.Items(context.Background()) {
		if err != nil {
			last = err
			continue
		}
		if _, ok := msg.(gallery_archiver.URL); ok {
			urls++
		}
	}
	assert_.Equal(t, 1, urls)
	assert_.ErrorIs(t, last, gallery_archiver.ErrNotFound)
}
