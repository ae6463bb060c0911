package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PuerkitoBio/goquery"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

func TestDocument(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><h1>  A   title </h1><img src="../img/a.png"><img src=" "></html>`))
	}))
	defer server.Close()
	env := gallery_archiver.NewEnv(nil, nil, server.Client())

	doc, err := Document(context.Background(), env, server.URL+"/page/")
	require_.NoError(t, err)
	assert.Equal("A title", Text(doc.Find("h1")))
	var srcs []string
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		srcs = append(srcs, Absolute(doc, s.AttrOr("src", "")))
	})
	assert.Equal([]string{server.URL + "/img/a.png", ""}, srcs)

	_, err = Document(context.Background(), env, server.URL+"/missing")
	assert.ErrorIs(err, gallery_archiver.ErrNotFound)
}
