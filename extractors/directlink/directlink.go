// Package directlink handles URLs that point straight at a media file.
package directlink

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"regexp"
	"strings"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
	"github.com/alanbriolat/gallery-archiver/generic"
	"github.com/alanbriolat/gallery-archiver/util"
)

var Extensions = generic.NewSet(
	"bmp", "gif", "jpeg", "jpg", "png", "webp",
	"flv", "m4v", "mkv", "mp4", "webm",
	"mp3", "ogg", "opus",
)

var Descriptor = gallery_archiver.Descriptor{
	Category:     "directlink",
	Pattern:      regexp.MustCompile(`(?i)https?://(?P<domain>[^/?#]+)/(?P<path>[^?#]+\.(?:bmp|gif|jpe?g|png|webp|flv|m4v|mkv|mp4|webm|mp3|ogg|opus))(?:\?(?P<query>[^#]*))?(?:#.*)?$`),
	DirectoryFmt: []string{"{{.category}}", "{{.domain}}"},
	FilenameFmt:  `{{.filename}}.{{.extension}}`,
	New:          New,
}

type extractor struct {
	url    string
	domain string
	path   string
	query  string
}

func New(match *gallery_archiver.Match, env *gallery_archiver.Env) (gallery_archiver.Extractor, error) {
	return &extractor{
		url:    match.URL,
		domain: strings.ToLower(match.Group("domain")),
		path:   match.Group("path"),
		query:  match.Group("query"),
	}, nil
}

func (e *extractor) Items(ctx context.Context) iter.Seq2[gallery_archiver.Message, error] {
	filename, extension := util.NameExtFromURL(e.url)
	if filename == "" || !Extensions.Contains(extension) {
		return gallery_archiver.Fail(fmt.Errorf("%s: no media file name: %w", e.url, gallery_archiver.ErrNotFound))
	}
	path, err := url.PathUnescape(e.path)
	if err != nil {
		path = e.path
	}
	directory := gallery_archiver.Metadata{
		"domain": e.domain,
		"path":   parent(path),
		"query":  e.query,
	}
	file := directory.Merge(gallery_archiver.Metadata{
		"filename":  filename,
		"extension": extension,
	})
	return gallery_archiver.Messages(
		gallery_archiver.Version{Version: gallery_archiver.SupportedVersion},
		gallery_archiver.Directory{Metadata: directory},
		gallery_archiver.URL{URL: e.url, Metadata: file},
	)
}

// parent drops the last element of a slash-separated path.
func parent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

func init() {
	gallery_archiver.Register(Descriptor)
}
