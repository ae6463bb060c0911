// Package generic downloads every image embedded in an arbitrary web page, selected with a "generic:" prefix. Pages
// linked with rel="next" are followed.
package generic

import (
	"context"
	"iter"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
	"github.com/alanbriolat/gallery-archiver/extractors/scrape"
)

var Descriptor = gallery_archiver.Descriptor{
	Category:     "generic",
	Pattern:      regexp.MustCompile(`generic:(?P<url>https?://\S+)`),
	DirectoryFmt: []string{"{{.category}}", "{{.domain}}"},
	FilenameFmt:  `{{.num}}_{{.filename}}{{.extension | optional "." ""}}`,
	New:          New,
}

// Attributes holding image URLs, in order of preference. Lazy-loading pages often keep a placeholder in src.
var imageAttrs = []string{"data-src", "data-original", "src"}

type extractor struct {
	url string
	env *gallery_archiver.Env
}

func New(match *gallery_archiver.Match, env *gallery_archiver.Env) (gallery_archiver.Extractor, error) {
	return &extractor{url: match.Group("url"), env: env}, nil
}

type image struct {
	url  string
	page int
}

func (e *extractor) Items(ctx context.Context) iter.Seq2[gallery_archiver.Message, error] {
	return func(yield func(gallery_archiver.Message, error) bool) {
		doc, err := scrape.Document(ctx, e.env, e.url)
		if err != nil {
			yield(nil, err)
			return
		}
		directory := gallery_archiver.Metadata{
			"title":  scrape.Text(doc.Find("title").First()),
			"domain": doc.Url.Hostname(),
			"page":   doc.Url.String(),
		}
		if description, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			directory["description"] = strings.TrimSpace(description)
		}
		if !yield(gallery_archiver.Version{Version: gallery_archiver.SupportedVersion}, nil) {
			return
		}
		if !yield(gallery_archiver.Directory{Metadata: directory}, nil) {
			return
		}
		num := 0
		for image, err := range gallery_archiver.Paginate(ctx, e.pages(doc)) {
			if err != nil {
				yield(nil, err)
				return
			}
			num++
			meta := directory.Merge(gallery_archiver.Metadata{"num": num, "page_num": image.page})
			if !yield(gallery_archiver.URL{URL: image.url, Metadata: meta}, nil) {
				return
			}
		}
	}
}

// pages walks the rel="next" chain starting from first. Images already seen on an earlier page are dropped, and a
// page without new images ends the walk.
func (e *extractor) pages(first *goquery.Document) func(ctx context.Context, page int) ([]image, bool, error) {
	doc := first
	next := ""
	seenImages := map[string]bool{}
	seenPages := map[string]bool{first.Url.String(): true}
	return func(ctx context.Context, page int) ([]image, bool, error) {
		if page > 1 {
			var err error
			if doc, err = scrape.Document(ctx, e.env, next); err != nil {
				return nil, false, err
			}
		}
		var images []image
		for _, u := range imageURLs(doc) {
			if !seenImages[u] {
				seenImages[u] = true
				images = append(images, image{url: u, page: page})
			}
		}
		next = nextPage(doc)
		if next == "" || seenPages[next] {
			return images, false, nil
		}
		seenPages[next] = true
		return images, true, nil
	}
}

func nextPage(doc *goquery.Document) string {
	href, ok := doc.Find(`link[rel~="next"], a[rel~="next"]`).First().Attr("href")
	if !ok {
		return ""
	}
	return httpURL(scrape.Absolute(doc, href))
}

// httpURL returns u if it is an absolute http(s) URL, otherwise "".
func httpURL(u string) string {
	parsed, err := url.Parse(u)
	if u == "" || err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ""
	}
	return u
}

func imageURLs(doc *goquery.Document) []string {
	var urls []string
	seen := map[string]bool{}
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		for _, attr := range imageAttrs {
			ref, ok := s.Attr(attr)
			if !ok || strings.HasPrefix(ref, "data:") {
				continue
			}
			abs := httpURL(scrape.Absolute(doc, ref))
			if abs == "" {
				continue
			}
			if !seen[abs] {
				seen[abs] = true
				urls = append(urls, abs)
			}
			return
		}
	})
	return urls
}

func init() {
	gallery_archiver.Register(Descriptor)
}
