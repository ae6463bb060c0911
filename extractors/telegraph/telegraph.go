// Package telegraph extracts the images of a telegra.ph article.
package telegraph

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
	"github.com/alanbriolat/gallery-archiver/extractors/scrape"
)

var Descriptor = gallery_archiver.Descriptor{
	Category:     "telegraph",
	Subcategory:  "gallery",
	Pattern:      regexp.MustCompile(`https?://(?:www\.)?(?:telegra\.ph|te\.legra\.ph|graph\.org)/(?P<slug>[^/?#]+)`),
	DirectoryFmt: []string{"{{.category}}", `{{.slug}}{{.title | optional " - " ""}}`},
	FilenameFmt:  `{{.num}}_{{.filename}}.{{.extension}}`,
	New:          New,
}

type extractor struct {
	url  string
	slug string
	env  *gallery_archiver.Env
}

func New(match *gallery_archiver.Match, env *gallery_archiver.Env) (gallery_archiver.Extractor, error) {
	return &extractor{url: match.URL, slug: match.Group("slug"), env: env}, nil
}

func (e *extractor) Items(ctx context.Context) iter.Seq2[gallery_archiver.Message, error] {
	return func(yield func(gallery_archiver.Message, error) bool) {
		doc, err := scrape.Document(ctx, e.env, e.url)
		if err != nil {
			yield(nil, err)
			return
		}
		directory, images := e.parse(doc)
		if len(images) == 0 {
			yield(nil, fmt.Errorf("%s: no images: %w", e.url, gallery_archiver.ErrNotFound))
			return
		}
		if !yield(gallery_archiver.Version{Version: gallery_archiver.SupportedVersion}, nil) {
			return
		}
		if !yield(gallery_archiver.Directory{Metadata: directory}, nil) {
			return
		}
		for i, image := range images {
			meta := directory.Merge(gallery_archiver.Metadata{"num": i + 1})
			if image.caption != "" {
				meta["caption"] = image.caption
			}
			if !yield(gallery_archiver.URL{URL: image.url, Metadata: meta}, nil) {
				return
			}
		}
	}
}

type image struct {
	url     string
	caption string
}

func (e *extractor) parse(doc *goquery.Document) (gallery_archiver.Metadata, []image) {
	article := doc.Find("article").First()
	if article.Length() == 0 {
		article = doc.Selection
	}
	title := scrape.Text(article.Find("h1").First())
	if title == "" {
		title = doc.Find(`meta[property="og:title"]`).AttrOr("content", "")
	}
	author := scrape.Text(article.Find("address a").First())
	if author == "" {
		author = doc.Find(`meta[property="article:author"]`).AttrOr("content", "")
	}
	date := ""
	if datetime, ok := article.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, datetime); err == nil {
			date = t.Format(time.DateOnly)
		}
	} else if published, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			date = t.Format(time.DateOnly)
		}
	}

	var images []image
	seen := map[string]bool{}
	article.Find("img[src], figure video[src]").Each(func(i int, s *goquery.Selection) {
		src := scrape.Absolute(doc, s.AttrOr("src", ""))
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, image{
			url:     src,
			caption: scrape.Text(s.Closest("figure").Find("figcaption")),
		})
	})

	directory := gallery_archiver.Metadata{
		"slug":   e.slug,
		"title":  title,
		"author": author,
		"date":   date,
		"count":  len(images),
	}
	return directory, images
}

func init() {
	gallery_archiver.Register(Descriptor)
}
