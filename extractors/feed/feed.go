// Package feed turns an RSS, Atom or JSON feed into queued child URLs.
package feed

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

var Descriptor = gallery_archiver.Descriptor{
	Category:    "feed",
	Subcategory: "feed",
	Pattern:     regexp.MustCompile(`feed:(?P<url>https?://\S+)`),
	New:         New,
}

type extractor struct {
	url   string
	env   *gallery_archiver.Env
	links bool
}

// New builds a feed extractor. Media enclosures are always queued for direct download; item links are only queued
// when "extractor.feed.links" is set, since most of them point at pages no extractor handles.
func New(match *gallery_archiver.Match, env *gallery_archiver.Env) (gallery_archiver.Extractor, error) {
	links, _ := env.Config.Interpolate(match.Descriptor.ConfigPath(), "links")
	enabled, _ := links.(bool)
	return &extractor{url: match.Group("url"), env: env, links: enabled}, nil
}

func (e *extractor) Items(ctx context.Context) iter.Seq2[gallery_archiver.Message, error] {
	return func(yield func(gallery_archiver.Message, error) bool) {
		feed, err := e.fetch(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		if !yield(gallery_archiver.Version{Version: gallery_archiver.SupportedVersion}, nil) {
			return
		}
		seen := map[string]bool{}
		queue := func(url string, meta gallery_archiver.Metadata) bool {
			if url == "" || seen[url] {
				return true
			}
			seen[url] = true
			return yield(gallery_archiver.Queue{URL: url, Metadata: meta}, nil)
		}
		for _, item := range feed.Items {
			base := itemMetadata(feed, item)
			for _, media := range mediaURLs(item) {
				meta := base.Merge(gallery_archiver.Metadata{gallery_archiver.KeyExtractor: "directlink"})
				if !queue(media, meta) {
					return
				}
			}
			if e.links && !queue(item.Link, base) {
				return
			}
		}
	}
}

func (e *extractor) fetch(ctx context.Context) (*gofeed.Feed, error) {
	resp, err := e.env.Get(ctx, e.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	feed, err := gofeed.NewParser().Parse(gallery_archiver.NewContextReader(ctx, resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", e.url, err)
	}
	return feed, nil
}

func itemMetadata(feed *gofeed.Feed, item *gofeed.Item) gallery_archiver.Metadata {
	meta := gallery_archiver.Metadata{
		"feed":  feed.Title,
		"title": item.Title,
		"link":  item.Link,
		"guid":  item.GUID,
	}
	if item.PublishedParsed != nil {
		meta["date"] = item.PublishedParsed.UTC().Format(time.DateOnly)
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		meta["author"] = item.Authors[0].Name
	}
	return meta
}

// mediaURLs lists the item's image and video enclosures, followed by its image if it is not one of them.
func mediaURLs(item *gofeed.Item) []string {
	var urls []string
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") || strings.HasPrefix(enc.Type, "video/") {
			urls = append(urls, enc.URL)
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		urls = append(urls, item.Image.URL)
	}
	return urls
}

func init() {
	gallery_archiver.Register(Descriptor)
}
