// Package scrape holds the HTML helpers shared by extractors that work from web pages.
package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

// Document fetches and parses an HTML page.
func Document(ctx context.Context, env *gallery_archiver.Env, pageURL string) (*goquery.Document, error) {
	resp, err := env.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// Absolute resolves ref against the document's URL. An unparseable ref gives "".
func Absolute(doc *goquery.Document, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if doc.Url == nil {
		return u.String()
	}
	return doc.Url.ResolveReference(u).String()
}

// Text is the selection's text with whitespace runs collapsed.
func Text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
