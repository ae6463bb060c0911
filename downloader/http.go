package downloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

type httpDownloader struct {
	client    *http.Client
	retries   int
	backoff   time.Duration
	userAgent string
	progress  ProgressFunc
	log       *zap.SugaredLogger
}

// NewHTTP creates the downloader for http and https URLs, configured by the downloader.http.* keys.
func NewHTTP(opts Options) (Downloader, error) {
	opts = opts.withDefaults()
	cfg := opts.Config
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.GetDuration("downloader.http.timeout")}
	}
	retries := cfg.GetInt("downloader.http.retries")
	if retries < 0 {
		return nil, fmt.Errorf("invalid downloader.http.retries: %d", retries)
	}
	return &httpDownloader{
		client:    client,
		retries:   retries,
		backoff:   cfg.GetDuration("downloader.http.backoff"),
		userAgent: cfg.GetString("downloader.http.user-agent"),
		progress:  opts.Progress,
		log:       opts.Log.Named("http"),
	}, nil
}

func (d *httpDownloader) Download(ctx context.Context, req Request) (int, error) {
	return retry(ctx, d.retries, d.backoff, func(attempt int) error {
		err := d.attempt(ctx, req)
		if err != nil && !isPermanent(err) {
			d.log.Warnw("download failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
		}
		return err
	})
}

func (d *httpDownloader) attempt(ctx context.Context, req Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if d.userAgent != "" {
		httpReq.Header.Set("User-Agent", d.userAgent)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Permanent(fmt.Errorf("%v: %w", resp.Status, gallery_archiver.ErrAuthRequired))
	case resp.StatusCode == http.StatusNotFound:
		return Permanent(fmt.Errorf("%v: %w", resp.Status, gallery_archiver.ErrNotFound))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("server error: %v", resp.Status)
	case resp.StatusCode >= 400:
		return Permanent(fmt.Errorf("client error: %v", resp.Status))
	}

	if _, err := saveStream(ctx, req.Path, resp.Body, resp.ContentLength, d.progress); err != nil {
		return err
	}
	return nil
}
