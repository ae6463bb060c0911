package downloader

import (
	"context"
	"strings"
)

// textDownloader writes the body of a "text:" URL verbatim.
type textDownloader struct {
	progress ProgressFunc
}

func NewText(opts Options) (Downloader, error) {
	return &textDownloader{progress: opts.Progress}, nil
}

func (d *textDownloader) Download(ctx context.Context, req Request) (int, error) {
	_, content, _ := strings.Cut(req.URL, ":")
	_, err := saveStream(ctx, req.Path, strings.NewReader(content), int64(len(content)), d.progress)
	return 0, err
}
