package downloader

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

type ftpDownloader struct {
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	progress ProgressFunc
	log      *zap.SugaredLogger
}

// NewFTP creates the downloader for ftp and ftps URLs, configured by the downloader.ftp.* keys. Credentials are taken
// from the URL, otherwise the login is anonymous.
func NewFTP(opts Options) (Downloader, error) {
	opts = opts.withDefaults()
	cfg := opts.Config
	retries := cfg.GetInt("downloader.ftp.retries")
	if retries < 0 {
		return nil, fmt.Errorf("invalid downloader.ftp.retries: %d", retries)
	}
	return &ftpDownloader{
		timeout:  cfg.GetDuration("downloader.ftp.timeout"),
		retries:  retries,
		backoff:  cfg.GetDuration("downloader.ftp.backoff"),
		progress: opts.Progress,
		log:      opts.Log.Named("ftp"),
	}, nil
}

type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
	tls      bool
}

// parseFTPURL extracts what's needed to connect from an ftp:// or ftps:// URL.
func parseFTPURL(rawURL string) (*ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse ftp url: %w", err)
	}
	target := &ftpTarget{
		host:     u.Host,
		path:     u.Path,
		user:     "anonymous",
		password: "anonymous@",
	}
	switch u.Scheme {
	case "ftp":
	case "ftps":
		target.tls = true
	default:
		return nil, fmt.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	if _, _, err := net.SplitHostPort(target.host); err != nil {
		target.host = net.JoinHostPort(target.host, "21")
	}
	if target.path == "" {
		return nil, fmt.Errorf("empty path in ftp url")
	}
	if u.User != nil {
		target.user = u.User.Username()
		target.password, _ = u.User.Password()
	}
	return target, nil
}

func (d *ftpDownloader) Download(ctx context.Context, req Request) (int, error) {
	target, err := parseFTPURL(req.URL)
	if err != nil {
		return 0, Permanent(err)
	}
	return retry(ctx, d.retries, d.backoff, func(attempt int) error {
		err := d.attempt(ctx, target, req.Path)
		if err != nil && !isPermanent(err) {
			d.log.Warnw("download failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
		}
		return err
	})
}

func (d *ftpDownloader) attempt(ctx context.Context, target *ftpTarget, path string) error {
	d.log.Debugw("connecting", "host", target.host, "path", target.path)
	dialOptions := []ftp.DialOption{ftp.DialWithTimeout(d.timeout), ftp.DialWithContext(ctx)}
	if target.tls {
		host, _, _ := net.SplitHostPort(target.host)
		dialOptions = append(dialOptions, ftp.DialWithExplicitTLS(&tls.Config{ServerName: host}))
	}
	conn, err := ftp.Dial(target.host, dialOptions...)
	if err != nil {
		return fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(target.user, target.password); err != nil {
		return Permanent(fmt.Errorf("ftp login: %w: %w", gallery_archiver.ErrAuthRequired, err))
	}
	total := int64(-1)
	if size, err := conn.FileSize(target.path); err == nil {
		total = size
	}
	resp, err := conn.Retr(target.path)
	if err != nil {
		return fmt.Errorf("ftp retrieve: %w", err)
	}
	defer resp.Close()

	if _, err := saveStream(ctx, path, resp, total, d.progress); err != nil {
		return err
	}
	return nil
}
