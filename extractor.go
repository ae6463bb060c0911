package gallery_archiver

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/alanbriolat/gallery-archiver/config"
	"github.com/alanbriolat/gallery-archiver/internal/cache"
)

// MaxPages bounds Paginate, so a site that always claims more pages can't keep a job alive forever.
var MaxPages = 1000

// An Extractor turns one matched URL into a stream of messages. The stream is finite, lazy and can only be consumed
// once.
type Extractor interface {
	Items(ctx context.Context) iter.Seq2[Message, error]
}

// A Constructor builds an Extractor for a successful Match. Returning an error means the extractor could not be
// initialized (e.g. bad credentials in config), as opposed to failing during extraction.
type Constructor func(match *Match, env *Env) (Extractor, error)

// A Descriptor is the static description of an extractor: its identity, default pattern and default path formats.
type Descriptor struct {
	Category    string
	Subcategory string
	// Pattern is the built-in pattern, matched against the start of the URL.
	Pattern *regexp.Regexp
	// DirectoryFmt is the default list of directory segment templates.
	DirectoryFmt []string
	// FilenameFmt is the default filename template.
	FilenameFmt string
	New         Constructor
}

func (d *Descriptor) Name() string {
	if d.Subcategory == "" {
		return d.Category
	}
	return d.Category + ":" + d.Subcategory
}

// ConfigPath is the path used for config interpolation, e.g. ["extractor", "telegraph", "gallery"].
func (d *Descriptor) ConfigPath() []string {
	path := []string{"extractor", d.Category}
	if d.Subcategory != "" {
		path = append(path, d.Subcategory)
	}
	return path
}

func (d *Descriptor) String() string {
	return d.Name()
}

// A Match is the result of a pattern matching a URL.
type Match struct {
	URL string
	// Groups holds the positional capture groups, Groups[0] being the whole match.
	Groups []string
	// Named holds the named capture groups that participated in the match.
	Named      map[string]string
	Descriptor *Descriptor
}

func newMatch(re *regexp.Regexp, url string, d *Descriptor) *Match {
	loc := re.FindStringSubmatchIndex(url)
	if loc == nil || loc[0] != 0 {
		return nil
	}
	m := &Match{
		URL:        url,
		Groups:     make([]string, len(loc)/2),
		Named:      make(map[string]string),
		Descriptor: d,
	}
	names := re.SubexpNames()
	for i := range m.Groups {
		if loc[2*i] < 0 {
			continue
		}
		m.Groups[i] = url[loc[2*i]:loc[2*i+1]]
		if names[i] != "" {
			m.Named[names[i]] = m.Groups[i]
		}
	}
	return m
}

// Group returns the named capture group, or "" if it did not participate.
func (m *Match) Group(name string) string {
	return m.Named[name]
}

// Env holds the process-scoped collaborators given to every extractor.
type Env struct {
	Config *config.Config
	Cache  cache.Cache
	Client *http.Client
	Log    *zap.SugaredLogger
}

// NewEnv fills in defaults for anything not provided.
func NewEnv(cfg *config.Config, c cache.Cache, client *http.Client) *Env {
	if cfg == nil {
		cfg = config.New()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.GetDuration("downloader.http.timeout")}
	}
	return &Env{
		Config: cfg,
		Cache:  c,
		Client: client,
		Log:    zap.S().Named("extractor"),
	}
}

// Get performs a GET request with the configured user agent, returning ErrNotFound for a 404 and ErrAuthRequired for
// 401/403.
func (e *Env) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if ua := e.Config.GetString("downloader.http.user-agent"); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", url, ErrAuthRequired)
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: unexpected status %v", url, resp.Status)
	}
	return resp, nil
}

// Messages yields a fixed sequence of messages.
func Messages(msgs ...Message) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for _, msg := range msgs {
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Fail yields a single error.
func Fail(err error) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		yield(nil, err)
	}
}

// Paginate calls fetch for pages 1, 2, ... and yields each item, stopping when fetch reports no more pages, returns an
// empty page, returns an error, or MaxPages is reached.
func Paginate[T any](ctx context.Context, fetch func(ctx context.Context, page int) (items []T, more bool, err error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for page := 1; page <= MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			items, more, err := fetch(ctx, page)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if !more || len(items) == 0 {
				return
			}
		}
	}
}
