package job

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
	"github.com/alanbriolat/gallery-archiver/config"
	"github.com/alanbriolat/gallery-archiver/downloader"
	"github.com/alanbriolat/gallery-archiver/generic"
	"github.com/alanbriolat/gallery-archiver/internal/sync_"
	"github.com/alanbriolat/gallery-archiver/pathformat"
)

// Scope decides how long a downloader instance lives.
type Scope string

const (
	// ScopeManager shares one downloader per backend between every job of a Manager.
	ScopeManager Scope = "manager"
	// ScopeJob gives each job its own downloaders.
	ScopeJob Scope = "job"
)

type Config struct {
	Config   *config.Config
	Registry *gallery_archiver.Registry
	Env      *gallery_archiver.Env
	// Destination overrides every configured base directory when set.
	Destination string
	// Workers is how many jobs AddAll runs at once.
	Workers int
	// MaxDepth limits Queue recursion, 0 meaning unlimited. Negative means take general.max-depth from Config.
	MaxDepth    int
	Mode        Mode
	Reporter    Reporter
	Progress    downloader.ProgressFunc
	Downloaders *downloader.Registry
	// Out receives the output of ModeURLs and ModeKeywords.
	Out io.Writer
}

// A Manager resolves URLs into jobs and runs them, recursing into Queue messages.
type Manager struct {
	cfg       Config
	scope     Scope
	maxDepth  int
	sanitizer pathformat.Sanitizer
	pool      *downloader.Pool
	reporter  Reporter
	seen      *sync_.Mutexed[generic.Set[string]]
	closed    *sync_.Mutexed[bool]
	outMu     sync.Mutex
	log       *zap.SugaredLogger
}

// NewManager fails only for process-level problems, such as invalid configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Config == nil {
		cfg.Config = config.New()
	}
	if cfg.Registry == nil {
		cfg.Registry = gallery_archiver.DefaultRegistry
	}
	if cfg.Env == nil {
		cfg.Env = gallery_archiver.NewEnv(cfg.Config, nil, nil)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = cfg.Config.GetInt("general.max-depth")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDownload
	}
	if cfg.Downloaders == nil {
		cfg.Downloaders = downloader.DefaultRegistry
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	m := &Manager{
		cfg:       cfg,
		maxDepth:  cfg.MaxDepth,
		sanitizer: pathformat.SanitizerFromConfig(cfg.Config),
		reporter:  cfg.Reporter,
		seen:      sync_.NewMutexed(generic.NewSet[string]()),
		closed:    sync_.NewMutexed(false),
		log:       zap.S().Named("manager"),
	}
	if m.reporter == nil {
		m.reporter = nullReporter{}
	}
	switch scope := Scope(cfg.Config.GetString("downloader.scope")); scope {
	case ScopeManager, ScopeJob:
		m.scope = scope
	default:
		return nil, fmt.Errorf("invalid downloader.scope %q", scope)
	}
	m.pool = downloader.NewPool(cfg.Downloaders, m.downloaderOptions())
	return m, nil
}

func (m *Manager) downloaderOptions() downloader.Options {
	return downloader.Options{
		Config:   m.cfg.Config,
		Log:      zap.S().Named("downloader"),
		Progress: m.cfg.Progress,
	}
}

// Downloader returns the shared downloader for url's scheme.
func (m *Manager) Downloader(url string) (downloader.Downloader, error) {
	return m.pool.Get(url)
}

// BaseDirectory is where output for category goes: the command line destination, else the destination in the
// category's own section (next to its regex entries), else extractor.<category>.destination, else
// general.destination.
func (m *Manager) BaseDirectory(category string) string {
	dir := m.cfg.Destination
	if dir == "" {
		dir = m.cfg.Config.GetString(category + ".destination")
	}
	if dir == "" {
		dir = m.cfg.Config.GetString("extractor." + category + ".destination")
	}
	if dir == "" {
		dir = m.cfg.Config.Destination()
	}
	return expandPath(dir)
}

func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// Add resolves url and runs the resulting job. Failing to resolve or construct an extractor is returned as an error,
// anything that goes wrong while the job runs is recorded in the Result.
func (m *Manager) Add(ctx context.Context, url string) (*Result, error) {
	if m.closed.Get() {
		return nil, ErrClosed
	}
	ex, match, err := m.cfg.Registry.Resolve(url, m.cfg.Env)
	if err != nil {
		return nil, err
	}
	m.markSeen(url)
	j, err := m.newJob(url, ex, match, 0)
	if err != nil {
		return nil, err
	}
	return j.Run(ctx), nil
}

// AddAll runs Add for each URL, Workers at a time. Results are in the same order as urls, nil where Add failed, and
// every error is returned together.
func (m *Manager) AddAll(ctx context.Context, urls []string) ([]*Result, error) {
	results := make([]*Result, len(urls))
	errs := make([]error, len(urls))
	g := errgroup.Group{}
	g.SetLimit(m.cfg.Workers)
	for i, url := range urls {
		g.Go(func() error {
			results[i], errs[i] = m.Add(ctx, url)
			if errs[i] != nil {
				m.log.Errorw("failed to add url", "url", url, "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	var result error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return results, result
}

// markSeen records url, reporting whether it was new.
func (m *Manager) markSeen(url string) bool {
	added, _ := sync_.With(m.seen, func(seen generic.Set[string]) (bool, error) {
		return seen.Add(url), nil
	})
	return added
}

// queue runs the job for a Queue message from parent, returning nil if it was not run at all.
func (m *Manager) queue(ctx context.Context, parent *Job, msg gallery_archiver.Queue) *Result {
	depth := parent.depth + 1
	log := parent.log.With("queue_url", msg.URL)
	if m.maxDepth > 0 && depth > m.maxDepth {
		log.Warnw("not following queued url, too deep", "depth", depth, "max_depth", m.maxDepth)
		return nil
	}
	if !m.markSeen(msg.URL) {
		log.Debugw("not following queued url, already processed")
		return nil
	}

	var ex gallery_archiver.Extractor
	var match *gallery_archiver.Match
	var err error
	if hint := msg.Metadata.Extractor(); hint != "" {
		ex, match, err = m.cfg.Registry.ResolveWith(hint, msg.URL, m.cfg.Env)
	} else {
		ex, match, err = m.cfg.Registry.Resolve(msg.URL, m.cfg.Env)
	}
	if err != nil {
		log.Warnw("failed to resolve queued url", "error", err)
		return failedResult(msg.URL, match, err)
	}
	j, err := m.newJob(msg.URL, ex, match, depth)
	if err != nil {
		return failedResult(msg.URL, match, err)
	}
	return j.Run(ctx)
}

func failedResult(url string, match *gallery_archiver.Match, err error) *Result {
	r := &Result{URL: url, Status: StatusFailed, Err: err}
	if match != nil {
		r.Category = match.Descriptor.Category
		r.Subcategory = match.Descriptor.Subcategory
	}
	return r
}

func (m *Manager) printf(format string, args ...any) {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	fmt.Fprintf(m.cfg.Out, format, args...)
}

// Close stops the Manager accepting new URLs.
func (m *Manager) Close() error {
	m.closed.Set(true)
	return nil
}
