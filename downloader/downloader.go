// Package downloader fetches single resources to local files, choosing an implementation by URL scheme.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alanbriolat/gallery-archiver/config"
	"github.com/alanbriolat/gallery-archiver/internal/sync_"
)

var ErrUnsupportedScheme = errors.New("unsupported scheme")

// A Request asks for URL to be saved at Path.
type Request struct {
	URL     string
	Path    string
	Headers map[string]string
}

// A Downloader saves one resource. The returned attempt count is 0 when the request was satisfied without any
// network activity.
type Downloader interface {
	Download(ctx context.Context, req Request) (attempts int, err error)
}

// ProgressFunc receives byte counts while a file is written. total is -1 if unknown.
type ProgressFunc func(path string, written int64, total int64)

// Options are shared by every Downloader a Pool creates.
type Options struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Client   *http.Client
	Progress ProgressFunc
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.New()
	}
	if o.Log == nil {
		o.Log = zap.S().Named("downloader")
	}
	return o
}

// A Factory creates the Downloader for one backend.
type Factory func(opts Options) (Downloader, error)

// SchemeOf returns the lower-cased scheme of url, or "http" if it has none.
func SchemeOf(url string) string {
	scheme, _, found := strings.Cut(url, ":")
	if !found {
		return "http"
	}
	return strings.ToLower(scheme)
}

var backendAliases = map[string]string{
	"https": "http",
	"ftps":  "ftp",
}

// Backend maps a scheme onto the name of the backend that handles it.
func Backend(scheme string) string {
	if backend, ok := backendAliases[scheme]; ok {
		return backend
	}
	return scheme
}

// A Registry maps backend names to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(backend string, f Factory) {
	r.factories[backend] = f
}

func (r *Registry) Lookup(backend string) (Factory, error) {
	if f, ok := r.factories[backend]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, backend)
}

// DefaultRegistry knows the built-in http, ftp and text backends.
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register("http", NewHTTP)
	r.Register("ftp", NewFTP)
	r.Register("text", NewText)
	return r
}()

// A Pool creates downloaders on first use and then hands out the same instance for every scheme that maps to the same
// backend. It is safe for concurrent use.
type Pool struct {
	registry  *Registry
	opts      Options
	instances *sync_.Mutexed[map[string]Downloader]
}

func NewPool(registry *Registry, opts Options) *Pool {
	if registry == nil {
		registry = DefaultRegistry
	}
	return &Pool{
		registry:  registry,
		opts:      opts.withDefaults(),
		instances: sync_.NewMutexed(make(map[string]Downloader)),
	}
}

// Get returns the Downloader for url's scheme.
func (p *Pool) Get(url string) (Downloader, error) {
	backend := Backend(SchemeOf(url))
	return sync_.With(p.instances, func(instances map[string]Downloader) (Downloader, error) {
		if d, ok := instances[backend]; ok {
			return d, nil
		}
		factory, err := p.registry.Lookup(backend)
		if err != nil {
			return nil, err
		}
		d, err := factory(p.opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %v downloader: %w", backend, err)
		}
		instances[backend] = d
		return d, nil
	})
}

// Len is the number of downloaders created so far.
func (p *Pool) Len() int {
	n, _ := sync_.With(p.instances, func(instances map[string]Downloader) (int, error) {
		return len(instances), nil
	})
	return n
}
