package gallery_archiver

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/gallery-archiver/config"
)

// A PatternRow is a persisted (regex, category) pair.
type PatternRow struct {
	Regex    string `db:"re"`
	Category string `db:"name"`
}

// PatternSource records where a pattern in the table came from.
type PatternSource int

const (
	SourcePersisted PatternSource = iota
	SourceConfig
	SourceBuiltin
)

func (s PatternSource) String() string {
	switch s {
	case SourcePersisted:
		return "persisted"
	case SourceConfig:
		return "config"
	case SourceBuiltin:
		return "builtin"
	default:
		return fmt.Sprintf("PatternSource(%d)", int(s))
	}
}

// A Pattern is one compiled entry of the resolution table.
type Pattern struct {
	Text       string
	Source     PatternSource
	Descriptor *Descriptor
	re         *regexp.Regexp
}

func (p *Pattern) Match(url string) *Match {
	return newMatch(p.re, url, p.Descriptor)
}

// compileAnchored compiles text so that it only matches at the start of the input.
func compileAnchored(text string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + text + `)`)
}

// A Registry is the catalog of known extractors plus the ordered table of patterns used to resolve URLs. The table
// holds persisted patterns, then configured patterns, then built-in patterns, and the first match wins.
type Registry struct {
	mu          sync.RWMutex
	descriptors []*Descriptor
	byName      map[string]*Descriptor
	persisted   []*Pattern
	configured  []*Pattern
	builtin     []*Pattern
	log         *zap.SugaredLogger
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) logger() *zap.SugaredLogger {
	if r.log == nil {
		r.log = zap.S().Named("registry")
	}
	return r.log
}

// Register adds an extractor to the catalog, along with its built-in pattern. Category, Pattern and New must be set,
// and the name must be unique within the Registry.
func (r *Registry) Register(d Descriptor) error {
	if d.Category == "" || d.Pattern == nil || d.New == nil {
		return ErrInvalidExtractor
	}
	re, err := compileAnchored(d.Pattern.String())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExtractor, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = make(map[string]*Descriptor)
	}
	name := d.Name()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateExtractor, name)
	}
	desc := &d
	r.descriptors = append(r.descriptors, desc)
	r.byName[name] = desc
	// A bare category name refers to the first extractor registered in it.
	if _, ok := r.byName[d.Category]; !ok {
		r.byName[d.Category] = desc
	}
	r.builtin = append(r.builtin, &Pattern{Text: d.Pattern.String(), Source: SourceBuiltin, Descriptor: desc, re: re})
	return nil
}

// MustRegister wraps Register but panics if there is an error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// AddPattern adds a configured pattern for an already registered extractor. A pattern that doesn't compile or refers
// to an unknown extractor is logged and dropped, and the error returned only for information.
func (r *Registry) AddPattern(name string, text string) error {
	return r.addPattern(SourceConfig, name, text)
}

func (r *Registry) addPattern(source PatternSource, name string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.byName[name]
	if !ok {
		r.logger().Warnw("dropping pattern for unknown extractor", "extractor", name, "pattern", text, "source", source)
		return fmt.Errorf("%w: %v", ErrUnknownExtractor, name)
	}
	re, err := compileAnchored(text)
	if err != nil {
		r.logger().Warnw("dropping invalid pattern", "extractor", name, "pattern", text, "source", source, "error", err)
		return fmt.Errorf("invalid pattern %q: %w", text, err)
	}
	p := &Pattern{Text: text, Source: source, Descriptor: desc, re: re}
	switch source {
	case SourcePersisted:
		r.persisted = append(r.persisted, p)
	default:
		r.configured = append(r.configured, p)
	}
	return nil
}

// LoadRows adds persisted patterns in the order given. Bad rows are dropped, and reported together.
func (r *Registry) LoadRows(rows []PatternRow) error {
	var result error
	for _, row := range rows {
		if err := r.addPattern(SourcePersisted, row.Category, row.Regex); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// LoadConfig adds the `regex*` entries of each configured category, in declaration order.
func (r *Registry) LoadConfig(cfg *config.Config) error {
	var result error
	for _, entry := range cfg.RegexEntries() {
		if err := r.addPattern(SourceConfig, entry.Category, entry.Pattern); err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v.%v]", entry.Category, entry.Key)))
		}
	}
	return result
}

// Patterns returns the resolution table in order.
func (r *Registry) Patterns() []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table := make([]*Pattern, 0, len(r.persisted)+len(r.configured)+len(r.builtin))
	table = append(table, r.persisted...)
	table = append(table, r.configured...)
	table = append(table, r.builtin...)
	return table
}

// Get returns the named extractor, by "category" or "category:subcategory".
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byName[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownExtractor, name)
}

// List returns the registered extractors in registration order.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Descriptor(nil), r.descriptors...)
}

// Find returns the first pattern in the table matching url, without constructing anything.
func (r *Registry) Find(url string) *Match {
	for _, p := range r.Patterns() {
		if m := p.Match(url); m != nil {
			return m
		}
	}
	return nil
}

// Resolve finds the first pattern matching url and constructs its extractor.
func (r *Registry) Resolve(url string, env *Env) (Extractor, *Match, error) {
	m := r.Find(url)
	if m == nil {
		return nil, nil, &ResolutionError{URL: url, Err: ErrNoMatch}
	}
	return r.construct(m, env)
}

// ResolveWith matches url only against the patterns of the named extractor, bypassing the rest of the table.
func (r *Registry) ResolveWith(name string, url string, env *Env) (Extractor, *Match, error) {
	d, err := r.Get(name)
	if err != nil {
		return nil, nil, &ResolutionError{URL: url, Extractor: name, Err: err}
	}
	for _, p := range r.Patterns() {
		if p.Descriptor != d {
			continue
		}
		if m := p.Match(url); m != nil {
			return r.construct(m, env)
		}
	}
	return nil, nil, &ResolutionError{URL: url, Extractor: name, Err: ErrNoMatch}
}

func (r *Registry) construct(m *Match, env *Env) (Extractor, *Match, error) {
	ex, err := m.Descriptor.New(m, env)
	if err != nil {
		return nil, m, &ConstructionError{Category: m.Descriptor.Category, Subcategory: m.Descriptor.Subcategory, Err: err}
	}
	if ex == nil {
		return nil, m, &ConstructionError{Category: m.Descriptor.Category, Subcategory: m.Descriptor.Subcategory, Err: ErrInvalidExtractor}
	}
	return ex, m, nil
}

// DefaultRegistry is where extractor packages register themselves from init().
var DefaultRegistry = NewRegistry()

// Register adds an extractor to DefaultRegistry, panicking on error.
func Register(d Descriptor) {
	DefaultRegistry.MustRegister(d)
}
