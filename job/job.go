package job

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
	"github.com/alanbriolat/gallery-archiver/downloader"
	"github.com/alanbriolat/gallery-archiver/pathformat"
	"github.com/alanbriolat/gallery-archiver/util"
)

var (
	DefaultDirectoryFmt = []string{"{{.category}}"}
	DefaultFilenameFmt  = `{{.filename}}{{.extension | optional "." ""}}`
)

// A Job drives one extractor: it pulls messages in order and acts on each before pulling the next.
type Job struct {
	ID        uuid.UUID
	URL       string
	extractor gallery_archiver.Extractor
	match     *gallery_archiver.Match
	manager   *Manager
	depth     int
	path      *pathformat.PathFormat
	pool      *downloader.Pool
	status    Status
	result    *Result
	messages  int
	log       *zap.SugaredLogger

	hashURL      hash.Hash
	hashMetadata hash.Hash
}

func (m *Manager) newJob(url string, ex gallery_archiver.Extractor, match *gallery_archiver.Match, depth int) (*Job, error) {
	d := match.Descriptor
	id := uuid.New()
	j := &Job{
		ID:        id,
		URL:       url,
		extractor: ex,
		match:     match,
		manager:   m,
		depth:     depth,
		status:    StatusCreated,
		result: &Result{
			ID:          id,
			URL:         url,
			Category:    d.Category,
			Subcategory: d.Subcategory,
			Status:      StatusCreated,
		},
		log: m.log.With("job_id", id.String(), "extractor", d.Name()),
	}

	directoryFmt := d.DirectoryFmt
	if len(directoryFmt) == 0 {
		directoryFmt = DefaultDirectoryFmt
	}
	filenameFmt := d.FilenameFmt
	if filenameFmt == "" {
		filenameFmt = DefaultFilenameFmt
	}
	cfg := m.cfg.Config
	directoryFmt = cfg.InterpolateStrings(d.ConfigPath(), "directory", directoryFmt)
	filenameFmt = cfg.InterpolateString(d.ConfigPath(), "filename", filenameFmt)
	path, err := pathformat.New(m.BaseDirectory(d.Category), directoryFmt, filenameFmt, m.sanitizer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name(), err)
	}
	j.path = path

	if m.scope == ScopeJob {
		j.pool = downloader.NewPool(m.cfg.Downloaders, m.downloaderOptions())
	} else {
		j.pool = m.pool
	}
	if m.cfg.Mode == ModeHash {
		j.hashURL = sha1.New()
		j.hashMetadata = sha1.New()
	}
	return j, nil
}

func (j *Job) Status() Status {
	return j.status
}

// Result is only complete once Run has returned.
func (j *Job) Result() *Result {
	return j.result
}

// errStop ends a job early without failing it.
var errStop = errors.New("stop")

// Run consumes the extractor's messages until the stream ends, the extractor aborts, a fatal error occurs or ctx is
// cancelled. Failing to download a single URL does not stop the job.
func (j *Job) Run(ctx context.Context) *Result {
	j.setStatus(StatusRunning)
	j.log.Debugw("job started", "url", j.URL, "depth", j.depth)

	err := j.consume(ctx)
	switch {
	case err == nil, errors.Is(err, errStop):
		j.setStatus(StatusCompleted)
	case errors.Is(err, gallery_archiver.ErrAbort):
		j.log.Infow("extractor aborted", "error", err)
		j.setStatus(StatusCompleted)
	default:
		j.result.Err = err
		j.setStatus(StatusFailed)
		j.log.Errorw("job failed", "url", j.URL, "error", err)
	}
	if j.hashURL != nil {
		j.result.URLHash = hex.EncodeToString(j.hashURL.Sum(nil))
		j.result.MetadataHash = hex.EncodeToString(j.hashMetadata.Sum(nil))
	}
	j.log.Debugw("job finished", "status", j.status, "downloaded", j.result.Downloaded, "skipped", j.result.Skipped, "failed", j.result.Failed)
	return j.result
}

func (j *Job) setStatus(s Status) {
	j.status = s
	j.result.Status = s
}

func (j *Job) consume(ctx context.Context) error {
	for msg, err := range j.extractor.Items(ctx) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.handle(ctx, msg); err != nil {
			return err
		}
		j.messages++
	}
	return ctx.Err()
}

func (j *Job) handle(ctx context.Context, msg gallery_archiver.Message) error {
	switch msg := msg.(type) {
	case gallery_archiver.Version:
		if j.messages > 0 {
			return fmt.Errorf("%w: version message after %d other messages", ErrProtocol, j.messages)
		}
		if msg.Version != gallery_archiver.SupportedVersion {
			return fmt.Errorf("%w: %d (%s)", ErrUnsupportedVersion, msg.Version, j.match.Descriptor.Name())
		}
		return nil
	case gallery_archiver.Directory:
		return j.handleDirectory(msg)
	case gallery_archiver.URL:
		return j.handleURL(ctx, msg)
	case gallery_archiver.Queue:
		return j.handleQueue(ctx, msg)
	default:
		return fmt.Errorf("%w: unknown message type %T", ErrProtocol, msg)
	}
}

// metadata copies the message metadata and adds the extractor's identity.
func (j *Job) metadata(meta gallery_archiver.Metadata) gallery_archiver.Metadata {
	result := meta.Clone()
	result[gallery_archiver.KeyCategory] = j.match.Descriptor.Category
	result[gallery_archiver.KeySubcategory] = j.match.Descriptor.Subcategory
	return result
}

func (j *Job) handleDirectory(msg gallery_archiver.Directory) error {
	meta := j.metadata(msg.Metadata)
	switch j.manager.cfg.Mode {
	case ModeDownload:
		dir, err := j.path.SetDirectory(meta)
		if err != nil {
			return err
		}
		j.log.Debugw("directory set", "directory", dir)
	case ModeKeywords:
		j.manager.printf("Keywords for directory names:\n")
		j.printKeywords(meta)
	case ModeHash:
		j.updateMetadataHash(meta)
	}
	return nil
}

func (j *Job) handleURL(ctx context.Context, msg gallery_archiver.URL) error {
	meta := j.metadata(msg.Metadata)
	if !meta.Has(gallery_archiver.KeyFilename) || !meta.Has(gallery_archiver.KeyExtension) {
		name, ext := util.NameExtFromURL(msg.URL)
		if !meta.Has(gallery_archiver.KeyFilename) {
			meta[gallery_archiver.KeyFilename] = name
		}
		if !meta.Has(gallery_archiver.KeyExtension) {
			meta[gallery_archiver.KeyExtension] = ext
		}
	}

	switch j.manager.cfg.Mode {
	case ModeURLs:
		j.manager.printf("%s\n", msg.URL)
		return nil
	case ModeKeywords:
		j.manager.printf("Keywords for filenames:\n")
		j.printKeywords(meta)
		return errStop
	case ModeHash:
		j.hashURL.Write([]byte(msg.URL))
		j.updateMetadataHash(meta)
		return nil
	}

	path, err := j.path.Build(meta)
	if err != nil {
		j.result.Failed++
		j.manager.reporter.Failure(msg.URL, err, 0)
		j.log.Warnw("failed to build path", "url", msg.URL, "error", err)
		return nil
	}
	if pathformat.Exists(path) {
		j.result.Skipped++
		j.manager.reporter.Skip(path)
		return nil
	}
	d, err := j.pool.Get(msg.URL)
	if err != nil {
		j.result.Failed++
		j.manager.reporter.Failure(path, err, 0)
		j.log.Warnw("no downloader", "url", msg.URL, "error", err)
		return nil
	}

	j.manager.reporter.Start(path)
	attempts, err := d.Download(ctx, downloader.Request{URL: msg.URL, Path: path, Headers: meta.Headers()})
	if err != nil {
		j.result.Failed++
		j.manager.reporter.Failure(path, err, attempts)
		if errors.Is(err, gallery_archiver.ErrAuthRequired) || ctx.Err() != nil {
			return err
		}
		j.log.Warnw("download failed", "url", msg.URL, "path", path, "attempts", attempts, "error", err)
		return nil
	}
	j.result.Downloaded++
	j.manager.reporter.Success(path, attempts)
	return nil
}

func (j *Job) handleQueue(ctx context.Context, msg gallery_archiver.Queue) error {
	switch j.manager.cfg.Mode {
	case ModeKeywords:
		return nil
	case ModeHash:
		j.hashURL.Write([]byte(msg.URL))
		return nil
	}
	if child := j.manager.queue(ctx, j, msg); child != nil {
		j.result.Children = append(j.result.Children, child)
	}
	return nil
}

func (j *Job) printKeywords(meta gallery_archiver.Metadata) {
	keys := slices.DeleteFunc(slices.Sorted(maps.Keys(meta)), func(key string) bool {
		return strings.HasPrefix(key, "_")
	})
	width := 0
	for _, key := range keys {
		width = max(width, len(key))
	}
	for _, key := range keys {
		j.manager.printf("%-*s : %v\n", width, key, meta[key])
	}
	j.manager.printf("\n")
}

func (j *Job) updateMetadataHash(meta gallery_archiver.Metadata) {
	// encoding/json sorts map keys, so the digest doesn't depend on map order.
	data, err := json.Marshal(map[string]any(meta))
	if err != nil {
		j.log.Warnw("metadata not hashable", "error", err)
		return
	}
	j.hashMetadata.Write(data)
}
