package job

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedVersion means an extractor announced a message protocol version other than the supported one.
	ErrUnsupportedVersion = errors.New("unsupported message version")
	// ErrProtocol means an extractor broke the message ordering rules.
	ErrProtocol = errors.New("message protocol violation")
	ErrClosed   = errors.New("manager closed")
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Mode selects what a Job does with the messages it receives.
type Mode string

const (
	// ModeDownload saves each URL under the formatted path.
	ModeDownload Mode = "download"
	// ModeURLs prints each URL instead of downloading it.
	ModeURLs Mode = "urls"
	// ModeKeywords prints the metadata keys available to directory and filename formats.
	ModeKeywords Mode = "keywords"
	// ModeHash digests URLs and metadata, to detect changes in extractor output.
	ModeHash Mode = "hash"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDownload, ModeURLs, ModeKeywords, ModeHash:
		return m, nil
	case "":
		return ModeDownload, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// A Result is the summary of one Job, including the jobs it spawned for Queue messages.
type Result struct {
	ID          uuid.UUID
	URL         string
	Category    string
	Subcategory string
	Status      Status
	Downloaded  int
	Skipped     int
	Failed      int
	// Err is why the job failed, if it did.
	Err      error
	Children []*Result
	// URLHash and MetadataHash are only set in ModeHash.
	URLHash      string
	MetadataHash string
}

// Walk calls f for r and every descendant, depth first.
func (r *Result) Walk(f func(*Result)) {
	f(r)
	for _, child := range r.Children {
		child.Walk(f)
	}
}

// Totals sums the per-file counts over r and its descendants.
func (r *Result) Totals() (downloaded, skipped, failed int) {
	r.Walk(func(r *Result) {
		downloaded += r.Downloaded
		skipped += r.Skipped
		failed += r.Failed
	})
	return
}

// OK reports whether r and every descendant completed.
func (r *Result) OK() bool {
	ok := true
	r.Walk(func(r *Result) {
		if r.Status != StatusCompleted {
			ok = false
		}
	})
	return ok
}

func (r *Result) String() string {
	name := r.Category
	if r.Subcategory != "" {
		name += ":" + r.Subcategory
	}
	s := fmt.Sprintf("%s [%s] %s: %d downloaded, %d skipped, %d failed", r.URL, name, r.Status, r.Downloaded, r.Skipped, r.Failed)
	if r.Err != nil {
		s += fmt.Sprintf(" (%v)", r.Err)
	}
	return s
}
