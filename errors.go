package gallery_archiver

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateExtractor = errors.New("duplicate extractor name")
	ErrInvalidExtractor   = errors.New("invalid extractor")
	ErrNoMatch            = errors.New("no extractor matched the input")
	ErrUnknownExtractor   = errors.New("unknown extractor")

	// ErrNotFound is yielded by an extractor when its target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAbort is yielded by an extractor to stop early; the job still completes.
	ErrAbort = errors.New("extraction aborted")
	// ErrAuthRequired means credentials are missing or rejected, and is fatal to the job.
	ErrAuthRequired = errors.New("authentication required")
)

// A ResolutionError means no extractor could be found for a URL.
type ResolutionError struct {
	URL       string
	Extractor string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Extractor != "" {
		return fmt.Sprintf("resolve %q with %s: %v", e.URL, e.Extractor, e.Err)
	}
	return fmt.Sprintf("resolve %q: %v", e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// A ConstructionError means the matched extractor failed to initialize.
type ConstructionError struct {
	Category    string
	Subcategory string
	Err         error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct extractor %s:%s: %v", e.Category, e.Subcategory, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
