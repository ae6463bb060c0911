package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

// PartSuffix is appended to the target path while a file is being written.
const PartSuffix = ".part"

// progressWriter ignores the data but reports running byte counts. Put it last in an io.MultiWriter so failed writes
// aren't counted.
type progressWriter struct {
	path     string
	written  int64
	total    int64
	progress ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	w.progress(w.path, w.written, w.total)
	return len(p), nil
}

// saveStream writes stream to <path>.part and renames it to path once complete, so path only ever holds a whole file.
func saveStream(ctx context.Context, path string, stream io.Reader, total int64, progress ProgressFunc) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	partPath := path + PartSuffix
	f, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open target file: %w", err)
	}
	var w io.Writer = f
	if progress != nil {
		progress(path, 0, total)
		w = io.MultiWriter(f, &progressWriter{path: path, total: total, progress: progress})
	}
	n, err := io.Copy(w, gallery_archiver.NewContextReader(ctx, stream))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(partPath)
		return n, fmt.Errorf("failed to save stream: %w", err)
	}
	if err := os.Rename(partPath, path); err != nil {
		_ = os.Remove(partPath)
		return n, fmt.Errorf("failed to rename %v: %w", partPath, err)
	}
	return n, nil
}
