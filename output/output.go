// Package output reports per-file download outcomes to the user.
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Select picks a Printer for mode: "auto", "plain", "terminal", "color", "log" or "null". "auto" chooses "color" for
// a terminal and "plain" otherwise.
func Select(mode string, w *os.File, progress bool) (Printer, error) {
	if mode == "auto" {
		if isTerminal(w) {
			mode = "color"
		} else {
			mode = "plain"
			progress = false
		}
	}
	switch mode {
	case "plain":
		return NewPlain(w), nil
	case "terminal":
		return NewTerminal(w, false, progress), nil
	case "color":
		return NewTerminal(w, true, progress), nil
	case "log":
		return NewLog(zap.S().Named("output")), nil
	case "null":
		return Null{}, nil
	default:
		return nil, fmt.Errorf("unknown output mode %q", mode)
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// A Printer receives the outcome of each file of a job, and progress while it downloads. Implementations are safe
// for concurrent use.
type Printer interface {
	Start(path string)
	Skip(path string)
	Success(path string, attempts int)
	Failure(path string, err error, attempts int)
	Progress(path string, written int64, total int64)
}

// Null discards everything.
type Null struct{}

func (Null) Start(string) {}
func (Null) Skip(string) {}
func (Null) Success(string, int) {}
func (Null) Failure(string, error, int) {}
func (Null) Progress(string, int64, int64) {}

// Plain prints skipped files prefixed with "#" and downloaded files as-is, one per line, for use in pipes.
type Plain struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

func (p *Plain) Start(string) {}

func (p *Plain) Skip(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "#%s\n", path)
}

func (p *Plain) Success(path string, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, path)
}

func (p *Plain) Failure(string, error, int) {}

func (p *Plain) Progress(string, int64, int64) {}

const (
	ansiReset = "\033[0m"
	ansiDim   = "\033[2m"
	ansiGreen = "\033[1;32m"
	ansiRed   = "\033[1;31m"
	ansiError = "\033[0;31m"
)

// Terminal rewrites the current line as a file moves from started to done, optionally in color and with a progress
// bar while it downloads.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	color    bool
	progress bool
	width    int
	bars     map[string]*progressbar.ProgressBar
}

func NewTerminal(w io.Writer, color bool, progress bool) *Terminal {
	return &Terminal{
		w:        w,
		color:    color,
		progress: progress,
		width:    terminalWidth(),
		bars:     make(map[string]*progressbar.ProgressBar),
	}
}

func terminalWidth() int {
	if columns, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && columns > 0 {
		return columns
	}
	return 80
}

func (t *Terminal) paint(code string, s string) string {
	if !t.color {
		return s
	}
	return code + s + ansiReset
}

func (t *Terminal) Start(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.progress {
		fmt.Fprint(t.w, Shorten(path, t.width))
	}
}

func (t *Terminal) Skip(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.color {
		fmt.Fprintln(t.w, t.paint(ansiDim, Shorten(path, t.width)))
	} else {
		fmt.Fprintln(t.w, Shorten("#"+path, t.width))
	}
}

func (t *Terminal) Success(path string, _ int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishBar(path)
	if t.color {
		fmt.Fprintf(t.w, "\r%s\n", t.paint(ansiGreen, Shorten(path, t.width)))
	} else {
		fmt.Fprintf(t.w, "\r%s\n", Shorten("✔"+path, t.width))
	}
}

func (t *Terminal) Failure(path string, err error, attempts int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishBar(path)
	if t.color {
		fmt.Fprintf(t.w, "\r%s\n", t.paint(ansiRed, Shorten(path, t.width)))
		fmt.Fprintf(t.w, "%s %v (%d attempts)\n", t.paint(ansiError, "[Error]"), err, attempts)
	} else {
		fmt.Fprintf(t.w, "\r%s\n", Shorten("❌"+path, t.width))
		fmt.Fprintf(t.w, "[Error] %v (%d attempts)\n", err, attempts)
	}
}

func (t *Terminal) Progress(path string, written int64, total int64) {
	if !t.progress {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bar, ok := t.bars[path]
	if !ok {
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(t.w),
			progressbar.OptionSetDescription(Shorten(path, t.width/2)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSpinnerType(14),
		)
		t.bars[path] = bar
	}
	if total > 0 && bar.GetMax64() != total {
		bar.ChangeMax64(total)
	}
	_ = bar.Set64(written)
}

func (t *Terminal) finishBar(path string) {
	if bar, ok := t.bars[path]; ok {
		_ = bar.Finish()
		delete(t.bars, path)
	}
}

// Log reports through a zap logger, for unattended runs.
type Log struct {
	log *zap.SugaredLogger
}

func NewLog(log *zap.SugaredLogger) *Log {
	return &Log{log: log}
}

func (l *Log) Start(path string) {
	l.log.Debugw("download started", "path", path)
}

func (l *Log) Skip(path string) {
	l.log.Infow("skipped", "path", path)
}

func (l *Log) Success(path string, attempts int) {
	l.log.Infow("downloaded", "path", path, "attempts", attempts)
}

func (l *Log) Failure(path string, err error, attempts int) {
	l.log.Errorw("download failed", "path", path, "attempts", attempts, "error", err)
}

func (l *Log) Progress(string, int64, int64) {}

// Shorten cuts the middle out of s so it fits in width runes.
func Shorten(s string, width int) string {
	runes := []rune(s)
	if width < 4 || len(runes) <= width {
		return s
	}
	half := width / 2
	return string(runes[:half-1]) + "…" + string(runes[len(runes)-half-width%2:])
}
