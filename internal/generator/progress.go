package generator

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ProgressCallback receives page progress for one volume at a time.
type ProgressCallback interface {
	// OnStart is called before the first page with the page count.
	OnStart(name string, total int)
	// OnProgress is called after each page.
	OnProgress(current, total int)
	// OnComplete is called after the last page.
	OnComplete()
	// OnError is called for each page error, absorbed or not.
	OnError(current int, err error)
}

// NoOpProgress reports nothing.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(string, int) {}
func (NoOpProgress) OnProgress(int, int) {}
func (NoOpProgress) OnComplete()         {}
func (NoOpProgress) OnError(int, error)  {}

// ConsoleProgress draws a progress bar.
type ConsoleProgress struct {
	writer         io.Writer
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	name       string
	lastUpdate time.Time
	startTime  time.Time
}

// NewConsoleProgress creates a progress bar writing to w (stderr when nil).
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgress{writer: w, width: 40, updateInterval: 100 * time.Millisecond}
}

// WithWidth sets the bar width.
func (c *ConsoleProgress) WithWidth(width int) *ConsoleProgress {
	c.width = width
	return c
}

// WithUpdateInterval sets the minimum time between redraws.
func (c *ConsoleProgress) WithUpdateInterval(d time.Duration) *ConsoleProgress {
	c.updateInterval = d
	return c
}

func (c *ConsoleProgress) OnStart(name string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	c.draw(0, total, c.startTime)
}

func (c *ConsoleProgress) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	c.draw(current, total, now)
}

func (c *ConsoleProgress) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%s: done in %v\n", c.name, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgress) OnError(current int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%s: error at page %d: %v\n", c.name, current, err)
}

func (c *ConsoleProgress) draw(current, total int, now time.Time) {
	if total <= 0 {
		return
	}
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s [%s] %d/%d (%.1f%%)", c.name, bar, current, total, float64(current)/float64(total)*100)

	if elapsed := now.Sub(c.startTime); elapsed > 0 && current > 0 {
		status += fmt.Sprintf(" %.2f pages/s", float64(current)/elapsed.Seconds())
		if current < total {
			eta := time.Duration(float64(elapsed) * float64(total-current) / float64(current))
			status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgress logs progress through slog every interval pages.
type LogProgress struct {
	logger   *slog.Logger
	interval int

	name      string
	lastLog   int
	startTime time.Time
}

// NewLogProgress creates a log based reporter (slog.Default when nil).
func NewLogProgress(logger *slog.Logger, interval int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, interval: max(interval, 1)}
}

func (l *LogProgress) OnStart(name string, total int) {
	l.name = name
	l.lastLog = 0
	l.startTime = time.Now()
	l.logger.Info("Processing pages", "volume", name, "total", total)
}

func (l *LogProgress) OnProgress(current, total int) {
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Info("Progress update",
		"volume", l.name,
		"current", current,
		"total", total,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgress) OnComplete() {
	l.logger.Info("Pages completed", "volume", l.name, "elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgress) OnError(current int, err error) {
	l.logger.Error("Page error", "volume", l.name, "current", current, "error", err)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// NewProgress returns a progress bar on a terminal and a log reporter
// otherwise.
func NewProgress(w io.Writer) ProgressCallback {
	if IsTerminal(w) {
		return NewConsoleProgress(w)
	}
	return NewLogProgress(nil, 25)
}
