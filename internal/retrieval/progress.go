package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback reports corpus scan progress.
type ProgressCallback interface {
	// OnStart is called when a scan begins with the number of corpus items.
	OnStart(total int)

	// OnProgress is called after each evaluated item.
	OnProgress(current, total int)

	// OnComplete is called when the scan is finished.
	OnComplete()
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(total int)             {}
func (NoOpProgressCallback) OnProgress(current, total int) {}
func (NoOpProgressCallback) OnComplete()                   {}

// ConsoleProgressCallback draws a progress bar, typically on stderr.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	lastUpdate     time.Time
	updateInterval time.Duration
	mutex          sync.Mutex
	startTime      time.Time
}

// NewConsoleProgressCallback creates a console progress reporter.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithUpdateInterval sets how frequently the bar is redrawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	if total == 0 {
		return
	}

	percent := float64(current) / float64(total) * 100.0
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, percent)

	if elapsed := now.Sub(c.startTime); elapsed > 0 && current > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, status)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elapsed := time.Since(c.startTime)
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, elapsed.Round(time.Millisecond))
}

// LogProgressCallback logs progress every interval items.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	interval  int
	mutex     sync.Mutex
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, interval int) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 50
	}
	return &LogProgressCallback{logger: logger, level: level, interval: interval}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "Corpus scan started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Log(context.Background(), l.level, "Corpus scan progress",
		"current", current,
		"total", total,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.logger.Log(context.Background(), l.level, "Corpus scan completed",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

// ThrottledProgressCallback forwards at most one OnProgress per interval,
// always forwarding the final update.
type ThrottledProgressCallback struct {
	wrapped     ProgressCallback
	minInterval time.Duration
	lastUpdate  time.Time
	mutex       sync.Mutex
}

// NewThrottledProgressCallback wraps another callback.
func NewThrottledProgressCallback(wrapped ProgressCallback, minInterval time.Duration) *ThrottledProgressCallback {
	return &ThrottledProgressCallback{wrapped: wrapped, minInterval: minInterval}
}

func (t *ThrottledProgressCallback) OnStart(total int) { t.wrapped.OnStart(total) }

func (t *ThrottledProgressCallback) OnProgress(current, total int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := time.Now()
	if current == total || t.lastUpdate.IsZero() || now.Sub(t.lastUpdate) >= t.minInterval {
		t.lastUpdate = now
		t.wrapped.OnProgress(current, total)
	}
}

func (t *ThrottledProgressCallback) OnComplete() { t.wrapped.OnComplete() }
