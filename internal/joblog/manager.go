// Package joblog derives job log locations from scheduling metadata and
// provides append-only writers and line-range reads over them.
//
// Two layouts are supported. In the per-run layout every invocation owns
// <dir>/YYYY-MM-DD-<logId>.log. In the daily layout all invocations of a day
// share <dir>/YYYY-MM-DD.log and every line is prefixed with the invocation's
// namespace, <handler>-YYMMDD-<logId>-executing; a final "<namespace> end"
// line marks the end of an invocation.
//
// Locations are a pure function of (schedule time, log id), so the /log
// endpoint can find a file without talking to the writer.
package joblog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/xxl-executor/internal/log"
)

// Layout selects how job logs are laid out on disk.
type Layout string

const (
	LayoutPerRun Layout = "per-run"
	LayoutDaily  Layout = "daily"
)

const (
	dayFormat      = "2006-01-02"
	shortDayFormat = "060102"
	logExt         = ".log"
	endMarker      = "end"
)

// ParseLayout validates a layout name. Empty selects the per-run layout.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutPerRun:
		return LayoutPerRun, nil
	case LayoutDaily:
		return LayoutDaily, nil
	default:
		return "", fmt.Errorf("unknown log layout %q (want %q or %q)", s, LayoutPerRun, LayoutDaily)
	}
}

// Manager owns the job log directory.
type Manager struct {
	dir    string
	layout Layout
	loc    *time.Location
	mirror io.Writer
	now    func() time.Time

	// mu serializes appends so interleaved writers in the daily layout never
	// split each other's lines.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithMirror copies every job log line to w as well (stderr in debug mode).
func WithMirror(w io.Writer) Option {
	return func(m *Manager) { m.mirror = w }
}

// WithLocation sets the time zone used to turn schedule times into dates.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.loc = loc }
}

// New creates the log directory if needed and returns a Manager over it.
func New(dir string, layout Layout, opts ...Option) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("job log directory is empty")
	}
	layout, err := ParseLayout(string(layout))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job log directory: %w", err)
	}

	m := &Manager{
		dir:    dir,
		layout: layout,
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dir returns the job log directory.
func (m *Manager) Dir() string { return m.dir }

// Layout returns the configured layout.
func (m *Manager) Layout() Layout { return m.layout }

func (m *Manager) scheduleDay(scheduleTime int64, format string) string {
	return time.UnixMilli(scheduleTime).In(m.loc).Format(format)
}

// Path returns the file holding the log of (scheduleTime, logID).
// scheduleTime is in unix millis.
func (m *Manager) Path(scheduleTime, logID int64) string {
	day := m.scheduleDay(scheduleTime, dayFormat)
	if m.layout == LayoutDaily {
		return filepath.Join(m.dir, day+logExt)
	}
	return filepath.Join(m.dir, fmt.Sprintf("%s-%d%s", day, logID, logExt))
}

// Namespace returns the name an invocation logs under.
func (m *Manager) Namespace(handlerName string, scheduleTime, logID int64) string {
	if m.layout == LayoutDaily {
		return handlerName + namespaceSuffix(m.scheduleDay(scheduleTime, shortDayFormat), logID)
	}
	return fmt.Sprintf("%s-%d", m.scheduleDay(scheduleTime, dayFormat), logID)
}

// namespaceSuffix is the handler-independent tail of a daily namespace. The
// reader only knows (date, logId), so it matches on this.
func namespaceSuffix(shortDay string, logID int64) string {
	return fmt.Sprintf("-%s-%d-executing", shortDay, logID)
}

// Open returns an append-only writer for one invocation.
func (m *Manager) Open(handlerName string, scheduleTime, logID int64) (*Writer, error) {
	path := m.Path(scheduleTime, logID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open job log: %w", err)
	}

	w := &Writer{
		m:         m,
		f:         f,
		path:      path,
		namespace: m.Namespace(handlerName, scheduleTime, logID),
	}
	if m.layout == LayoutDaily {
		w.prefix = w.namespace + " "
	}
	return w, nil
}

// Prune removes job log files last modified more than retention ago and
// returns how many were removed.
func (m *Manager) Prune(retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("read job log directory: %w", err)
	}

	cutoff := m.now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), logExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// RunRetention prunes expired job logs now and then every interval until
// ctx is cancelled. A non-positive retention disables pruning.
func (m *Manager) RunRetention(ctx context.Context, retention, interval time.Duration) error {
	if retention <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}
	logger := log.WithComponent("joblog")

	prune := func() {
		n, err := m.Prune(retention)
		if err != nil {
			logger.Error("failed to prune job logs", "dir", m.dir, "error", err)
			return
		}
		if n > 0 {
			logger.Info("pruned job logs", "dir", m.dir, "removed", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			prune()
		}
	}
}
