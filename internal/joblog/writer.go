package joblog

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
)

// Writer appends lines to one invocation's log. It implements io.Writer so it
// can back a slog handler; every line written is prefixed with the namespace
// in the daily layout.
//
// Writes after Close are not an error: a handler that outlives its timeout
// keeps logging, and those lines only reach the mirror.
type Writer struct {
	m         *Manager
	f         *os.File
	path      string
	namespace string
	prefix    string
	closed    bool
}

// Path returns the file this writer appends to.
func (w *Writer) Path() string { return w.path }

// Namespace returns the invocation's log namespace.
func (w *Writer) Namespace() string { return w.namespace }

// Write appends p, split into lines.
func (w *Writer) Write(p []byte) (int, error) {
	var buf bytes.Buffer
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		buf.WriteString(w.prefix)
		buf.Write(line)
		buf.WriteByte('\n')
	}

	w.m.mu.Lock()
	defer w.m.mu.Unlock()

	if w.m.mirror != nil {
		_, _ = w.m.mirror.Write(buf.Bytes())
	}
	if w.closed {
		return len(p), nil
	}
	if _, err := w.f.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("append job log: %w", err)
	}
	return len(p), nil
}

// WriteLine appends a single pre-formatted line.
func (w *Writer) WriteLine(line string) error {
	_, err := w.Write([]byte(line + "\n"))
	return err
}

// Logger returns a text slog.Logger writing into this log. All levels are
// recorded so the admin sees the full trace.
func (w *Writer) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Close writes the end marker (daily layout) and closes the file. It is safe
// to call more than once.
func (w *Writer) Close() error {
	w.m.mu.Lock()
	closed := w.closed
	w.m.mu.Unlock()
	if closed {
		return nil
	}

	if w.m.layout == LayoutDaily {
		if err := w.WriteLine(endMarker); err != nil {
			return err
		}
	}

	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close job log: %w", err)
	}
	return nil
}
