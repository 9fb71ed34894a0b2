// Package handler defines the job handler contract and the immutable table
// that maps handler names, as configured in the admin's JobHandler field, to
// handler functions.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Func is the single handler contract. logger writes into the invocation's
// job log, params is the decoded executorParams object and shared is the
// value the executor was built with (database handles and the like).
//
// A nil error means success; the returned value is written to the job log.
// Handlers should watch ctx: it is cancelled when the invocation times out.
type Func func(ctx context.Context, logger *slog.Logger, params Params, shared any) (any, error)

// Table is an immutable name -> Func mapping. It is safe for concurrent use
// because nothing mutates it after NewTable returns.
type Table struct {
	handlers map[string]Func
}

// NewTable copies handlers into a Table. It fails on an empty mapping, an
// empty name or a nil function.
func NewTable(handlers map[string]Func) (*Table, error) {
	if len(handlers) == 0 {
		return nil, fmt.Errorf("at least one job handler is required")
	}
	t := &Table{handlers: make(map[string]Func, len(handlers))}
	for name, fn := range handlers {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("job handler name must not be empty")
		}
		if fn == nil {
			return nil, fmt.Errorf("job handler %q is nil", name)
		}
		t.handlers[name] = fn
	}
	return t, nil
}

// Get returns the handler registered under name.
func (t *Table) Get(name string) (Func, bool) {
	fn, ok := t.handlers[name]
	return fn, ok
}

// Names returns all handler names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Params is the decoded executorParams object.
type Params map[string]any

// ParseParams decodes the JSON-encoded executorParams string.
// An empty or blank string yields an empty Params, not an error.
func ParseParams(raw string) (Params, error) {
	if strings.TrimSpace(raw) == "" {
		return Params{}, nil
	}
	var p Params
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("executorParams must be a JSON object: %w", err)
	}
	if p == nil {
		p = Params{}
	}
	return p, nil
}

// String returns params[key] as a string, or "" when absent.
// Non-string values are formatted with %v.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Int returns params[key] as an int, or def when absent or not numeric.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}
