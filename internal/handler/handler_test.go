package handler

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, logger *slog.Logger, params Params, shared any) (any, error) {
	return nil, nil
}

func TestNewTable(t *testing.T) {
	src := map[string]Func{"b": noop, "a": noop}
	table, err := NewTable(src)
	require.NoError(t, err)

	_, ok := table.Get("a")
	assert.True(t, ok)
	_, ok = table.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, table.Names())

	// Mutating the source map must not leak into the table.
	delete(src, "a")
	_, ok = table.Get("a")
	assert.True(t, ok)
}

func TestNewTableRejectsBadInput(t *testing.T) {
	_, err := NewTable(nil)
	assert.Error(t, err)

	_, err = NewTable(map[string]Func{" ": noop})
	assert.Error(t, err)

	_, err = NewTable(map[string]Func{"x": nil})
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Params
		wantErr bool
	}{
		{name: "empty", raw: "", want: Params{}},
		{name: "blank", raw: "   ", want: Params{}},
		{name: "null", raw: "null", want: Params{}},
		{name: "object", raw: `{"a":"x","n":3}`, want: Params{"a": "x", "n": float64(3)}},
		{name: "malformed", raw: `{"a":`, wantErr: true},
		{name: "not an object", raw: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParamsAccessors(t *testing.T) {
	p := Params{"s": "hello", "n": float64(4), "b": true}

	assert.Equal(t, "hello", p.String("s"))
	assert.Equal(t, "true", p.String("b"))
	assert.Equal(t, "", p.String("missing"))
	assert.Equal(t, 4, p.Int("n", 1))
	assert.Equal(t, 1, p.Int("s", 1))
	assert.Equal(t, 9, p.Int("missing", 9))
}
