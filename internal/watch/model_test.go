package watch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:9999/healthz", HealthURL("http://127.0.0.1:9999/"))
	assert.Equal(t, "http://h:1/xxl/healthz", HealthURL("http://h:1/xxl"))
}

func TestFetchHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","uptime_seconds":75,"running_jobs":3}`))
	}))
	defer srv.Close()

	msg := fetchHealth(srv.Client(), HealthURL(srv.URL))
	h, ok := msg.(healthMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, int64(75), h.UptimeSeconds)
	assert.Equal(t, 3, h.RunningJobs)

	msg = fetchHealth(srv.Client(), srv.URL+"/missing")
	_, ok = msg.(errMsg)
	assert.True(t, ok)
}

func TestUpdateRecordsHealth(t *testing.T) {
	m := New("http://127.0.0.1:9999/healthz", time.Second)

	next, cmd := m.Update(healthMsg{Status: "ok", UptimeSeconds: 3700, RunningJobs: 2})
	assert.NotNil(t, cmd)
	m = next.(Model)
	assert.True(t, m.connected)
	assert.Equal(t, []int{2}, m.history)
	assert.Equal(t, 2, m.peak)

	next, _ = m.Update(healthMsg{Status: "ok", UptimeSeconds: 3702})
	m = next.(Model)
	assert.Equal(t, 2, m.peak)

	view := m.View()
	assert.Contains(t, view, "IDLE")
	assert.Contains(t, view, "1h01m42s")

	next, _ = m.Update(errMsg{errors.New("connection refused")})
	m = next.(Model)
	assert.False(t, m.connected)
	assert.Contains(t, m.View(), "UNREACHABLE")
	assert.Contains(t, m.View(), "connection refused")
}

func TestUpdateQuit(t *testing.T) {
	m := New("http://x/healthz", 0)
	assert.Equal(t, DefaultInterval, m.interval)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHistoryBounded(t *testing.T) {
	m := New("http://x/healthz", time.Second)
	for i := range historySize + 10 {
		m.record(i % 4)
	}
	assert.Len(t, m.history, historySize)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil, 10))
	assert.Equal(t, "▁▁", sparkline([]int{0, 0}, 10))
	assert.Equal(t, "▁█", sparkline([]int{0, 4}, 10))
	assert.Equal(t, "▁█", sparkline([]int{9, 9, 0, 4}, 2))
}
