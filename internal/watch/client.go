package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/xxl-executor/internal/api"
)

const fetchTimeout = 2 * time.Second

// --- Message types ---

type healthMsg api.HealthzResponse

type pollMsg struct{}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// HealthURL returns the healthz endpoint under an executor address.
func HealthURL(address string) string {
	return strings.TrimRight(address, "/") + "/healthz"
}

// fetchHealth queries the executor's /healthz endpoint.
func fetchHealth(client *http.Client, url string) tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errMsg{err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return errMsg{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errMsg{fmt.Errorf("healthz returned status %d", resp.StatusCode)}
	}
	var h api.HealthzResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg{fmt.Errorf("decode healthz: %w", err)}
	}
	return healthMsg(h)
}

func (m Model) fetchCmd() tea.Cmd {
	return func() tea.Msg { return fetchHealth(m.client, m.url) }
}

func (m Model) scheduleFetch() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}
