package watch

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultInterval = 2 * time.Second
	historySize     = 60
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	url      string
	client   *http.Client
	interval time.Duration

	width int

	health    healthMsg
	connected bool
	lastCheck time.Time
	lastError string
	history   []int
	peak      int

	spinner spinner.Model
	theme   Theme
}

// New creates a watch model polling healthURL every interval.
func New(healthURL string, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	theme := NewDefaultTheme()
	return Model{
		url:      healthURL,
		client:   &http.Client{},
		interval: interval,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Highlight)),
		theme:    theme,
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(healthURL string, interval time.Duration) error {
	_, err := tea.NewProgram(New(healthURL, interval), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetchCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollMsg:
		return m, m.fetchCmd()

	case healthMsg:
		m.health = msg
		m.connected = true
		m.lastCheck = time.Now()
		m.lastError = ""
		m.record(msg.RunningJobs)
		return m, m.scheduleFetch()

	case errMsg:
		m.connected = false
		m.lastError = msg.Error()
		return m, m.scheduleFetch()
	}

	return m, nil
}

func (m *Model) record(running int) {
	m.history = append(m.history, running)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	if running > m.peak {
		m.peak = running
	}
}

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	innerWidth := width - 6

	var status string
	switch {
	case !m.connected && m.lastCheck.IsZero():
		status = m.theme.Dim.Render("CONNECTING")
	case !m.connected:
		status = m.theme.StatusFailed.Render("UNREACHABLE")
	case m.health.RunningJobs > 0:
		status = m.theme.StatusBusy.Render("BUSY")
	default:
		status = m.theme.StatusOK.Render("IDLE")
	}

	title := m.theme.Title.Render("XXL EXECUTOR WATCH") + " " + m.spinner.View()
	target := m.theme.Dim.Render(m.url)

	stats := fmt.Sprintf(" %s  up %s  running: %d  peak: %d",
		status,
		formatDuration(time.Duration(m.health.UptimeSeconds)*time.Second),
		m.health.RunningJobs,
		m.peak,
	)

	lastCheck := "never"
	if !m.lastCheck.IsZero() {
		lastCheck = m.lastCheck.Format("15:04:05")
	}
	checked := m.theme.Dim.Render(" last check: " + lastCheck)

	chart := " " + m.theme.Spark.Render(sparkline(m.history, innerWidth-2))

	parts := []string{title, target, stats, checked, chart}
	body := m.theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))

	views := []string{body}
	if m.lastError != "" {
		views = append(views, m.theme.StatusFailed.Render(" ⚠ "+m.lastError))
	}
	views = append(views, m.theme.Dim.Render(" [q] Quit • [r] Refresh"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, views...))
}

// sparkline renders the newest samples scaled to the largest one.
func sparkline(samples []int, width int) string {
	if width <= 0 || len(samples) == 0 {
		return ""
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	maxV := 0
	for _, v := range samples {
		maxV = max(maxV, v)
	}
	var b strings.Builder
	for _, v := range samples {
		idx := 0
		if maxV > 0 {
			idx = v * (len(sparkLevels) - 1) / maxV
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, mins, s)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm%02ds", mins, s)
	}
	return fmt.Sprintf("%ds", s)
}
