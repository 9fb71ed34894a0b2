package joblog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/xxl-executor/internal/protocol"
)

// maxLineBytes bounds a single log line during the daily-layout scan.
const maxLineBytes = 1 << 20

// Read returns the 1-indexed inclusive line range of the (scheduleTime,
// logID) log starting at fromLine. A fromLine past the last line yields empty
// content with ToLineNum = fromLine-1. IsEnd is always true: logs are served
// whole, never streamed in chunks.
//
// A missing file is an error: the job has not produced output yet.
func (m *Manager) Read(scheduleTime, logID int64, fromLine int) (protocol.LogResult, error) {
	path := m.Path(scheduleTime, logID)

	var (
		lines []string
		err   error
	)
	if m.layout == LayoutDaily {
		lines, err = scanNamespace(path, namespaceSuffix(m.scheduleDay(scheduleTime, shortDayFormat), logID))
	} else {
		lines, err = readAllLines(path)
	}
	if err != nil {
		return protocol.LogResult{}, err
	}
	return lineWindow(lines, fromLine), nil
}

// readAllLines reads the whole file. A trailing partial line (the writer is
// mid-append) is returned as-is.
func readAllLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job log %s: %w", filepath.Base(path), err)
	}
	return splitLines(string(data)), nil
}

// scanNamespace collects the lines belonging to one invocation in a daily
// file, stopping after its end marker.
func scanNamespace(path, suffix string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read job log %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	token := suffix + " "
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		idx := strings.Index(line, token)
		if idx < 0 {
			continue
		}
		lines = append(lines, line)
		if line[idx+len(token):] == endMarker {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan job log %s: %w", filepath.Base(path), err)
	}
	return lines, nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func lineWindow(lines []string, fromLine int) protocol.LogResult {
	if fromLine < 1 {
		fromLine = 1
	}
	if fromLine > len(lines) {
		return protocol.LogResult{FromLineNum: fromLine, ToLineNum: fromLine - 1, IsEnd: true}
	}
	return protocol.LogResult{
		FromLineNum: fromLine,
		ToLineNum:   len(lines),
		LogContent:  strings.Join(lines[fromLine-1:], "\n"),
		IsEnd:       true,
	}
}
