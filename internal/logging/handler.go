package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept per handler.
	MaxBufferedLines = 100
)

// OutputHandler is an io.Writer for a child process's stdout or stderr.
// It splits the stream into lines, logs each one against the task name and
// keeps the most recent lines for the failure summary.
type OutputHandler struct {
	task   string
	stream string
	logger *slog.Logger

	mu      sync.Mutex
	partial []byte

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	count  int
}

// NewOutputHandler creates a handler for one stream ("stdout" or "stderr")
// of the named task.
func NewOutputHandler(task, stream string, logger *slog.Logger) *OutputHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OutputHandler{
		task:   task,
		stream: stream,
		logger: logger,
		buffer: make([]string, MaxBufferedLines),
	}
}

// Write implements io.Writer. Incomplete trailing data is held until the
// next newline or Flush.
func (h *OutputHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	h.partial = append(h.partial, p...)
	var lines []string
	for {
		i := bytes.IndexByte(h.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(h.partial[:i], "\r")))
		h.partial = h.partial[i+1:]
	}
	// A runaway line without newline is cut into MaxLineLength pieces.
	for len(h.partial) > MaxLineLength {
		lines = append(lines, string(h.partial[:MaxLineLength]))
		h.partial = h.partial[MaxLineLength:]
	}
	h.mu.Unlock()

	for _, line := range lines {
		h.HandleLine(line)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (h *OutputHandler) Flush() {
	h.mu.Lock()
	rest := string(h.partial)
	h.partial = nil
	h.mu.Unlock()

	if rest != "" {
		h.HandleLine(rest)
	}
}

// HandleLine processes a single output line.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	if h.count < MaxBufferedLines {
		h.count++
	}
	h.mu.Unlock()

	h.logger.Log(context.Background(), h.classifyLine(line), "task_output",
		"task", h.task,
		"stream", h.stream,
		"line", line,
	)
}

// classifyLine picks a log level from the line content.
func (h *OutputHandler) classifyLine(line string) slog.Level {
	if line == "" {
		return slog.LevelDebug
	}
	lower := strings.ToLower(line)
	for _, p := range ErrorPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return slog.LevelWarn
		}
	}
	return slog.LevelInfo
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > h.count {
		n = h.count
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}
	return lines
}

// ErrorPatterns are substrings (matched case-insensitively) that mark a
// line as a warning and are counted for the exit summary.
var ErrorPatterns = []string{
	"npm ERR!",
	"error TS",
	"Error:",
	"FAIL",
	"failed",
	"command not found",
	"ELIFECYCLE",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, pattern := range ErrorPatterns {
			if strings.Contains(lower, strings.ToLower(pattern)) {
				counts[pattern]++
			}
		}
	}
	return counts
}
