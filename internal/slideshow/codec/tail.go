package codec

import (
	"bytes"
	"strings"
	"sync"
)

// StderrTail keeps the last lines written to it. ffmpeg can be very chatty on
// failure and only the end of its output explains what went wrong.
type StderrTail struct {
	mu    sync.Mutex
	lines []string
	part  bytes.Buffer
	max   int
}

func NewStderrTail(maxLines int) *StderrTail {
	if maxLines <= 0 {
		maxLines = 20
	}
	return &StderrTail{max: maxLines}
}

func (t *StderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range p {
		if c == '\n' {
			t.push(t.part.String())
			t.part.Reset()
			continue
		}
		if t.part.Len() < 4096 {
			t.part.WriteByte(c)
		}
	}
	return len(p), nil
}

func (t *StderrTail) push(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

// String returns the retained lines, including an unterminated last line.
func (t *StderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := t.lines
	if s := strings.TrimSpace(t.part.String()); s != "" {
		lines = append(append([]string(nil), lines...), s)
		if len(lines) > t.max {
			lines = lines[len(lines)-t.max:]
		}
	}
	return strings.Join(lines, "\n")
}
