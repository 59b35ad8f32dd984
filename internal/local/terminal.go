package local

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/lexiqai/voice-assistant/internal/session"
)

const barWidth = 40

// Terminal renders session state as status lines and the speaking level as a bar
type Terminal struct {
	out io.Writer

	mu        sync.Mutex
	last      session.Snapshot
	rendered  bool
	barActive bool
}

// NewTerminal creates a presenter writing to out
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Render prints a line when the visible state changes
func (t *Terminal) Render(s session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rendered && sameView(t.last, s) {
		return
	}
	t.endBar()

	if s.Loading && s.Quote != "" && (!t.rendered || !t.last.Loading) {
		fmt.Fprintf(t.out, "\"%s\"\n", s.Quote)
	}
	if s.Error != "" && s.Error != t.last.Error {
		fmt.Fprintf(t.out, "! %s\n", s.Error)
	}
	if line := statusLine(s); line != "" {
		fmt.Fprintln(t.out, line)
	}

	t.last = s
	t.rendered = true
}

// RenderLevel redraws the level bar in place
func (t *Terminal) RenderLevel(l session.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\r%s %.1fx", levelBar(l.Level, barWidth), l.Gain)
	t.barActive = true
}

func (t *Terminal) endBar() {
	if t.barActive {
		fmt.Fprintln(t.out)
		t.barActive = false
	}
}

func sameView(a, b session.Snapshot) bool {
	return a.State == b.State && a.Loading == b.Loading && a.Error == b.Error
}

func statusLine(s session.Snapshot) string {
	if s.Loading {
		return "Warming up..."
	}
	switch s.State {
	case session.StateIdle:
		return "Press Enter to record."
	case session.StateRecording:
		return "Recording... press Enter to stop."
	case session.StateProcessing:
		return "Thinking..."
	case session.StateSpeaking:
		return "Speaking."
	default:
		return ""
	}
}

func levelBar(level float64, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "]"
}
