package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg struct{}

// CycleMsg carries one completed poll to the UI.
type CycleMsg struct {
	Number  uint64
	At      time.Time
	Changes int
	Failed  []string
	// Rendered holds the formatted changes, one per line.
	Rendered string
}

// NewCycleMsg creates the message for a rendered poll cycle.
func NewCycleMsg(number uint64, at time.Time, changes int, failed []string, rendered string) tea.Msg {
	return CycleMsg{
		Number:   number,
		At:       at,
		Changes:  changes,
		Failed:   failed,
		Rendered: rendered,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func ScrollViewport(k tea.KeyMsg, vp *viewport.Model) tea.Cmd {
	switch k.String() {
	case "up", "k":
		vp.ScrollUp(1)
	case "down", "j":
		vp.ScrollDown(1)
	case "pgup":
		vp.PageUp()
	case "pgdown":
		vp.PageDown()
	case "home", "g":
		vp.GotoTop()
	case "end", "G":
		vp.GotoBottom()
	case "left":
		vp.ScrollLeft(1)
	case "right":
		vp.ScrollRight(1)
	}
	return nil
}

func ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
