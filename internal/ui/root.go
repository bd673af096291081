// Package ui implements the live change view.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// maxLines bounds the scrollback of the change stream.
const maxLines = 10_000

type Root struct {
	Width, Height int
	Theme         Theme
	Title         string

	viewport   viewport.Model
	lines      []string
	autoscroll bool

	cycles       uint64
	changes      int
	failed       []string
	lastChangeAt time.Time

	ShuttingDown bool
}

func NewRoot(theme Theme, title string) *Root {
	return &Root{
		Theme:      theme,
		Title:      title,
		viewport:   viewport.New(10, 10), // will be overwritten on the first resize
		autoscroll: true,
	}
}

func (r *Root) Init() tea.Cmd {
	return tick()
}

func (r *Root) setSize(width, height int) {
	r.Width = width
	r.Height = height
	// border (2) + header (1) + bar (1)
	r.viewport.Width = max(width-2, 1)
	r.viewport.Height = max(height-4, 1)
	r.refresh()
}

func (r *Root) refresh() {
	if len(r.lines) == 0 {
		r.viewport.SetContent(r.Theme.MutedTextStyle.Render("Waiting for changes..."))
		return
	}
	r.viewport.SetContent(strings.Join(r.lines, "\n"))
	if r.autoscroll {
		r.viewport.GotoBottom()
	}
}

// Lines returns the change lines currently held.
func (r *Root) Lines() []string {
	return r.lines
}

func (r *Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		r.setSize(v.Width, v.Height)
		return r, nil

	case tickMsg:
		// re-render relative times
		return r, tick()

	case CycleMsg:
		r.cycles = v.Number
		r.failed = v.Failed
		if v.Changes > 0 {
			r.changes += v.Changes
			r.lastChangeAt = v.At
		}
		if rendered := strings.TrimRight(v.Rendered, "\n"); rendered != "" {
			r.lines = append(r.lines, strings.Split(rendered, "\n")...)
			if overflow := len(r.lines) - maxLines; overflow > 0 {
				r.lines = r.lines[overflow:]
			}
		}
		r.refresh()
		return r, nil

	case tea.KeyMsg:
		switch v.String() {
		case "q", "ctrl+c", "esc":
			r.ShuttingDown = true
			return r, tea.Quit
		case "s":
			r.autoscroll = !r.autoscroll
			if r.autoscroll {
				r.viewport.GotoBottom()
			}
		case "c":
			r.lines = nil
			r.refresh()
		default:
			return r, ScrollViewport(v, &r.viewport)
		}
	}
	return r, nil
}

func (r *Root) header() string {
	last := "no changes yet"
	if !r.lastChangeAt.IsZero() {
		last = "last change " + humanize.Time(r.lastChangeAt)
	}
	status := fmt.Sprintf("cycle %s | %s changes | %s",
		humanize.Comma(int64(r.cycles)), humanize.Comma(int64(r.changes)), last)
	if len(r.failed) > 0 {
		status += " | " + r.Theme.ErrorTextStyle.Render(fmt.Sprintf("%d failed", len(r.failed)))
	}
	return r.Theme.PrimaryTextStyle.Render(r.Title) + " " + r.Theme.MutedTextStyle.Render(status)
}

func (r *Root) renderBar() string {
	help := NewShortcuts(
		"q", "quit",
		"↑/↓", "scroll",
		"c", "clear",
	).Add("s", ternary(r.autoscroll, "autoscroll on", "autoscroll off")).Render(r.Theme)

	breadcrumbs := r.Theme.BreadcrumbBarStyle.Render("Changes")
	helpRender := r.Theme.HelpBarStyle.
		Width(max(r.Width-lipgloss.Width(breadcrumbs), 0)).
		Render(help)
	return lipgloss.JoinHorizontal(lipgloss.Top, helpRender, breadcrumbs)
}

func (r *Root) View() string {
	if r.Height == 0 && r.Width == 0 {
		return "" // no size yet
	}
	if r.ShuttingDown {
		// this makes sure the whole screen won't show in the terminal after quitting
		return r.Theme.MutedTextStyle.Render("Bye!")
	}
	return r.header() + "\n" +
		r.Theme.BorderContainerStyle.Render(r.viewport.View()) + "\n" +
		r.renderBar()
}
