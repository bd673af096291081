package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

type Theme struct {
	TimeStyle   lipgloss.Style
	PathStyle   lipgloss.Style
	MutedStyle  lipgloss.Style
	StringStyle lipgloss.Style
	NumberStyle lipgloss.Style
	BoolStyle   lipgloss.Style
	DataStyle   lipgloss.Style

	AddedStyle    lipgloss.Style
	RemovedStyle  lipgloss.Style
	ModifiedStyle lipgloss.Style
}

var DarkTheme = Theme{
	TimeStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	PathStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ABB2BF")).Bold(true),
	MutedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6370")),
	StringStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")),
	NumberStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
	BoolStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
	DataStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#C678DD")).Italic(true),

	AddedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#A9DC76")).Bold(true),
	RemovedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true),
	ModifiedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true),
}

// PlainTheme renders without any styling.
var PlainTheme = Theme{}

func (t Theme) SyntaxHighlight(v plistdiff.Value, content string) string {
	switch plistdiff.KindOf(v) {
	case plistdiff.KindString:
		return t.StringStyle.Render(content)
	case plistdiff.KindInteger, plistdiff.KindReal, plistdiff.KindUID:
		return t.NumberStyle.Render(content)
	case plistdiff.KindBoolean:
		return t.BoolStyle.Render(content)
	case plistdiff.KindData, plistdiff.KindDate:
		return t.DataStyle.Render(content)
	default:
		return content
	}
}

func (t Theme) ChangeHighlight(change plistdiff.ChangeType, content string) string {
	switch change {
	case plistdiff.Added:
		return t.AddedStyle.Render(content)
	case plistdiff.Removed:
		return t.RemovedStyle.Render(content)
	case plistdiff.Modified:
		return t.ModifiedStyle.Render(content)
	default:
		return content
	}
}
