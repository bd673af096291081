package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

type Format string

const (
	FormatText  Format = "text"
	FormatYAML  Format = "yaml"
	FormatDebug Format = "debug"
)

var Formats = []Format{FormatText, FormatYAML, FormatDebug}

// ParseFormat validates the name of an output format.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (expected one of text, yaml, debug)", s)
}

// Report is a batch of changes observed together.
type Report struct {
	Cycle   uint64
	Time    time.Time
	Changes []plistdiff.Change
}

// Renderer writes reports in one format.
type Renderer struct {
	format Format
	theme  Theme
	dumper *spew.ConfigState
}

func NewRenderer(format Format, theme Theme) *Renderer {
	return &Renderer{
		format: format,
		theme:  theme,
		dumper: &spew.ConfigState{
			Indent:                  "  ",
			SortKeys:                true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
		},
	}
}

// Render formats rep. Reports without changes render to the empty string.
func (r *Renderer) Render(rep Report) (string, error) {
	if len(rep.Changes) == 0 {
		return "", nil
	}
	switch r.format {
	case FormatText:
		return r.renderText(rep), nil
	case FormatYAML:
		return renderYAML(rep)
	case FormatDebug:
		return "Results: " + r.dumper.Sdump(rep.Changes), nil
	default:
		return "", fmt.Errorf("unknown format %q", r.format)
	}
}

// Write renders rep to w.
func (r *Renderer) Write(w io.Writer, rep Report) error {
	out, err := r.Render(rep)
	if err != nil || out == "" {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func (r *Renderer) renderText(rep Report) string {
	var sb strings.Builder
	stamp := r.theme.TimeStyle.Render(rep.Time.Format(time.TimeOnly))
	for _, c := range rep.Changes {
		sb.WriteString(stamp + " ")
		sb.WriteString(r.RenderChange(c))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderChange formats a single change on one line.
func (r *Renderer) RenderChange(c plistdiff.Change) string {
	path := r.theme.PathStyle.Render(c.Path)
	switch c.Type {
	case plistdiff.Added:
		return r.theme.ChangeHighlight(c.Type, "+") + " " + path + " = " + FormatValue(c.New, r.theme)
	case plistdiff.Removed:
		return r.theme.ChangeHighlight(c.Type, "-") + " " + path + " = " + FormatValue(c.Old, r.theme)
	case plistdiff.Modified:
		return r.theme.ChangeHighlight(c.Type, "~") + " " + path + ": " +
			FormatValue(c.Old, r.theme) + r.theme.MutedStyle.Render(" -> ") + FormatValue(c.New, r.theme)
	default:
		return c.String()
	}
}

type yamlReport struct {
	Cycle   uint64       `yaml:"cycle,omitempty"`
	Time    time.Time    `yaml:"time"`
	Changes []yamlChange `yaml:"changes"`
}

type yamlChange struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
	Old  any    `yaml:"old,omitempty"`
	New  any    `yaml:"new,omitempty"`
}

func renderYAML(rep Report) (string, error) {
	doc := yamlReport{
		Cycle:   rep.Cycle,
		Time:    rep.Time.UTC(),
		Changes: make([]yamlChange, 0, len(rep.Changes)),
	}
	for _, c := range rep.Changes {
		doc.Changes = append(doc.Changes, yamlChange{
			Type: c.Type.String(),
			Path: c.Path,
			Old:  plainValue(c.Old),
			New:  plainValue(c.New),
		})
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	return sb.String(), nil
}
