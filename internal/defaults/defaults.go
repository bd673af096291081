// Package defaults captures preference domains through the macOS defaults(1)
// tool and decodes them into plistdiff values.
package defaults

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(exitErr.Stderr))
		}
		return nil, err
	}
	return out, nil
}

// Options for New. Zero values give reasonable defaults.
type Options struct {
	// Binary is the defaults executable. Defaults to "defaults" from $PATH.
	Binary string

	// Runner executes Binary. Defaults to ExecRunner.
	Runner Runner

	Logger zerolog.Logger
}

func WithBinary(path string) func(*Options) {
	return func(o *Options) { o.Binary = path }
}

func WithRunner(r Runner) func(*Options) {
	return func(o *Options) { o.Runner = r }
}

func WithLogger(l zerolog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

// Client reads preference domains.
type Client struct {
	options Options
}

// New returns a Client.
func New(opts ...func(*Options)) *Client {
	options := Options{Binary: "defaults", Runner: ExecRunner{}, Logger: zerolog.Nop()}
	for _, fn := range opts {
		fn(&options)
	}
	if options.Binary == "" {
		options.Binary = "defaults"
	}
	if options.Runner == nil {
		options.Runner = ExecRunner{}
	}
	return &Client{options: options}
}

// Domains lists the preference domains known to the current user.
func (c *Client) Domains(ctx context.Context) ([]string, error) {
	out, err := c.options.Runner.Output(ctx, c.options.Binary, "domains")
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	domains := ParseDomains(string(out))
	c.options.Logger.Debug().Int("count", len(domains)).Msg("listed domains")
	return domains, nil
}

// ParseDomains splits the ", " separated output of `defaults domains`.
func ParseDomains(out string) []string {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	parts := strings.Split(out, ", ")
	domains := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			domains = append(domains, p)
		}
	}
	return domains
}

// Export reads the full contents of domain.
func (c *Client) Export(ctx context.Context, domain string) (plistdiff.Value, error) {
	out, err := c.options.Runner.Output(ctx, c.options.Binary, "export", domain, "-")
	if err != nil {
		return nil, fmt.Errorf("failed to export domain %s: %w", domain, err)
	}
	value, err := Decode(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export of domain %s: %w", domain, err)
	}
	c.options.Logger.Debug().
		Str("domain", domain).
		Int("bytes", len(out)).
		Msg("exported domain")
	return value, nil
}
