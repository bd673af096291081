package util

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// DefaultFilter selects every change.
const DefaultFilter = "All()"

// ChangeEnv is the environment filter expressions are evaluated against.
// The fields and methods are accessible from the expression, e.g.
//
//	Domains("com.apple.dock") && !Prefix("com.apple.dock.recent")
type ChangeEnv struct {
	Domain string
	Path   string
	Type   string
	Change plistdiff.Change
}

// NewChangeEnv creates the filter environment of a change recorded for domain.
func NewChangeEnv(domain string, change plistdiff.Change) ChangeEnv {
	return ChangeEnv{
		Domain: domain,
		Path:   change.Path,
		Type:   change.Type.String(),
		Change: change,
	}
}

func (e ChangeEnv) All() bool {
	return true
}

func (e ChangeEnv) None() bool {
	return false
}

// Domains reports whether the change belongs to one of the given domains.
// No arguments match every domain.
func (e ChangeEnv) Domains(vals ...string) bool {
	if len(vals) == 0 {
		return true
	}
	for _, val := range vals {
		if val == e.Domain {
			return true
		}
	}
	return false
}

func (e ChangeEnv) DomainIn(vals ...string) bool {
	return e.Domains(vals...)
}

// Prefix reports whether the change path equals one of the given paths or
// lies below it.
func (e ChangeEnv) Prefix(vals ...string) bool {
	for _, val := range vals {
		if e.Path == val || strings.HasPrefix(e.Path, val+plistdiff.Separator) {
			return true
		}
	}
	return false
}

func (e ChangeEnv) Added() bool {
	return e.Change.Type == plistdiff.Added
}

func (e ChangeEnv) Removed() bool {
	return e.Change.Type == plistdiff.Removed
}

func (e ChangeEnv) Modified() bool {
	return e.Change.Type == plistdiff.Modified
}

// CompileFilter compiles a boolean filter expression against ChangeEnv.
func CompileFilter(expression string) (*vm.Program, error) {
	if strings.TrimSpace(expression) == "" {
		expression = DefaultFilter
	}
	prog, err := expr.Compile(expression, expr.Env(ChangeEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	return prog, nil
}

// Match runs a compiled filter against env.
func Match(prog *vm.Program, env ChangeEnv) (bool, error) {
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	pass, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T, expected bool", out)
	}
	return pass, nil
}

// FilterChanges returns the changes of domain that pass prog, keeping their order.
func FilterChanges(prog *vm.Program, domain string, changes []plistdiff.Change) ([]plistdiff.Change, error) {
	var kept []plistdiff.Change
	for _, c := range changes {
		pass, err := Match(prog, NewChangeEnv(domain, c))
		if err != nil {
			return nil, err
		}
		if pass {
			kept = append(kept, c)
		}
	}
	return kept, nil
}
