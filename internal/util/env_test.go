package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

func TestFilterExpressions(t *testing.T) {
	added := plistdiff.Change{Type: plistdiff.Added, Path: "com.apple.dock.tilesize", New: plistdiff.Int(48)}
	removed := plistdiff.Change{Type: plistdiff.Removed, Path: "com.apple.dock.recent-apps.0", Old: plistdiff.String("x")}
	modified := plistdiff.Change{
		Type: plistdiff.Modified,
		Path: "com.apple.finder.ShowPathbar",
		Old:  plistdiff.Boolean(false),
		New:  plistdiff.Boolean(true),
	}

	tests := []struct {
		name       string
		expression string
		domain     string
		change     plistdiff.Change
		want       bool
	}{
		{"empty defaults to all", "", "com.apple.dock", added, true},
		{"all", "All()", "com.apple.dock", added, true},
		{"none", "None()", "com.apple.dock", added, false},
		{"domains match", `Domains("com.apple.finder", "com.apple.dock")`, "com.apple.dock", added, true},
		{"domains miss", `Domains("com.apple.finder")`, "com.apple.dock", added, false},
		{"domain field", `Domain == "com.apple.finder"`, "com.apple.finder", modified, true},
		{"domain in", `DomainIn("com.apple.finder")`, "com.apple.finder", modified, true},
		{"prefix below", `Prefix("com.apple.dock.recent-apps")`, "com.apple.dock", removed, true},
		{"prefix is not substring", `Prefix("com.apple.dock.recent")`, "com.apple.dock", removed, false},
		{"prefix exact", `Prefix("com.apple.dock.tilesize")`, "com.apple.dock", added, true},
		{"added", "Added()", "com.apple.dock", added, true},
		{"removed", "Removed()", "com.apple.dock", added, false},
		{"modified", "Modified() && Type == \"modified\"", "com.apple.finder", modified, true},
		{"combined", `Domains("com.apple.dock") && !Removed()`, "com.apple.dock", removed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := CompileFilter(tt.expression)
			require.NoError(t, err)

			got, err := Match(prog, NewChangeEnv(tt.domain, tt.change))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFilterRejectsNonBoolean(t *testing.T) {
	_, err := CompileFilter(`Path + "x"`)
	assert.Error(t, err)

	_, err = CompileFilter(`Unknown()`)
	assert.Error(t, err)
}

func TestFilterChangesKeepsOrder(t *testing.T) {
	prog, err := CompileFilter("!Removed()")
	require.NoError(t, err)

	changes := []plistdiff.Change{
		{Type: plistdiff.Modified, Path: "d.a", Old: plistdiff.Int(1), New: plistdiff.Int(2)},
		{Type: plistdiff.Removed, Path: "d.b", Old: plistdiff.Int(1)},
		{Type: plistdiff.Added, Path: "d.c", New: plistdiff.Int(3)},
	}
	kept, err := FilterChanges(prog, "d", changes)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "d.a", kept[0].Path)
	assert.Equal(t, "d.c", kept[1].Path)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(0, 1, 8))
	assert.Equal(t, 8, Clamp(12, 1, 8))
	assert.Equal(t, 4, Clamp(4, 1, 8))
}
