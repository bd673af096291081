package store_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loog-project/prefwatch/internal/store"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

func TestValueKeepsVariants(t *testing.T) {
	tree := plistdiff.Dictionary{
		"string":   plistdiff.String("1"),
		"data":     plistdiff.Data("1"),
		"uint":     plistdiff.Uint(math.MaxUint64),
		"int":      plistdiff.Int(math.MinInt64),
		"uid":      plistdiff.UID(1),
		"real":     plistdiff.Real(1),
		"bool":     plistdiff.Boolean(false),
		"date":     plistdiff.NewDate(time.Date(2001, 1, 1, 0, 0, 0, 123, time.UTC)),
		"array":    plistdiff.Array{plistdiff.Array{}, plistdiff.Dictionary{}},
		"nan":      plistdiff.Real(math.NaN()),
		"negzero":  plistdiff.Real(math.Copysign(0, -1)),
		"emptystr": plistdiff.String(""),
	}

	b, err := store.DefaultCodec.Marshal(store.Value{Value: tree})
	require.NoError(t, err)

	var decoded store.Value
	require.NoError(t, store.DefaultCodec.Unmarshal(b, &decoded))
	assert.True(t, plistdiff.Equal(tree, decoded.Value), "decoded %v", decoded.Value)
}

func TestValueEncodingIsStable(t *testing.T) {
	tree := plistdiff.Dictionary{}
	for _, k := range []string{"z", "a", "m", "b", "y"} {
		tree[k] = plistdiff.String(k)
	}

	first, err := store.DefaultCodec.Marshal(store.Value{Value: tree})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := store.DefaultCodec.Marshal(store.Value{Value: plistdiff.Clone(tree)})
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestRevisionChangesRoundTrip(t *testing.T) {
	rec := plistdiff.NewRecorder()
	plistdiff.Diff(
		plistdiff.Dictionary{"a": plistdiff.Int(1), "gone": plistdiff.Boolean(true)},
		plistdiff.Dictionary{"a": plistdiff.Int(2), "new": plistdiff.Data{1}},
		rec, "dom",
	)

	rev := store.Revision{
		ID:         3,
		PreviousID: 2,
		Time:       time.Unix(1700000000, 0),
		Changes:    store.FromChanges(rec.Changes()),
	}
	b, err := store.DefaultCodec.Marshal(&rev)
	require.NoError(t, err)

	var decoded store.Revision
	require.NoError(t, store.DefaultCodec.Unmarshal(b, &decoded))
	assert.Equal(t, rev.ID, decoded.ID)
	assert.Equal(t, rev.PreviousID, decoded.PreviousID)
	assert.True(t, rev.Time.Equal(decoded.Time))

	got := store.ToChanges(decoded.Changes)
	want := rec.Changes()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Type, got[i].Type)
		assert.Equal(t, want[i].Path, got[i].Path)
		if want[i].Old == nil {
			assert.Nil(t, got[i].Old)
		} else {
			assert.True(t, plistdiff.Equal(want[i].Old, got[i].Old))
		}
		if want[i].New == nil {
			assert.Nil(t, got[i].New)
		} else {
			assert.True(t, plistdiff.Equal(want[i].New, got[i].New))
		}
	}
}

func TestRevisionIDString(t *testing.T) {
	assert.Equal(t, "00000000000000ff", store.RevisionID(255).String())
}
