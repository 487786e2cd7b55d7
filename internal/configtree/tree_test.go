package configtree

import (
	"os"
	"path/filepath"
	"testing"

	"bot-dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateReplacesLeafWithoutMutatingInput(t *testing.T) {
	in := domain.ConfigTree{"a": map[string]any{"b": 1, "c": 2}}

	out := Update(in, []string{"a", "b"}, 9)

	assert.Equal(t, domain.ConfigTree{"a": map[string]any{"b": 9, "c": 2}}, out)
	assert.Equal(t, 1, in["a"].(map[string]any)["b"])
}

func TestUpdateSharesSiblingSubtrees(t *testing.T) {
	sibling := map[string]any{"x": 1}
	in := domain.ConfigTree{
		"common":     map[string]any{"leverage": 1},
		"strategies": sibling,
	}

	out := Update(in, []string{"common", "leverage"}, 3)

	got := out["strategies"].(map[string]any)
	got["probe"] = true
	assert.Equal(t, true, sibling["probe"], "untouched subtree should be shared by reference")
}

func TestUpdateEmptyPathIsNoop(t *testing.T) {
	in := domain.ConfigTree{"a": 1}
	out := Update(in, nil, 5)
	assert.Equal(t, in, out)
}

func TestUpdateCreatesMissingAndReplacesNonMapNodes(t *testing.T) {
	in := domain.ConfigTree{"a": 1}

	out := Update(in, []string{"a", "b", "c"}, "v")
	assert.Equal(t, domain.ConfigTree{"a": map[string]any{"b": map[string]any{"c": "v"}}}, out)
	assert.Equal(t, 1, in["a"])

	out = Update(nil, []string{"x"}, true)
	assert.Equal(t, domain.ConfigTree{"x": true}, out)
}

func TestUpdateAcceptsTypeMismatch(t *testing.T) {
	in := domain.ConfigTree{"common": map[string]any{"leverage": 2}}
	out := Update(in, []string{"common", "leverage"}, "high")
	v, ok := Get(out, []string{"common", "leverage"})
	require.True(t, ok)
	assert.Equal(t, "high", v)
}

func TestUpdateLeavesDeepSnapshotIntact(t *testing.T) {
	in := MustDefaults()
	snapshot := Clone(in)

	_ = Update(in, []string{"strategies", "DCA", "maxSafetyOrders"}, 99)
	_ = Update(in, []string{"activeStrategy"}, "GRID")
	_ = Update(in, []string{"common", "new", "deep"}, 1)

	assert.Equal(t, snapshot, in)
}

func TestGet(t *testing.T) {
	tree := domain.ConfigTree{"a": map[string]any{"b": 1}}

	v, ok := Get(tree, []string{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = Get(tree, []string{"a", "b", "c"})
	assert.False(t, ok)

	_, ok = Get(tree, []string{"missing"})
	assert.False(t, ok)
}

func TestParsePath(t *testing.T) {
	assert.Equal(t, []string{"common", "leverage"}, ParsePath(" common.leverage "))
	assert.Equal(t, []string{"a", "b"}, ParsePath("a..b"))
	assert.Nil(t, ParsePath(""))
}

func TestLoadDefaultsBuiltIn(t *testing.T) {
	tree, err := LoadDefaults("")
	require.NoError(t, err)
	assert.Equal(t, "DCA", tree["activeStrategy"])

	lev, ok := Get(tree, []string{"common", "leverage"})
	require.True(t, ok)
	assert.Equal(t, 1, lev)
}

func TestLoadDefaultsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte("activeStrategy: GRID\ncommon:\n  leverage: 3\n"), 0o600))

	tree, err := LoadDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, "GRID", tree["activeStrategy"])

	lev, _ := Get(tree, []string{"common", "leverage"})
	assert.Equal(t, 3, lev)
	size, _ := Get(tree, []string{"common", "orderSize"})
	assert.Equal(t, 10, size, "keys absent from the override keep built-in values")
}

func TestLoadDefaultsMissingFile(t *testing.T) {
	_, err := LoadDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
