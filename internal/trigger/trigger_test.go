package trigger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/models"
)

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func newMap(t *testing.T) *Map {
	t.Helper()
	m := NewMap()
	require.NoError(t, m.Add("late", models.TriggerDef{Time: 500, Script: "late()"}))
	require.NoError(t, m.Add("start", models.TriggerDef{Time: 0, Script: "start()"}))
	require.NoError(t, m.Add("mid", models.TriggerDef{Time: 250, Script: "mid()"}))
	require.NoError(t, m.Add("mid2", models.TriggerDef{Time: 250, Script: "mid2()"}))
	return m
}

func TestSorted_StableByTime(t *testing.T) {
	m := newMap(t)
	assert.Equal(t, []string{"start", "mid", "mid2", "late"}, ids(m.Sorted()))
	assert.Equal(t, []string{"late", "start", "mid", "mid2"}, m.IDs())
}

func TestCrossed(t *testing.T) {
	m := newMap(t)

	assert.Equal(t, []string{"mid", "mid2", "late"}, ids(m.Crossed(0, 600, false)))
	assert.Equal(t, []string{"start", "mid", "mid2"}, ids(m.Crossed(0, 250, true)))
	assert.Empty(t, m.Crossed(250, 260, false), "already fired at 250")
	assert.Empty(t, m.Crossed(600, 100, false), "backward seek fires nothing")
	assert.Empty(t, m.Crossed(300, 300, false))
}

func TestAddSetRemove(t *testing.T) {
	m := newMap(t)
	assert.ErrorIs(t, m.Add("mid", models.TriggerDef{}), apperr.ErrAlreadyExists)
	assert.ErrorIs(t, m.Add("neg", models.TriggerDef{Time: -1}), apperr.ErrMalformedTrackData)
	assert.ErrorIs(t, m.Set("nope", models.TriggerDef{}), apperr.ErrNotFound)

	require.NoError(t, m.Set("late", models.TriggerDef{Time: 100, Script: "x()"}))
	assert.Equal(t, []string{"start", "late", "mid", "mid2"}, ids(m.Sorted()))

	require.NoError(t, m.Remove("start"))
	assert.ErrorIs(t, m.Remove("start"), apperr.ErrNotFound)
	assert.Equal(t, 3, m.Len())
}

func TestGetScript(t *testing.T) {
	m := newMap(t)
	script, err := m.GetScript()
	require.NoError(t, err)

	assert.Contains(t, script, "{time: 0, fn: function () {\nstart()\n")
	assert.Contains(t, script, "function createTriggerClock()")
	assert.Less(t, strings.Index(script, "mid()"), strings.Index(script, "mid2()"))
	assert.Less(t, strings.Index(script, "mid2()"), strings.Index(script, "late()"))
}

func TestSaveUse(t *testing.T) {
	m := newMap(t)
	other := NewMap()
	require.NoError(t, other.Use(m.Save()))
	assert.Equal(t, m.IDs(), other.IDs())
	assert.Equal(t, m.Sorted(), other.Sorted())

	bad := models.NewTriggerMap()
	bad.Set("x", models.TriggerDef{Time: -3})
	assert.Error(t, other.Use(bad))
	assert.Equal(t, m.IDs(), other.IDs())
}

func TestRestore_KeepsTieOrder(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Add("x", models.TriggerDef{Time: 100, Script: "x()"}))
	require.NoError(t, m.Add("y", models.TriggerDef{Time: 100, Script: "y()"}))

	def, _ := m.Get("x")
	at := m.Index("x")
	require.NoError(t, m.Remove("x"))
	require.NoError(t, m.Restore(at, "x", def))

	assert.Equal(t, []string{"x", "y"}, m.IDs())
	sorted := m.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "x", sorted[0].ID)
	assert.Error(t, m.Restore(0, "z", models.TriggerDef{Time: -1}))
}
