package models

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/keyline/internal/apperr"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/zomb1.am.json")
	require.NoError(t, err)
	return data
}

func TestParseDocument_RoundTripsByteForByte(t *testing.T) {
	data := loadFixture(t)

	doc, err := ParseDocument(data)
	require.NoError(t, err)
	require.Len(t, doc.Sequences, 7)

	head := doc.Sequences[0].Data
	assert.Equal(t, "#head", head.Name)
	assert.Equal(t, []string{"#head"}, head.Selectors)
	require.Len(t, head.Parameters, 3)
	assert.Equal(t, "transform", head.Parameters[0].Name)
	assert.Empty(t, head.Parameters[2].Name)
	assert.NotNil(t, head.Parameters[2].Keys)
	assert.True(t, head.Parameters[0].Keys[0].Value.IsTransform())
	assert.Equal(t, "48.65% 62.64%", head.Parameters[1].Keys[0].Value.Text)

	out, err := doc.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(out))
}

func TestParseDocument_LegacyTracksKey(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"timebar":{"currTime":0,"timescale":0.1,"length":1000},
		"tracks":[{"type":"css_sequ_type","data":{"name":"a","selectors":[],"parameters":[]}}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Sequences, 1)
	assert.Equal(t, "a", doc.Sequences[0].Data.Name)
}

func TestParseDocument_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"key sans time": `{"sequences":[{"type":"css_sequ_type","data":{"parameters":[{"name":"transform","keys":[{"value":"x","ease":"linear"}]}]}}]}`,
		"numeric value": `{"sequences":[{"type":"css_sequ_type","data":{"parameters":[{"name":"transform","keys":[{"value":3,"time":0,"ease":"linear"}]}]}}]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument([]byte(in))
			assert.ErrorIs(t, err, apperr.ErrMalformedTrackData)
		})
	}
}

func TestValue_TransformDefaults(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"tx":4}`), &v))
	require.True(t, v.IsTransform())
	want := IdentityTransform()
	want.TX = 4
	assert.Equal(t, want, *v.Transform)
}

func TestRegistry_KeepsInsertionOrder(t *testing.T) {
	m := NewTriggerMap()
	require.NoError(t, json.Unmarshal([]byte(`{"z":{"time":1,"script":"a()"},"a":{"time":2,"script":"b()"},"m":{"time":0,"script":""}}`), m))
	assert.Equal(t, []string{"z", "a", "m"}, Keys(m))

	m.Set("a", TriggerDef{Time: 5})
	m.Set("b", TriggerDef{Time: 6})
	_, ok := m.Delete("z")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "m", "b"}, Keys(m))
	assert.Equal(t, 1, IndexOf(m, "m"))
	assert.Equal(t, -1, IndexOf(m, "z"))

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"time":5,"script":""},"m":{"time":0,"script":""},"b":{"time":6,"script":""}}`, string(out))
}

func TestRegistry_InsertAt(t *testing.T) {
	m := NewEaseMap()
	for _, id := range []string{"a", "b", "c"} {
		m.Set(id, EaseDef{Preset: "ease"})
	}
	InsertAt(m, 0, "z", EaseDef{Preset: "linear"})
	assert.Equal(t, []string{"z", "a", "b", "c"}, Keys(m))
	InsertAt(m, 2, "z", EaseDef{Preset: "ease-in"})
	assert.Equal(t, []string{"a", "b", "z", "c"}, Keys(m))
	InsertAt(m, 9, "y", EaseDef{})
	assert.Equal(t, []string{"a", "b", "z", "c", "y"}, Keys(m))
	def, _ := m.Get("z")
	assert.Equal(t, "ease-in", def.Preset)
}

func TestRegistry_NilSafe(t *testing.T) {
	var m *TriggerMap
	assert.Nil(t, Keys(m))
	assert.Zero(t, Count(m))
	assert.Nil(t, Clone(m, nil))
	_, ok := Lookup(m, "x")
	assert.False(t, ok)
	assert.Nil(t, Clone(NewTriggerMap(), nil), "empty registries clone to nil")
}

func TestDocument_OmitsEmptyRegistries(t *testing.T) {
	doc := Document{Timebar: TimebarSave{Timescale: 1, Length: 10}, Sequences: []TrackSave{}}
	out, err := doc.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"timebar":{"currTime":0,"timescale":1,"length":10},"sequences":[]}`, string(out))
}
