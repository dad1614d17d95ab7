package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:                   "0",
		1:                   "1",
		-3.9999999999999982: "-3.9999999999999982",
		0.42857142857142877: "0.42857142857142877",
		816.6666666666665:   "816.6666666666665",
		1e-7:                "1e-7",
		1.5e21:              "1.5e+21",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNumber(in))
	}
}

func TestSingleQuote(t *testing.T) {
	assert.Equal(t, `'it\'s'`, SingleQuote("it's"))
	assert.Equal(t, `'a\\b'`, SingleQuote(`a\b`))
	assert.Equal(t, `'<\/script>'`, SingleQuote("</script>"))
	assert.Equal(t, `'x y\n'`, SingleQuote("x y\n"))
}

func TestRenderFactory(t *testing.T) {
	out, err := RenderFactory(Factory{
		ParamKeys: `[[{"offset":0,"transform":"none"}]]`,
		Options:   `{"direction":"normal","duration":1000,"iterations":1,"fill":"forward"}`,
		Selectors: "#head",
	})
	require.NoError(t, err)
	assert.Contains(t, out, `elems = document.querySelectorAll('#head');`)
	assert.Contains(t, out, `paramKeys = [[{"offset":0,"transform":"none"}]],`)
	assert.Contains(t, out, "player = document.timeline.play(animation);")

	// seek and pause bail out before the first play
	seek := out[strings.Index(out, "seek: function (time)"):]
	assert.Less(t, strings.Index(seek, "if (!player)"), strings.Index(seek, "player.currentTime = time;"))
}

func TestRenderFactory_NoSelectors(t *testing.T) {
	out, err := RenderFactory(Factory{ParamKeys: "[]", Options: "{}"})
	require.NoError(t, err)
	assert.Contains(t, out, "elems = [];")
	assert.NotContains(t, out, "querySelectorAll")
}

func TestRenderModule(t *testing.T) {
	out, err := RenderModule(Module{
		SaveJSON:  `{"name":"it's"}`,
		Factories: []string{"function () { return 1; }", "function () { return 2; }"},
		Triggers:  []Trigger{{Time: 120, Script: "console.log('hi');"}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, ";(function (root) {"))
	assert.Contains(t, out, `var SAVEJSON = '{"name":"it\'s"}';`)
	assert.Contains(t, out, "var sequPlayerGens = [function () { return 1; },\nfunction () { return 2; }];")
	assert.Contains(t, out, "{time: 120, fn: function () {\nconsole.log('hi');\n")
	assert.Contains(t, out, "root.am.pageScripts['amsave']")
	assert.Contains(t, out, "saveJson: SAVEJSON,")
	assert.Contains(t, out, "module.exports = reg;")
}

func TestRenderModule_TriggerClockWraps(t *testing.T) {
	out, err := RenderModule(Module{
		SaveJSON: "{}",
		Length:   1500,
		Triggers: []Trigger{{Time: 100, Script: "a();"}, {Time: 1400, Script: "b();"}},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "length = 1500,")
	assert.Contains(t, out, "triggerClock.tick(length > 0 ? time % length : time, length);")

	// a wrapped tick fires the tail since lastTime and the head up to time
	assert.Contains(t, out, "fire(lastTime, length, inclusive);\n                    fire(0, time, true);")
	assert.NotContains(t, out, "triggerClock.tick(startTime + Math.round(now() - startStamp));")
}

func TestRenderModule_Deterministic(t *testing.T) {
	m := Module{Name: "demo", SaveJSON: "{}", Factories: []string{"function () {}"}}
	a, err := RenderModule(m)
	require.NoError(t, err)
	b, err := RenderModule(m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "var triggers = [];")
}
