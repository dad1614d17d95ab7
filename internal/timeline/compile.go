package timeline

import (
	"fmt"
	"log/slog"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/compiler"
	"github.com/starford/keyline/internal/track"
)

// CompileOptions tune script assembly.
type CompileOptions struct {
	// ModuleName is the page-script registration key, compiler.DefaultModuleName
	// when empty.
	ModuleName string
}

// CompileResult is an assembled playback module and the findings of the
// compile. Tracks with error diagnostics are left out of Script.
type CompileResult struct {
	Script      string             `json:"script"`
	Diagnostics []track.Diagnostic `json:"diagnostics"`
	Skipped     []int              `json:"skipped"`
}

// HasErrors reports whether any track failed to compile.
func (r CompileResult) HasErrors() bool {
	return len(r.Skipped) > 0
}

// GetScript compiles the document into a standalone playback module. It
// is a pure function of the current document.
func (t *Timeline) GetScript(opts CompileOptions) (CompileResult, error) {
	if err := t.usable(); err != nil {
		return CompileResult{}, fmt.Errorf("timeline: compile: %w", err)
	}

	res := CompileResult{Diagnostics: []track.Diagnostic{}, Skipped: []int{}}
	env := t.env()
	factories := make([]string, 0, len(t.tracks))
	for i, tr := range t.tracks {
		frag, diags, err := tr.GetScript(env)
		for _, d := range diags {
			d.Track = i
			res.Diagnostics = append(res.Diagnostics, d)
		}
		if err != nil {
			t.logger.Warn("track left out of compiled script",
				slog.Int("track", i),
				slog.String("name", tr.Name()),
				slog.String("error", err.Error()))
			res.Skipped = append(res.Skipped, i)
			continue
		}
		factories = append(factories, frag)
	}
	for _, d := range res.Diagnostics {
		if d.Severity == track.SeverityWarning {
			t.logger.Debug("compile warning", slog.Int("track", d.Track), slog.String("code", d.Code), slog.String("message", d.Message))
		}
	}

	save, err := t.GetSave().Marshal()
	if err != nil {
		return CompileResult{}, fmt.Errorf("timeline: compile: encode save: %w: %w", apperr.ErrMalformedTrackData, err)
	}

	script, err := compiler.RenderModule(compiler.Module{
		Name:      opts.ModuleName,
		SaveJSON:  string(save),
		Length:    t.timebar.Length(),
		Factories: factories,
		Triggers:  t.triggers.Compiled(),
	})
	if err != nil {
		return CompileResult{}, fmt.Errorf("timeline: compile: %w", err)
	}
	res.Script = script
	return res, nil
}
