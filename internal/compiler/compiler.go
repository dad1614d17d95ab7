// Package compiler renders the JavaScript playback module: one factory per
// track, the trigger clock and the createPlayer aggregator.
package compiler

import (
	"fmt"
	"strings"
)

// DefaultModuleName is the page-script registration key.
const DefaultModuleName = "amsave"

// Factory is the data of one per-track player factory. ParamKeys and
// Options are JSON literals; Selectors is a CSS selector group, empty when
// the track targets nothing.
type Factory struct {
	ParamKeys string
	Options   string
	Selectors string
}

// Trigger is one trigger in playback order.
type Trigger struct {
	Time   float64
	Script string
}

// Module is everything the assembled playback module needs. Length is the
// timeline length in ms; the trigger clock wraps modulo it.
type Module struct {
	Name      string
	SaveJSON  string
	Length    float64
	Factories []string
	Triggers  []Trigger
}

// RenderFactory renders a per-track player factory.
func RenderFactory(f Factory) (string, error) {
	var sb strings.Builder
	if err := trackTmpl.Execute(&sb, f); err != nil {
		return "", fmt.Errorf("compiler: render factory: %w", err)
	}
	return sb.String(), nil
}

// RenderTriggers renders the triggers table and the trigger clock.
func RenderTriggers(triggers []Trigger) (string, error) {
	var sb strings.Builder
	if err := triggersTmpl.Execute(&sb, triggers); err != nil {
		return "", fmt.Errorf("compiler: render triggers: %w", err)
	}
	return sb.String(), nil
}

// RenderModule assembles the playback module.
func RenderModule(m Module) (string, error) {
	if m.Name == "" {
		m.Name = DefaultModuleName
	}
	triggers, err := RenderTriggers(m.Triggers)
	if err != nil {
		return "", err
	}
	data := struct {
		Name      string
		SaveJSON  string
		Length    float64
		Factories []string
		Triggers  string
	}{m.Name, m.SaveJSON, m.Length, m.Factories, triggers}

	var sb strings.Builder
	if err := moduleTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("compiler: render module: %w", err)
	}
	return sb.String(), nil
}
