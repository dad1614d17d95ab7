// Package parser extracts the searchable summary of a saved timeline document.
package parser

import (
	"path"
	"slices"
	"strings"

	"github.com/starford/keyline/internal/models"
)

// Result holds the output of parsing a document.
type Result struct {
	Name       string
	Length     float64
	TrackCount int
	Selectors  []string
	Eases      []string
	Triggers   int
	Body       string
}

// Parse decodes raw document bytes and summarises them. relPath names the
// document when it carries no name of its own.
func Parse(relPath string, data []byte) (*Result, error) {
	doc, err := models.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return Summarise(relPath, doc), nil
}

// Summarise derives the searchable summary of an already decoded document.
func Summarise(relPath string, doc *models.Document) *Result {
	r := &Result{
		Name:       DisplayName(relPath, doc.Name),
		Length:     doc.Timebar.Length,
		TrackCount: len(doc.Sequences),
		Selectors:  extractSelectors(doc),
		Eases:      models.Keys(doc.EaseMap),
		Triggers:   models.Count(doc.TriggerMap),
	}
	r.Body = buildBody(r, doc)
	return r
}

// DisplayName returns name, or the file name of relPath without the document extension.
func DisplayName(relPath, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return strings.TrimSuffix(path.Base(relPath), models.DocumentExt)
}

// extractSelectors returns deduplicated selectors in first-seen order.
func extractSelectors(doc *models.Document) []string {
	var out []string
	for _, s := range doc.Sequences {
		for _, sel := range s.Data.Selectors {
			sel = strings.TrimSpace(sel)
			if sel == "" || slices.Contains(out, sel) {
				continue
			}
			out = append(out, sel)
		}
	}
	return out
}

// buildBody is the free text matched by search: names, selectors, ease ids, trigger ids and scripts.
func buildBody(r *Result, doc *models.Document) string {
	var b strings.Builder
	line := func(s string) {
		if s == "" {
			return
		}
		b.WriteString(s)
		b.WriteByte('\n')
	}
	line(r.Name)
	for _, s := range doc.Sequences {
		line(s.Data.Name)
	}
	line(strings.Join(r.Selectors, " "))
	line(strings.Join(r.Eases, " "))
	for _, id := range models.Keys(doc.TriggerMap) {
		def, _ := doc.TriggerMap.Get(id)
		line(id)
		line(def.Script)
	}
	return b.String()
}
