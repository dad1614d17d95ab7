package index

import (
	"database/sql"
	"strings"
	"unicode/utf8"
)

const (
	defaultSearchLimit = 20
	excerptRunes       = 64
)

// searchTerms splits a user query into terms. Empty queries yield nil.
func searchTerms(query string) []string {
	return strings.Fields(query)
}

// ftsQuery turns terms into an FTS5 expression where every term is a
// quoted prefix match. Quoting keeps selector punctuation such as # . and
// : from being read as query syntax.
func ftsQuery(terms []string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(parts, " ")
}

// excerpt returns up to width runes of body around the first occurrence of
// term, with the match wrapped in <b></b>. Without a match the head of body
// is returned.
func excerpt(body, term string, width int) string {
	at := strings.Index(strings.ToLower(body), strings.ToLower(term))
	end := at + len(term)
	if term == "" || at < 0 || end > len(body) || !strings.EqualFold(body[at:end], term) {
		return truncateRunes(body, width)
	}
	before := []rune(body[:at])
	after := []rune(body[end:])
	room := max(width-utf8.RuneCountInString(term), 0)
	lead := min(len(before), room/2)
	trail := min(len(after), room-lead)

	var b strings.Builder
	if lead < len(before) {
		b.WriteString("...")
	}
	b.WriteString(string(before[len(before)-lead:]))
	b.WriteString("<b>" + body[at:end] + "</b>")
	b.WriteString(string(after[:trail]))
	if trail < len(after) {
		b.WriteString("...")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
