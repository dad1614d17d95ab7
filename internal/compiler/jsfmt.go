package compiler

import (
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders f the way a JavaScript engine prints a number.
func FormatNumber(f float64) string {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs < 1e-6 || abs >= 1e21 {
		format = 'e'
	}
	b := strconv.AppendFloat(nil, f, format, -1, 64)
	if format == 'e' {
		// e-07 -> e-7
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return string(b)
}

var singleQuoteReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
	"</", `<\/`,
)

// SingleQuote returns s as a single-quoted JavaScript string literal that
// is also safe to inline in an HTML script element.
func SingleQuote(s string) string {
	return "'" + singleQuoteReplacer.Replace(s) + "'"
}
