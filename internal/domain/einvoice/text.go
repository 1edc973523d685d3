package einvoice

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanText normaliza texto libre para los XML: NFC (diacríticos compuestos, p. ej.
// "ș" o "ł"), sin caracteres de control y sin espacios en los extremos.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
