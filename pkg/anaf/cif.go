package anaf

import (
	"fmt"
	"strings"
	"unicode"
)

// cheia de control del CIF (cod de identificare fiscală), de izquierda a derecha.
const cifControlKey = "753217532"

// NormalizeCIF quita el prefijo "RO", espacios y separadores.
func NormalizeCIF(taxID string) string {
	s := strings.ToUpper(strings.TrimSpace(taxID))
	s = strings.TrimPrefix(s, "RO")
	return string(extractDigits(s))
}

// ValidateCIF valida el dígito de control de un CIF rumano (con o sin prefijo RO).
// El cuerpo se completa con ceros a la izquierda hasta 9 dígitos; el control es
// (suma × 10) mod 11, y 10 se toma como 0.
func ValidateCIF(taxID string) error {
	digits := []byte(NormalizeCIF(taxID))
	if len(digits) < 2 || len(digits) > 10 {
		return fmt.Errorf("anaf: CIF debe tener entre 2 y 10 dígitos, se encontraron %d", len(digits))
	}
	body := digits[:len(digits)-1]
	padded := strings.Repeat("0", 9-len(body)) + string(body)

	var sum int
	for i := 0; i < 9; i++ {
		sum += int(padded[i]-'0') * int(cifControlKey[i]-'0')
	}
	expected := (sum * 10) % 11
	if expected == 10 {
		expected = 0
	}
	if got := int(digits[len(digits)-1] - '0'); got != expected {
		return fmt.Errorf("anaf: dígito de control del CIF inválido: esperado %d, recibido %d", expected, got)
	}
	return nil
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
