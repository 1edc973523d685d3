package ksef

import (
	"fmt"
	"strings"
	"unicode"
)

// wagi del NIP (Numer Identyfikacji Podatkowej) para los 9 primeros dígitos.
var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// NormalizeNIP quita el prefijo "PL", guiones y espacios.
func NormalizeNIP(taxID string) string {
	s := strings.ToUpper(strings.TrimSpace(taxID))
	s = strings.TrimPrefix(s, "PL")
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// ValidateNIP valida el dígito de control de un NIP polaco: suma ponderada mod 11
// igual al décimo dígito. Un resto de 10 nunca es válido.
func ValidateNIP(taxID string) error {
	digits := NormalizeNIP(taxID)
	if len(digits) != 10 {
		return fmt.Errorf("ksef: NIP debe tener 10 dígitos, se encontraron %d", len(digits))
	}
	var sum int
	for i, w := range nipWeights {
		sum += int(digits[i]-'0') * w
	}
	check := sum % 11
	if check == 10 || check != int(digits[9]-'0') {
		return fmt.Errorf("ksef: dígito de control del NIP inválido")
	}
	return nil
}
