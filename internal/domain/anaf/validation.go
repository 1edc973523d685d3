// Package anaf valida facturas contra las reglas de RO e-Factura antes de generar el UBL.
package anaf

import (
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	pkganaf "github.com/jhoicas/einvoice-gateway/pkg/anaf"
)

// Validator validador de ANAF. Precio unitario >= 0.
type Validator struct {
	rules einvoice.Rules
}

// NewValidator construye el validador.
func NewValidator() *Validator {
	return &Validator{rules: einvoice.Rules{
		Prefix:          "ANAF",
		StrictUnitPrice: false,
		ValidateTaxID:   pkganaf.ValidateCIF,
		DomesticCountry: pkganaf.DefaultCountry,
	}}
}

// Validate aplica las reglas de ANAF.
func (v *Validator) Validate(inv *entity.Invoice) einvoice.ValidationResult {
	return v.rules.Validate(inv)
}
