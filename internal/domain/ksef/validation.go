// Package ksef valida facturas contra las reglas de KSeF antes de generar el FA(2).
package ksef

import (
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	pkgksef "github.com/jhoicas/einvoice-gateway/pkg/ksef"
)

// Validator validador de KSeF. A diferencia de ANAF, exige precio unitario > 0.
type Validator struct {
	rules einvoice.Rules
}

// NewValidator construye el validador.
func NewValidator() *Validator {
	return &Validator{rules: einvoice.Rules{
		Prefix:          "KSEF",
		StrictUnitPrice: true,
		ValidateTaxID:   pkgksef.ValidateNIP,
		DomesticCountry: pkgksef.DefaultCountry,
	}}
}

// Validate aplica las reglas de KSeF.
func (v *Validator) Validate(inv *entity.Invoice) einvoice.ValidationResult {
	return v.rules.Validate(inv)
}
