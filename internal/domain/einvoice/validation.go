// Package einvoice contiene las reglas de validación y agregación de IVA compartidas
// por los proveedores de e-factura. Sin I/O.
package einvoice

import (
	"fmt"
	"strings"

	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

// Categorías de ValidationError.
const (
	CategoryStructural = "structural" // falta un dato o tiene forma inválida
	CategoryBusiness   = "business"   // regla fiscal/comercial incumplida
)

// ValidationError un fallo de regla con código estable por proveedor (ej. KSEF-LINE-03).
type ValidationError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

func (e ValidationError) Error() string { return e.Code + ": " + e.Message }

// ValidationResult resultado de validar una factura.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors"`
}

// Messages concatena los mensajes de error (se persiste en Submission e Invoice).
func (r ValidationResult) Messages() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Codes devuelve los códigos de error en orden.
func (r ValidationResult) Codes() []string {
	codes := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		codes[i] = e.Code
	}
	return codes
}

// Rules reglas legales comunes, parametrizadas por proveedor.
type Rules struct {
	Prefix string // "ANAF" | "KSEF": prefijo de los códigos
	// StrictUnitPrice exige precio unitario > 0 (en lugar de >= 0).
	StrictUnitPrice bool
	// ValidateTaxID verifica el dígito de control de identificadores del país.
	ValidateTaxID func(string) error
	// DomesticCountry país donde aplica ValidateTaxID (vacío en la ficha = doméstico).
	DomesticCountry string
}

type collector struct {
	prefix string
	errs   []ValidationError
}

func (c *collector) add(code, category, format string, args ...any) {
	c.errs = append(c.errs, ValidationError{
		Code:     c.prefix + "-" + code,
		Message:  fmt.Sprintf(format, args...),
		Category: category,
	})
}

// Validate aplica todas las reglas y devuelve un error por regla incumplida.
func (r Rules) Validate(inv *entity.Invoice) ValidationResult {
	c := &collector{prefix: r.Prefix}
	if inv == nil {
		c.add("DOC-00", CategoryStructural, "factura nula")
		return ValidationResult{Errors: c.errs}
	}

	r.checkSeller(c, inv.Company)
	r.checkBuyer(c, inv)
	r.checkDocument(c, inv)
	r.checkLines(c, inv)

	return ValidationResult{IsValid: len(c.errs) == 0, Errors: c.errs}
}

func (r Rules) checkSeller(c *collector, co *entity.Company) {
	if co == nil {
		co = &entity.Company{}
	}
	if blank(co.TaxID) {
		c.add("SELLER-01", CategoryStructural, "identificador fiscal del emisor requerido")
	} else if r.domestic(co.Country) && r.ValidateTaxID != nil {
		if err := r.ValidateTaxID(co.TaxID); err != nil {
			c.add("SELLER-05", CategoryBusiness, "identificador fiscal del emisor inválido: %v", err)
		}
	}
	if blank(co.Name) {
		c.add("SELLER-02", CategoryStructural, "razón social del emisor requerida")
	}
	if blank(co.Address) {
		c.add("SELLER-03", CategoryStructural, "dirección del emisor requerida")
	}
	if blank(co.City) {
		c.add("SELLER-04", CategoryStructural, "ciudad del emisor requerida")
	}
}

func (r Rules) checkBuyer(c *collector, inv *entity.Invoice) {
	cu := inv.Customer
	if cu == nil {
		if blank(inv.ReceiverName) {
			c.add("BUYER-03", CategoryStructural, "sin cliente estructurado se requiere el nombre del receptor")
		}
		return
	}
	if cu.IsCompany {
		if blank(cu.TaxID) {
			c.add("BUYER-01", CategoryBusiness, "identificador fiscal requerido para cliente persona jurídica")
		} else if r.domestic(cu.Country) && r.ValidateTaxID != nil {
			if err := r.ValidateTaxID(cu.TaxID); err != nil {
				c.add("BUYER-04", CategoryBusiness, "identificador fiscal del cliente inválido: %v", err)
			}
		}
	}
	if blank(cu.Name) {
		c.add("BUYER-02", CategoryStructural, "nombre del cliente requerido")
	}
}

func (r Rules) checkDocument(c *collector, inv *entity.Invoice) {
	if blank(inv.Number) {
		c.add("DOC-01", CategoryStructural, "número de factura requerido")
	}
	if inv.IssueDate.IsZero() {
		c.add("DOC-02", CategoryStructural, "fecha de emisión requerida")
	}
	if inv.IsCorrection() {
		if inv.Parent == nil || blank(inv.Parent.Number) {
			c.add("DOC-03", CategoryStructural, "la nota de crédito debe referenciar la factura original")
		}
		return
	}
	if !inv.GrandTotal.IsPositive() {
		c.add("DOC-04", CategoryBusiness, "el total del documento debe ser mayor que cero (recibido %s)", inv.GrandTotal.StringFixed(2))
	}
}

func (r Rules) checkLines(c *collector, inv *entity.Invoice) {
	if len(inv.Lines) == 0 {
		c.add("DOC-05", CategoryStructural, "la factura debe tener al menos una línea")
		return
	}
	correction := inv.IsCorrection()
	for i, l := range inv.Lines {
		n := i + 1
		if blank(l.Description) {
			c.add("LINE-01", CategoryStructural, "línea %d: descripción requerida", n)
		}
		// Las líneas de una nota de crédito pueden ser negativas o cero.
		if correction {
			continue
		}
		if !l.Quantity.IsPositive() {
			c.add("LINE-02", CategoryBusiness, "línea %d: la cantidad debe ser mayor que cero", n)
		}
		if r.StrictUnitPrice && !l.UnitPrice.IsPositive() {
			c.add("LINE-03", CategoryBusiness, "línea %d: el precio unitario debe ser mayor que cero", n)
		} else if !r.StrictUnitPrice && l.UnitPrice.IsNegative() {
			c.add("LINE-03", CategoryBusiness, "línea %d: el precio unitario no puede ser negativo", n)
		}
	}
}

func (r Rules) domestic(country string) bool {
	country = strings.TrimSpace(country)
	return country == "" || strings.EqualFold(country, r.DomesticCountry)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
