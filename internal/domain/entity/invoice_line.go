package entity

import "github.com/shopspring/decimal"

// Categorías de IVA de una línea. Vacío = tipo estándar según la tasa.
const (
	VATCategoryStandard      = ""
	VATCategoryZero          = "zero"
	VATCategoryExempt        = "exempt"         // exenta
	VATCategoryNotSubject    = "not_subject"    // no sujeta
	VATCategoryReverseCharge = "reverse_charge" // inversión del sujeto pasivo
)

var hundred = decimal.NewFromInt(100)

// InvoiceLine representa una línea de detalle de una factura.
type InvoiceLine struct {
	ID            string
	InvoiceID     string
	Position      int
	Description   string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	UnitOfMeasure string          // texto libre ("buc", "szt", "kg", ...)
	VATRate       decimal.Decimal // porcentaje: 19 = 19 %
	VATCategory   string
}

// NetAmount base imponible de la línea (cantidad × precio) a 2 decimales.
func (l InvoiceLine) NetAmount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

// VATAmount IVA de la línea a 2 decimales.
func (l InvoiceLine) VATAmount() decimal.Decimal {
	return l.NetAmount().Mul(l.VATRate).Div(hundred).Round(2)
}
