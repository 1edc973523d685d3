// Package anaf contiene catálogos alineados a RO e-Factura (UBL 2.1, CIUS-RO 1.0.1).
package anaf

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Identificadores del documento
// =============================================================================

const (
	CustomizationID = "urn:cen.eu:en16931:2017#compliant#urn:efactura.mfinante.ro:CIUS-RO:1.0.1"

	InvoiceTypeCommercial = "380" // Factura comercial
	InvoiceTypeCredit     = "381" // Nota de crédito (factura de storno)

	DefaultCurrency = "RON"
	DefaultCountry  = "RO"
)

// =============================================================================
// UN/ECE Rec 20 - Unidades de medida
// =============================================================================

const (
	UnitPiece       = "H87" // bucată
	UnitKilogram    = "KGM"
	UnitHour        = "HUR"
	UnitDay         = "DAY"
	UnitLitre       = "LTR"
	UnitMetre       = "MTR"
	UnitSquareMetre = "MTK"
	UnitSet         = "SET"
)

var unitCodes = map[string]string{
	"buc": UnitPiece, "bucata": UnitPiece, "bucată": UnitPiece, "pcs": UnitPiece,
	"kg":  UnitKilogram,
	"h":   UnitHour, "ora": UnitHour, "ore": UnitHour,
	"zi":  UnitDay, "zile": UnitDay,
	"l":   UnitLitre, "litru": UnitLitre,
	"m":   UnitMetre,
	"mp":  UnitSquareMetre, "m2": UnitSquareMetre,
	"set": UnitSet,
}

// UnitCode traduce la unidad en texto libre al código UN/ECE. Por defecto H87.
func UnitCode(free string) string {
	key := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(free, ".")))
	if code, ok := unitCodes[key]; ok {
		return code
	}
	return UnitPiece
}

// =============================================================================
// UNCL 4461 - Medios de pago
// =============================================================================

const (
	PaymentMeansUndefined = "1"
	PaymentMeansCash      = "10"
	PaymentMeansTransfer  = "42"
	PaymentMeansCard      = "48"
)

// PaymentMeansCode traduce el medio de pago interno al código UNCL 4461.
func PaymentMeansCode(method string) string {
	switch method {
	case "cash":
		return PaymentMeansCash
	case "card":
		return PaymentMeansCard
	case "bank_transfer":
		return PaymentMeansTransfer
	default:
		return PaymentMeansUndefined
	}
}

// =============================================================================
// UNCL 5305 - Categorías de IVA y tramos de tasa
// =============================================================================

const (
	VATStandard      = "S"
	VATZero          = "Z"
	VATExempt        = "E"
	VATNotSubject    = "O"
	VATReverseCharge = "AE"
)

// Bracket tramo de IVA: categoría UNCL 5305 + tasa.
type Bracket struct {
	Key             string
	Category        string
	Rate            decimal.Decimal
	ExemptionCode   string // VATEX, solo para E / O / AE
	ExemptionReason string
}

// Brackets tramos admitidos, en el orden en que se emiten los TaxSubtotal.
var Brackets = []Bracket{
	{Key: "S21", Category: VATStandard, Rate: decimal.NewFromInt(21)},
	{Key: "S19", Category: VATStandard, Rate: decimal.NewFromInt(19)},
	{Key: "S11", Category: VATStandard, Rate: decimal.NewFromInt(11)},
	{Key: "S9", Category: VATStandard, Rate: decimal.NewFromInt(9)},
	{Key: "S5", Category: VATStandard, Rate: decimal.NewFromInt(5)},
	{Key: "Z", Category: VATZero, Rate: decimal.Zero},
	{Key: "E", Category: VATExempt, Rate: decimal.Zero, ExemptionCode: "VATEX-EU-132", ExemptionReason: "Scutit de TVA"},
	{Key: "O", Category: VATNotSubject, Rate: decimal.Zero, ExemptionCode: "VATEX-EU-O", ExemptionReason: "Neplatitor de TVA"},
	{Key: "AE", Category: VATReverseCharge, Rate: decimal.Zero, ExemptionCode: "VATEX-EU-AE", ExemptionReason: "Taxare inversa"},
}

var bracketsByKey = func() map[string]Bracket {
	m := make(map[string]Bracket, len(Brackets))
	for _, b := range Brackets {
		m[b.Key] = b
	}
	return m
}()

// BracketKeys claves de Brackets en orden de emisión.
func BracketKeys() []string {
	keys := make([]string, len(Brackets))
	for i, b := range Brackets {
		keys[i] = b.Key
	}
	return keys
}

// BracketByKey devuelve el tramo por clave.
func BracketByKey(key string) (Bracket, bool) {
	b, ok := bracketsByKey[key]
	return b, ok
}

// ClassifyVAT asigna una línea (tasa + categoría interna) a su tramo.
// Las categorías exenta / no sujeta / inversión exigen tasa 0.
func ClassifyVAT(rate decimal.Decimal, category string) (Bracket, error) {
	var key string
	switch category {
	case "exempt":
		key = "E"
	case "not_subject":
		key = "O"
	case "reverse_charge":
		key = "AE"
	case "zero":
		key = "Z"
	case "":
		if rate.IsZero() {
			key = "Z"
		} else {
			key = "S" + rate.String()
		}
	default:
		return Bracket{}, fmt.Errorf("anaf: categoría de IVA desconocida %q", category)
	}
	b, ok := bracketsByKey[key]
	if !ok {
		return Bracket{}, fmt.Errorf("anaf: tasa de IVA %s%% no admitida", rate.String())
	}
	if !rate.Equal(b.Rate) {
		return Bracket{}, fmt.Errorf("anaf: la categoría %q exige tasa %s%%, recibida %s%%", category, b.Rate.String(), rate.String())
	}
	return b, nil
}
