// Package ksef contiene catálogos del esquema FA(2) de KSeF (Krajowy System e-Faktur, Polonia).
package ksef

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Cabecera FA(2)
// =============================================================================

const (
	Namespace         = "http://crd.gov.pl/wzor/2023/06/29/12648/"
	FormCode          = "FA"
	FormSystemCode    = "FA (2)"
	FormSchemaVersion = "1-0E"
	FormVariant       = "2"

	InvoiceKindVAT        = "VAT"
	InvoiceKindCorrection = "KOR"

	DefaultCurrency = "PLN"
	DefaultCountry  = "PL"
)

// Valores de los campos booleanos de Adnotacje: 1 = sí, 2 = no.
const (
	FlagYes = "1"
	FlagNo  = "2"
)

// =============================================================================
// Unidades de medida (texto libre en P_8A)
// =============================================================================

var unitNames = map[string]string{
	"szt": "szt.", "buc": "szt.", "pcs": "szt.",
	"kg":   "kg",
	"h":    "godz.", "godz": "godz.", "godzina": "godz.",
	"usl":  "usł.", "usł": "usł.", "usługa": "usł.",
	"m":    "m",
	"l":    "l",
	"kpl":  "kpl.", "set": "kpl.",
}

// UnitName normaliza la unidad libre al rótulo habitual en FA(2). Por defecto "szt.".
func UnitName(free string) string {
	key := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(free, ".")))
	if name, ok := unitNames[key]; ok {
		return name
	}
	return "szt."
}

// =============================================================================
// FormaPlatnosci
// =============================================================================

const (
	PaymentCash     = "1" // gotówka
	PaymentCard     = "2" // karta
	PaymentTransfer = "6" // przelew
)

// PaymentForm traduce el medio de pago interno a FormaPlatnosci. "" si no aplica.
func PaymentForm(method string) string {
	switch method {
	case "cash":
		return PaymentCash
	case "card":
		return PaymentCard
	case "bank_transfer":
		return PaymentTransfer
	default:
		return ""
	}
}

// =============================================================================
// Tramos de IVA (P_13_x / P_14_x, P_12 por línea)
// =============================================================================

// Bracket tramo de IVA de FA(2).
type Bracket struct {
	Key      string
	Rate     decimal.Decimal
	NetField string // P_13_x
	VATField string // P_14_x; vacío cuando el tramo no lleva IVA
	RateCode string // valor de P_12 en FaWiersz
}

// Brackets tramos en el orden exigido por el esquema dentro de Fa.
var Brackets = []Bracket{
	{Key: "23", Rate: decimal.NewFromInt(23), NetField: "P_13_1", VATField: "P_14_1", RateCode: "23"},
	{Key: "8", Rate: decimal.NewFromInt(8), NetField: "P_13_2", VATField: "P_14_2", RateCode: "8"},
	{Key: "5", Rate: decimal.NewFromInt(5), NetField: "P_13_3", VATField: "P_14_3", RateCode: "5"},
	{Key: "0", Rate: decimal.Zero, NetField: "P_13_6_1", RateCode: "0"},
	{Key: "zw", Rate: decimal.Zero, NetField: "P_13_7", RateCode: "zw"},
	{Key: "np", Rate: decimal.Zero, NetField: "P_13_8", RateCode: "np"},
	{Key: "oo", Rate: decimal.Zero, NetField: "P_13_10", RateCode: "oo"},
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

// ClassifyVAT asigna una línea a su tramo. La tasa 0 se separa por categoría:
// exenta (zw), no sujeta (np), inversión del sujeto pasivo (oo) o tasa cero.
func ClassifyVAT(rate decimal.Decimal, category string) (Bracket, error) {
	var key string
	switch category {
	case "exempt":
		key = "zw"
	case "not_subject":
		key = "np"
	case "reverse_charge":
		key = "oo"
	case "zero":
		key = "0"
	case "":
		key = rate.String()
	default:
		return Bracket{}, fmt.Errorf("ksef: categoría de IVA desconocida %q", category)
	}
	b, ok := bracketsByKey[key]
	if !ok {
		return Bracket{}, fmt.Errorf("ksef: tasa de IVA %s%% no admitida", rate.String())
	}
	if !rate.Equal(b.Rate) {
		return Bracket{}, fmt.Errorf("ksef: la categoría %q exige tasa %s%%, recibida %s%%", category, b.Rate.String(), rate.String())
	}
	return b, nil
}
