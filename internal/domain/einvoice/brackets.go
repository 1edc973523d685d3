package einvoice

import (
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// BracketTotal base imponible e IVA acumulados de un tramo de IVA.
type BracketTotal struct {
	Key string
	Net decimal.Decimal
	VAT decimal.Decimal
}

// SumByBracket agrupa las líneas en tramos con classify y suma base e IVA por tramo.
// El resultado sigue el orden de order; los tramos sin líneas se omiten.
// El IVA del tramo es la suma del IVA ya redondeado de cada línea, de modo que la
// suma de tramos coincide al céntimo con la suma de líneas.
func SumByBracket(lines []entity.InvoiceLine, order []string, classify func(entity.InvoiceLine) (string, error)) ([]BracketTotal, error) {
	acc := make(map[string]*BracketTotal, len(order))
	for _, l := range lines {
		key, err := classify(l)
		if err != nil {
			return nil, err
		}
		t, ok := acc[key]
		if !ok {
			t = &BracketTotal{Key: key}
			acc[key] = t
		}
		t.Net = t.Net.Add(l.NetAmount())
		t.VAT = t.VAT.Add(l.VATAmount())
	}
	out := make([]BracketTotal, 0, len(acc))
	for _, key := range order {
		if t, ok := acc[key]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Totals suma base e IVA de todos los tramos.
func Totals(brackets []BracketTotal) (net, vat decimal.Decimal) {
	for _, b := range brackets {
		net = net.Add(b.Net)
		vat = vat.Add(b.VAT)
	}
	return net, vat
}

// FormatAmount serializa un importe con exactamente 2 decimales.
func FormatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
