package ksef

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	pkgksef "github.com/jhoicas/einvoice-gateway/pkg/ksef"
	"github.com/shopspring/decimal"
	"github.com/ucarion/c14n"
)

const (
	nsXsi = "http://www.w3.org/2001/XMLSchema-instance"
	// Fundamento legal por defecto para líneas exentas (P_19A).
	defaultExemptionBasis = "art. 43 ust. 1 ustawy o VAT"
	systemInfo            = "einvoice-gateway"
	xmlDeclaration        = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"
)

// FA2Builder genera el XML FA(2) de KSeF. El reloj se inyecta para DataWytworzeniaFa.
type FA2Builder struct {
	now func() time.Time
}

// NewFA2Builder construye el generador. now nil = time.Now.
func NewFA2Builder(now func() time.Time) *FA2Builder {
	if now == nil {
		now = time.Now
	}
	return &FA2Builder{now: now}
}

// Generate devuelve el documento Faktura canonicalizado (C14N) con declaración XML.
// Proformas y presupuestos no existen en KSeF: domain.ErrUnsupportedDocument.
func (b *FA2Builder) Generate(inv *entity.Invoice) ([]byte, error) {
	if inv == nil || inv.Company == nil {
		return nil, fmt.Errorf("ksef: faltan factura o empresa")
	}
	switch inv.DocumentType {
	case entity.DocumentTypeProforma, entity.DocumentTypeQuote:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, inv.DocumentType)
	}

	brackets, err := einvoice.SumByBracket(inv.Lines, pkgksef.BracketKeys(), classifyLine)
	if err != nil {
		return nil, err
	}
	net, vat := einvoice.Totals(brackets)

	doc := etree.NewDocument()
	root := doc.CreateElement("Faktura")
	root.CreateAttr("xmlns", pkgksef.Namespace)
	root.CreateAttr("xmlns:xsi", nsXsi)

	b.writeHeader(root)
	b.writeSeller(root.CreateElement("Podmiot1"), inv.Company)
	b.writeBuyer(root.CreateElement("Podmiot2"), inv)

	fa := root.CreateElement("Fa")
	text(fa, "KodWaluty", inv.CurrencyOrDefault(pkgksef.DefaultCurrency))
	text(fa, "P_1", inv.IssueDate.Format("2006-01-02"))
	text(fa, "P_2", einvoice.CleanText(inv.Number))
	for _, bt := range brackets {
		br, _ := pkgksef.BracketByKey(bt.Key)
		text(fa, br.NetField, einvoice.FormatAmount(bt.Net))
		if br.VATField != "" {
			text(fa, br.VATField, einvoice.FormatAmount(bt.VAT))
		}
	}
	text(fa, "P_15", einvoice.FormatAmount(net.Add(vat)))
	b.writeAnnotations(fa, inv, brackets)

	if inv.IsCorrection() {
		text(fa, "RodzajFaktury", pkgksef.InvoiceKindCorrection)
		if reason := einvoice.CleanText(inv.CorrectionReason); reason != "" {
			text(fa, "PrzyczynaKorekty", reason)
		}
		if inv.Parent != nil {
			ref := fa.CreateElement("DaneFaKorygowanej")
			if !inv.Parent.IssueDate.IsZero() {
				text(ref, "DataWystFaKorygowanej", inv.Parent.IssueDate.Format("2006-01-02"))
			}
			text(ref, "NrFaKorygowanej", einvoice.CleanText(inv.Parent.Number))
			// Factura original emitida fuera de KSeF.
			text(ref, "NrKSeFN", pkgksef.FlagYes)
		}
	} else {
		text(fa, "RodzajFaktury", pkgksef.InvoiceKindVAT)
	}

	for i, line := range inv.Lines {
		if err := b.writeLine(fa, i+1, line); err != nil {
			return nil, err
		}
	}
	b.writePayment(fa, inv)

	doc.Indent(2)
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("ksef: serializar FA(2): %w", err)
	}
	return append([]byte(xmlDeclaration), canonicalize(raw)...), nil
}

func classifyLine(l entity.InvoiceLine) (string, error) {
	br, err := pkgksef.ClassifyVAT(l.VATRate, l.VATCategory)
	if err != nil {
		return "", err
	}
	return br.Key, nil
}

func (b *FA2Builder) writeHeader(root *etree.Element) {
	h := root.CreateElement("Naglowek")
	kod := h.CreateElement("KodFormularza")
	kod.CreateAttr("kodSystemowy", pkgksef.FormSystemCode)
	kod.CreateAttr("wersjaSchemy", pkgksef.FormSchemaVersion)
	kod.SetText(pkgksef.FormCode)
	text(h, "WariantFormularza", pkgksef.FormVariant)
	text(h, "DataWytworzeniaFa", b.now().UTC().Format("2006-01-02T15:04:05Z"))
	text(h, "SystemInfo", systemInfo)
}

func (b *FA2Builder) writeSeller(p *etree.Element, co *entity.Company) {
	id := p.CreateElement("DaneIdentyfikacyjne")
	text(id, "NIP", pkgksef.NormalizeNIP(co.TaxID))
	text(id, "Nazwa", einvoice.CleanText(co.Name))
	writeAddress(p, co.Country, co.Address, co.PostalCode, co.City)
}

func (b *FA2Builder) writeBuyer(p *etree.Element, inv *entity.Invoice) {
	id := p.CreateElement("DaneIdentyfikacyjne")
	cu := inv.Customer
	if cu == nil {
		text(id, "BrakID", pkgksef.FlagYes)
		text(id, "Nazwa", einvoice.CleanText(inv.ReceiverName))
		return
	}
	country := strings.ToUpper(strings.TrimSpace(cu.Country))
	switch {
	case cu.IsCompany && cu.TaxID != "" && (country == "" || country == pkgksef.DefaultCountry):
		text(id, "NIP", pkgksef.NormalizeNIP(cu.TaxID))
	case cu.IsCompany && cu.TaxID != "":
		// Identificador de la UE u otro país.
		text(id, "KodKraju", country)
		text(id, "NrID", strings.TrimSpace(cu.TaxID))
	default:
		text(id, "BrakID", pkgksef.FlagYes)
	}
	text(id, "Nazwa", einvoice.CleanText(cu.Name))
	if strings.TrimSpace(cu.Address) != "" {
		writeAddress(p, cu.Country, cu.Address, cu.PostalCode, cu.City)
	}
}

// writeAnnotations campos obligatorios de Adnotacje. Todo "no" salvo que la factura
// declare el atributo.
func (b *FA2Builder) writeAnnotations(fa *etree.Element, inv *entity.Invoice, brackets []einvoice.BracketTotal) {
	a := fa.CreateElement("Adnotacje")
	text(a, "P_16", flag(inv.CashAccounting))
	text(a, "P_17", flag(inv.SelfBilling))
	text(a, "P_18", flag(inv.ReverseCharge))
	text(a, "P_18A", flag(inv.SplitPayment))

	z := a.CreateElement("Zwolnienie")
	if hasBracket(brackets, "zw") {
		text(z, "P_19", pkgksef.FlagYes)
		text(z, "P_19A", defaultExemptionBasis)
	} else {
		text(z, "P_19N", pkgksef.FlagYes)
	}
	text(a.CreateElement("NoweSrodkiTransportu"), "P_22N", pkgksef.FlagYes)
	text(a, "P_23", pkgksef.FlagNo)
	text(a.CreateElement("PMarzy"), "P_PMarzyN", pkgksef.FlagYes)
}

func (b *FA2Builder) writeLine(fa *etree.Element, n int, line entity.InvoiceLine) error {
	br, err := pkgksef.ClassifyVAT(line.VATRate, line.VATCategory)
	if err != nil {
		return fmt.Errorf("ksef: línea %d: %w", n, err)
	}
	w := fa.CreateElement("FaWiersz")
	text(w, "NrWierszaFa", strconv.Itoa(n))
	text(w, "P_7", einvoice.CleanText(line.Description))
	text(w, "P_8A", pkgksef.UnitName(line.UnitOfMeasure))
	text(w, "P_8B", formatQuantity(line.Quantity))
	text(w, "P_9A", einvoice.FormatAmount(line.UnitPrice))
	text(w, "P_11", einvoice.FormatAmount(line.NetAmount()))
	text(w, "P_12", br.RateCode)
	return nil
}

func (b *FA2Builder) writePayment(fa *etree.Element, inv *entity.Invoice) {
	form := pkgksef.PaymentForm(inv.PaymentMethod)
	account := strings.ReplaceAll(strings.TrimSpace(inv.BankAccount), " ", "")
	if form == "" && account == "" && inv.DueDate == nil {
		return
	}
	p := fa.CreateElement("Platnosc")
	if inv.DueDate != nil {
		text(p.CreateElement("TerminPlatnosci"), "Termin", inv.DueDate.Format("2006-01-02"))
	}
	if form != "" {
		text(p, "FormaPlatnosci", form)
	}
	if account != "" {
		text(p.CreateElement("RachunekBankowy"), "NrRB", strings.TrimPrefix(strings.ToUpper(account), "PL"))
	}
}

// ── helpers ──────────────────────────────────────────────────────────────────

func writeAddress(p *etree.Element, country, street, postal, city string) {
	if country == "" {
		country = pkgksef.DefaultCountry
	}
	a := p.CreateElement("Adres")
	text(a, "KodKraju", strings.ToUpper(country))
	text(a, "AdresL1", einvoice.CleanText(street))
	if l2 := strings.TrimSpace(einvoice.CleanText(postal) + " " + einvoice.CleanText(city)); l2 != "" {
		text(a, "AdresL2", l2)
	}
}

func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}

func flag(v bool) string {
	if v {
		return pkgksef.FlagYes
	}
	return pkgksef.FlagNo
}

func hasBracket(brackets []einvoice.BracketTotal, key string) bool {
	for _, b := range brackets {
		if b.Key == key {
			return true
		}
	}
	return false
}

func formatQuantity(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0)
	}
	return d.Round(6).String()
}

// canonicalize aplica C14N; si falla se devuelven los bytes originales.
func canonicalize(data []byte) []byte {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	out, err := c14n.Canonicalize(dec)
	if err != nil {
		return data
	}
	return out
}
