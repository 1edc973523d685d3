package anaf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	pkganaf "github.com/jhoicas/einvoice-gateway/pkg/anaf"
	"github.com/shopspring/decimal"
)

// Namespaces UBL 2.1.
const (
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NsCac     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NsCbc     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
)

// UBLBuilder genera el XML UBL 2.1 / CIUS-RO de una factura. Función pura, sin I/O.
type UBLBuilder struct{}

// NewUBLBuilder crea el generador.
func NewUBLBuilder() *UBLBuilder {
	return &UBLBuilder{}
}

// ublTotals importes calculados a partir de las líneas.
type ublTotals struct {
	brackets []einvoice.BracketTotal
	net      decimal.Decimal
	vat      decimal.Decimal
}

// Generate devuelve el documento Invoice. Falla con domain.ErrUnsupportedDocument si el
// tipo de documento no se puede enviar (proforma, presupuesto).
func (b *UBLBuilder) Generate(inv *entity.Invoice) ([]byte, error) {
	if inv == nil || inv.Company == nil {
		return nil, fmt.Errorf("anaf: faltan factura o empresa")
	}
	switch inv.DocumentType {
	case entity.DocumentTypeProforma, entity.DocumentTypeQuote:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, inv.DocumentType)
	}

	brackets, err := einvoice.SumByBracket(inv.Lines, pkganaf.BracketKeys(), classifyLine)
	if err != nil {
		return nil, err
	}
	net, vat := einvoice.Totals(brackets)
	totals := ublTotals{brackets: brackets, net: net, vat: vat}
	currency := inv.CurrencyOrDefault(pkganaf.DefaultCurrency)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "Invoice"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsInvoice},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ---- Cabecera (el orden de los elementos lo fija el XSD)
	writeCbc(enc, "CustomizationID", pkganaf.CustomizationID)
	writeCbc(enc, "ID", einvoice.CleanText(inv.Number))
	writeCbc(enc, "IssueDate", inv.IssueDate.Format("2006-01-02"))
	if inv.DueDate != nil {
		writeCbc(enc, "DueDate", inv.DueDate.Format("2006-01-02"))
	}
	typeCode := pkganaf.InvoiceTypeCommercial
	if inv.IsCorrection() {
		typeCode = pkganaf.InvoiceTypeCredit
	}
	writeCbc(enc, "InvoiceTypeCode", typeCode)
	if note := einvoice.CleanText(inv.Notes); note != "" {
		writeCbc(enc, "Note", note)
	}
	if inv.IsCorrection() && inv.CorrectionReason != "" {
		writeCbc(enc, "Note", einvoice.CleanText(inv.CorrectionReason))
	}
	writeCbc(enc, "DocumentCurrencyCode", currency)

	// ---- cac:BillingReference (nota de crédito → factura original)
	if inv.IsCorrection() && inv.Parent != nil {
		startCac(enc, "BillingReference")
		startCac(enc, "InvoiceDocumentReference")
		writeCbc(enc, "ID", einvoice.CleanText(inv.Parent.Number))
		if !inv.Parent.IssueDate.IsZero() {
			writeCbc(enc, "IssueDate", inv.Parent.IssueDate.Format("2006-01-02"))
		}
		endCac(enc, "InvoiceDocumentReference")
		endCac(enc, "BillingReference")
	}

	b.writeSupplierParty(enc, inv.Company)
	b.writeCustomerParty(enc, inv)
	b.writePaymentMeans(enc, inv)
	b.writeTaxTotal(enc, totals, currency)
	b.writeLegalMonetaryTotal(enc, totals, currency)
	for i, line := range inv.Lines {
		if err := b.writeInvoiceLine(enc, i+1, line, currency); err != nil {
			return nil, err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func classifyLine(l entity.InvoiceLine) (string, error) {
	br, err := pkganaf.ClassifyVAT(l.VATRate, l.VATCategory)
	if err != nil {
		return "", err
	}
	return br.Key, nil
}

// ── partes ───────────────────────────────────────────────────────────────────

func (b *UBLBuilder) writeSupplierParty(enc *xml.Encoder, co *entity.Company) {
	startCac(enc, "AccountingSupplierParty")
	startCac(enc, "Party")
	writePostalAddress(enc, co.Address, co.City, co.County, co.Country)

	// CompanyID con prefijo RO en PartyTaxScheme (plătitor de TVA); sin prefijo en PartyLegalEntity.
	cif := pkganaf.NormalizeCIF(co.TaxID)
	startCac(enc, "PartyTaxScheme")
	writeCbc(enc, "CompanyID", "RO"+cif)
	writeTaxScheme(enc)
	endCac(enc, "PartyTaxScheme")

	startCac(enc, "PartyLegalEntity")
	writeCbc(enc, "RegistrationName", einvoice.CleanText(co.Name))
	writeCbc(enc, "CompanyID", cif)
	endCac(enc, "PartyLegalEntity")

	endCac(enc, "Party")
	endCac(enc, "AccountingSupplierParty")
}

func (b *UBLBuilder) writeCustomerParty(enc *xml.Encoder, inv *entity.Invoice) {
	startCac(enc, "AccountingCustomerParty")
	startCac(enc, "Party")

	cu := inv.Customer
	if cu == nil {
		// Sin cliente estructurado: solo nombre del receptor y país.
		writePostalAddress(enc, "", "", "", pkganaf.DefaultCountry)
		startCac(enc, "PartyLegalEntity")
		writeCbc(enc, "RegistrationName", einvoice.CleanText(inv.ReceiverName))
		endCac(enc, "PartyLegalEntity")
	} else {
		writePostalAddress(enc, cu.Address, cu.City, cu.County, cu.Country)
		taxID := strings.ToUpper(strings.TrimSpace(cu.TaxID))
		if cu.IsCompany && taxID != "" {
			startCac(enc, "PartyTaxScheme")
			writeCbc(enc, "CompanyID", taxID)
			writeTaxScheme(enc)
			endCac(enc, "PartyTaxScheme")
		}
		startCac(enc, "PartyLegalEntity")
		writeCbc(enc, "RegistrationName", einvoice.CleanText(cu.Name))
		if cu.IsCompany && taxID != "" {
			writeCbc(enc, "CompanyID", taxID)
		}
		endCac(enc, "PartyLegalEntity")
	}

	endCac(enc, "Party")
	endCac(enc, "AccountingCustomerParty")
}

func (b *UBLBuilder) writePaymentMeans(enc *xml.Encoder, inv *entity.Invoice) {
	startCac(enc, "PaymentMeans")
	writeCbc(enc, "PaymentMeansCode", pkganaf.PaymentMeansCode(inv.PaymentMethod))
	if acc := strings.ReplaceAll(strings.TrimSpace(inv.BankAccount), " ", ""); acc != "" {
		startCac(enc, "PayeeFinancialAccount")
		writeCbc(enc, "ID", acc)
		endCac(enc, "PayeeFinancialAccount")
	}
	endCac(enc, "PaymentMeans")
}

// ── importes ─────────────────────────────────────────────────────────────────

func (b *UBLBuilder) writeTaxTotal(enc *xml.Encoder, t ublTotals, currency string) {
	startCac(enc, "TaxTotal")
	writeCbcAmount(enc, "TaxAmount", t.vat, currency)
	for _, bt := range t.brackets {
		br, _ := pkganaf.BracketByKey(bt.Key)
		startCac(enc, "TaxSubtotal")
		writeCbcAmount(enc, "TaxableAmount", bt.Net, currency)
		writeCbcAmount(enc, "TaxAmount", bt.VAT, currency)
		startCac(enc, "TaxCategory")
		writeCbc(enc, "ID", br.Category)
		writeVATPercent(enc, br)
		if br.ExemptionCode != "" {
			writeCbc(enc, "TaxExemptionReasonCode", br.ExemptionCode)
			writeCbc(enc, "TaxExemptionReason", br.ExemptionReason)
		}
		writeTaxScheme(enc)
		endCac(enc, "TaxCategory")
		endCac(enc, "TaxSubtotal")
	}
	endCac(enc, "TaxTotal")
}

// writeVATPercent la categoría O (no sujeta) no lleva tasa.
func writeVATPercent(enc *xml.Encoder, br pkganaf.Bracket) {
	if br.Category == pkganaf.VATNotSubject {
		return
	}
	writeCbc(enc, "Percent", einvoice.FormatAmount(br.Rate))
}

func (b *UBLBuilder) writeLegalMonetaryTotal(enc *xml.Encoder, t ublTotals, currency string) {
	gross := t.net.Add(t.vat)
	startCac(enc, "LegalMonetaryTotal")
	writeCbcAmount(enc, "LineExtensionAmount", t.net, currency)
	writeCbcAmount(enc, "TaxExclusiveAmount", t.net, currency)
	writeCbcAmount(enc, "TaxInclusiveAmount", gross, currency)
	writeCbcAmount(enc, "PayableAmount", gross, currency)
	endCac(enc, "LegalMonetaryTotal")
}

func (b *UBLBuilder) writeInvoiceLine(enc *xml.Encoder, n int, line entity.InvoiceLine, currency string) error {
	br, err := pkganaf.ClassifyVAT(line.VATRate, line.VATCategory)
	if err != nil {
		return fmt.Errorf("anaf: línea %d: %w", n, err)
	}
	startCac(enc, "InvoiceLine")
	writeCbc(enc, "ID", strconv.Itoa(n))
	writeCbcWithAttr(enc, "InvoicedQuantity", formatQuantity(line.Quantity), "unitCode", pkganaf.UnitCode(line.UnitOfMeasure))
	writeCbcAmount(enc, "LineExtensionAmount", line.NetAmount(), currency)

	startCac(enc, "Item")
	writeCbc(enc, "Name", einvoice.CleanText(line.Description))
	startCac(enc, "ClassifiedTaxCategory")
	writeCbc(enc, "ID", br.Category)
	writeVATPercent(enc, br)
	writeTaxScheme(enc)
	endCac(enc, "ClassifiedTaxCategory")
	endCac(enc, "Item")

	startCac(enc, "Price")
	writeCbcAmount(enc, "PriceAmount", line.UnitPrice, currency)
	endCac(enc, "Price")

	endCac(enc, "InvoiceLine")
	return nil
}

// ── helpers de escritura ─────────────────────────────────────────────────────

func writePostalAddress(enc *xml.Encoder, street, city, county, country string) {
	if country == "" {
		country = pkganaf.DefaultCountry
	}
	country = strings.ToUpper(country)
	startCac(enc, "PostalAddress")
	if s := einvoice.CleanText(street); s != "" {
		writeCbc(enc, "StreetName", s)
	}
	if c := einvoice.CleanText(city); c != "" {
		writeCbc(enc, "CityName", c)
	}
	// ISO 3166-2 (RO-CJ) obligatorio para direcciones rumanas.
	if county = strings.ToUpper(strings.TrimSpace(county)); county != "" {
		if !strings.Contains(county, "-") {
			county = country + "-" + county
		}
		writeCbc(enc, "CountrySubentity", county)
	}
	startCac(enc, "Country")
	writeCbc(enc, "IdentificationCode", country)
	endCac(enc, "Country")
	endCac(enc, "PostalAddress")
}

func writeTaxScheme(enc *xml.Encoder) {
	startCac(enc, "TaxScheme")
	writeCbc(enc, "ID", "VAT")
	endCac(enc, "TaxScheme")
}

func startCac(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:" + local}})
}

func endCac(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:" + local}})
}

func writeCbc(enc *xml.Encoder, local, value string) {
	writeCbcWithAttr(enc, local, value, "", "")
}

func writeCbcAmount(enc *xml.Encoder, local string, value decimal.Decimal, currency string) {
	writeCbcWithAttr(enc, local, einvoice.FormatAmount(value), "currencyID", currency)
}

func writeCbcWithAttr(enc *xml.Encoder, local, value, attrName, attrValue string) {
	start := xml.StartElement{Name: xml.Name{Local: "cbc:" + local}}
	if attrName != "" {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: attrName}, Value: attrValue}}
	}
	_ = enc.EncodeToken(start)
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(start.End())
}

func formatQuantity(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0)
	}
	return d.Round(3).String()
}
