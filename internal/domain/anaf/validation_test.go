package anaf_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/internal/domain/anaf"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture: factura rumana válida (1 × 100.00 RON, IVA 19 % → 119.00 RON)
// ──────────────────────────────────────────────────────────────────────────────

func validInvoice() *entity.Invoice {
	return &entity.Invoice{
		ID:           "inv-1",
		Number:       "FCT-0001",
		DocumentType: entity.DocumentTypeInvoice,
		IssueDate:    time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Currency:     "RON",
		Status:       entity.InvoiceStatusIssued,
		Company: &entity.Company{
			TaxID: "RO18547290", Name: "Exemplu SRL", Address: "Str. Lalelelor 1",
			City: "Cluj-Napoca", County: "CJ", Country: "RO",
		},
		Customer: &entity.Customer{
			IsCompany: true, TaxID: "14399840", Name: "Client SA",
			Address: "Bd. Unirii 10", City: "Bucuresti", Country: "RO",
		},
		Lines: []entity.InvoiceLine{{
			Description: "Servicii consultanta", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.RequireFromString("100.00"), UnitOfMeasure: "buc",
			VATRate: decimal.NewFromInt(19),
		}},
		NetTotal:   decimal.RequireFromString("100.00"),
		TaxTotal:   decimal.RequireFromString("19.00"),
		GrandTotal: decimal.RequireFromString("119.00"),
	}
}

func TestValidate_FacturaValida(t *testing.T) {
	res := anaf.NewValidator().Validate(validInvoice())
	assert.True(t, res.IsValid, "la factura de referencia debe ser válida: %s", res.Messages())
	assert.Empty(t, res.Errors)
}

func TestValidate_ClienteJuridicoSinCIF_UnSoloErrorDeNegocio(t *testing.T) {
	inv := validInvoice()
	inv.Customer.TaxID = ""

	res := anaf.NewValidator().Validate(inv)
	require.False(t, res.IsValid)
	require.Len(t, res.Errors, 1, "solo debe fallar la regla del CIF del cliente")
	assert.Equal(t, "ANAF-BUYER-01", res.Errors[0].Code)
	assert.Equal(t, einvoice.CategoryBusiness, res.Errors[0].Category)

	inv.Customer.TaxID = "14399840"
	assert.True(t, anaf.NewValidator().Validate(inv).IsValid, "corregido el dato debe validar")
}

func TestValidate_SinClienteRequiereNombreReceptor(t *testing.T) {
	inv := validInvoice()
	inv.Customer = nil

	res := anaf.NewValidator().Validate(inv)
	assert.Equal(t, []string{"ANAF-BUYER-03"}, res.Codes())

	inv.ReceiverName = "Ion Popescu"
	assert.True(t, anaf.NewValidator().Validate(inv).IsValid)
}

func TestValidate_EmisorIncompleto(t *testing.T) {
	inv := validInvoice()
	inv.Company = &entity.Company{}

	res := anaf.NewValidator().Validate(inv)
	assert.Equal(t,
		[]string{"ANAF-SELLER-01", "ANAF-SELLER-02", "ANAF-SELLER-03", "ANAF-SELLER-04"},
		res.Codes())
}

func TestValidate_CIFConDigitoDeControlErroneo(t *testing.T) {
	inv := validInvoice()
	inv.Company.TaxID = "RO18547291"

	res := anaf.NewValidator().Validate(inv)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "ANAF-SELLER-05", res.Errors[0].Code)
	assert.Equal(t, einvoice.CategoryBusiness, res.Errors[0].Category)
}

func TestValidate_CantidadCeroFallaEnFacturaNormal(t *testing.T) {
	inv := validInvoice()
	inv.Lines[0].Quantity = decimal.Zero

	res := anaf.NewValidator().Validate(inv)
	assert.Contains(t, res.Codes(), "ANAF-LINE-02")
}

func TestValidate_NotaDeCreditoExentaDeCantidadYPrecio(t *testing.T) {
	inv := validInvoice()
	inv.DocumentType = entity.DocumentTypeCorrection
	inv.Parent = &entity.ParentDocument{Number: "FCT-0000", IssueDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	inv.Lines[0].Quantity = decimal.Zero
	inv.Lines[0].UnitPrice = decimal.NewFromInt(-100)
	inv.GrandTotal = decimal.NewFromInt(-119)

	res := anaf.NewValidator().Validate(inv)
	assert.True(t, res.IsValid, "la nota de crédito no valida cantidad/precio/total: %s", res.Messages())
}

func TestValidate_NotaDeCreditoSinReferencia(t *testing.T) {
	inv := validInvoice()
	inv.DocumentType = entity.DocumentTypeCorrection

	res := anaf.NewValidator().Validate(inv)
	assert.Equal(t, []string{"ANAF-DOC-03"}, res.Codes())
}

func TestValidate_PrecioCeroAdmitidoEnANAF(t *testing.T) {
	inv := validInvoice()
	inv.Lines = append(inv.Lines, entity.InvoiceLine{
		Description: "Mostra gratuita", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.Zero,
		VATRate: decimal.NewFromInt(19),
	})

	assert.True(t, anaf.NewValidator().Validate(inv).IsValid, "ANAF admite precio unitario 0")
}

func TestValidate_IdentidadYTotal(t *testing.T) {
	inv := validInvoice()
	inv.Number = " "
	inv.IssueDate = time.Time{}
	inv.GrandTotal = decimal.Zero
	inv.Lines = nil

	res := anaf.NewValidator().Validate(inv)
	assert.Equal(t, []string{"ANAF-DOC-01", "ANAF-DOC-02", "ANAF-DOC-04", "ANAF-DOC-05"}, res.Codes())
}
