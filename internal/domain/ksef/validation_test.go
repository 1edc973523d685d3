package ksef_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/ksef"
)

func validInvoice() *entity.Invoice {
	return &entity.Invoice{
		Number:       "FV/2024/03/001",
		DocumentType: entity.DocumentTypeInvoice,
		IssueDate:    time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Currency:     "PLN",
		Company: &entity.Company{
			TaxID: "5260250274", Name: "Przykład Sp. z o.o.", Address: "ul. Prosta 1",
			City: "Warszawa", Country: "PL",
		},
		Customer: &entity.Customer{
			IsCompany: true, TaxID: "PL1234563218", Name: "Klient S.A.",
			Address: "ul. Długa 5", City: "Kraków", Country: "PL",
		},
		Lines: []entity.InvoiceLine{{
			Description: "Usługa programistyczna", Quantity: decimal.NewFromInt(2),
			UnitPrice: decimal.RequireFromString("50.00"), UnitOfMeasure: "usł",
			VATRate: decimal.NewFromInt(23),
		}},
		GrandTotal: decimal.RequireFromString("123.00"),
	}
}

func TestValidate_FacturaValida(t *testing.T) {
	res := ksef.NewValidator().Validate(validInvoice())
	assert.True(t, res.IsValid, res.Messages())
}

func TestValidate_PrecioCeroRechazadoEnKSeF(t *testing.T) {
	inv := validInvoice()
	inv.Lines[0].UnitPrice = decimal.Zero

	res := ksef.NewValidator().Validate(inv)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "KSEF-LINE-03", res.Errors[0].Code, "KSeF exige precio unitario > 0")
	assert.Equal(t, einvoice.CategoryBusiness, res.Errors[0].Category)
}

func TestValidate_ClienteJuridicoSinNIP(t *testing.T) {
	inv := validInvoice()
	inv.Customer.TaxID = ""

	res := ksef.NewValidator().Validate(inv)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "KSEF-BUYER-01", res.Errors[0].Code)
	assert.Equal(t, einvoice.CategoryBusiness, res.Errors[0].Category)
}

func TestValidate_ClienteExtranjeroNoSeVerificaNIP(t *testing.T) {
	inv := validInvoice()
	inv.Customer.Country = "DE"
	inv.Customer.TaxID = "DE123456789"

	assert.True(t, ksef.NewValidator().Validate(inv).IsValid)
}

func TestValidate_ClientePersonaFisicaSinNIP(t *testing.T) {
	inv := validInvoice()
	inv.Customer.IsCompany = false
	inv.Customer.TaxID = ""

	assert.True(t, ksef.NewValidator().Validate(inv).IsValid, "persona física no requiere NIP")
}

func TestValidate_NotaDeCreditoConCantidadCero(t *testing.T) {
	inv := validInvoice()
	inv.DocumentType = entity.DocumentTypeCorrection
	inv.Parent = &entity.ParentDocument{Number: "FV/2024/02/010", IssueDate: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)}
	inv.Lines[0].Quantity = decimal.Zero
	inv.Lines[0].UnitPrice = decimal.Zero
	inv.GrandTotal = decimal.Zero

	assert.True(t, ksef.NewValidator().Validate(inv).IsValid)

	inv.DocumentType = entity.DocumentTypeInvoice
	inv.Parent = nil
	res := ksef.NewValidator().Validate(inv)
	assert.Contains(t, res.Codes(), "KSEF-LINE-02")
}

func TestValidate_LineaSinDescripcion(t *testing.T) {
	inv := validInvoice()
	inv.Lines[0].Description = ""

	res := ksef.NewValidator().Validate(inv)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "KSEF-LINE-01", res.Errors[0].Code)
	assert.Equal(t, einvoice.CategoryStructural, res.Errors[0].Category)
	assert.Contains(t, res.Errors[0].Message, "línea 1")
}
