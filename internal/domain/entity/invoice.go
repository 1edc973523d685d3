package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la factura que el pipeline de e-factura lee o modifica.
const (
	InvoiceStatusDraft          = "DRAFT"
	InvoiceStatusIssued         = "ISSUED"
	InvoiceStatusSentToProvider = "SENT_TO_PROVIDER" // Subida al proveedor, esperando resultado
	InvoiceStatusValidated      = "VALIDATED"        // Aceptada por el proveedor
	InvoiceStatusRefund         = "REFUND"           // Nota de crédito aceptada
	InvoiceStatusRejected       = "REJECTED"
	InvoiceStatusCancelled      = "CANCELLED"
)

// Etiquetas de Invoice.ProviderStatus (espejo plano del último envío).
const (
	ProviderTagValidationFailed = "VALIDATION_FAILED"
	ProviderTagXMLFailed        = "XML_FAILED"
	ProviderTagNoCredential     = "NO_CREDENTIAL"
	ProviderTagUploadFailed     = "UPLOAD_FAILED"
	ProviderTagUploaded         = "UPLOADED"
	ProviderTagAccepted         = "ACCEPTED"
	ProviderTagRejected         = "REJECTED"
	ProviderTagPendingTimeout   = "PENDING_TIMEOUT" // Se agotaron las consultas de estado
)

// Tipos de documento comercial.
const (
	DocumentTypeInvoice    = "INVOICE"
	DocumentTypeCorrection = "CORRECTION" // Nota de crédito / factura correctiva
	DocumentTypeProforma   = "PROFORMA"
	DocumentTypeQuote      = "QUOTE"
)

// Medios de pago.
const (
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
)

// ParentDocument referencia a la factura original que corrige una nota de crédito.
type ParentDocument struct {
	ID        string
	Number    string
	IssueDate time.Time
}

// Invoice representa la cabecera de una factura con sus partes y líneas cargadas.
type Invoice struct {
	ID           string
	CompanyID    string
	CustomerID   string // vacío = sin cliente estructurado (usa ReceiverName)
	Number       string
	DocumentType string
	IssueDate    time.Time
	DueDate      *time.Time
	Currency     string
	Status       string
	Notes        string

	Company      *Company
	Customer     *Customer
	ReceiverName string
	Lines        []InvoiceLine

	Parent           *ParentDocument
	CorrectionReason string

	PaymentMethod string
	BankAccount   string // IBAN / NRB

	NetTotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal

	// Atributos fiscales opcionales. Por defecto "no aplica" en el XML.
	CashAccounting bool
	SelfBilling    bool
	ReverseCharge  bool
	SplitPayment   bool

	ScheduledForSubmission bool // marcada para el próximo lote de envío

	// Espejo del estado en el proveedor de e-factura.
	ProviderStatus     string
	ProviderUploadID   string
	ProviderDownloadID string
	ProviderError      string
	XMLPath            string
	SyncedAt           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCorrection indica si la factura es una nota de crédito (corrige otro documento).
func (i *Invoice) IsCorrection() bool {
	return i.DocumentType == DocumentTypeCorrection || i.Parent != nil
}

// AcceptedStatus estado final de la factura cuando el proveedor la acepta.
func (i *Invoice) AcceptedStatus() string {
	if i.IsCorrection() {
		return InvoiceStatusRefund
	}
	return InvoiceStatusValidated
}

// CurrencyOrDefault devuelve la moneda del documento o def si no está definida.
func (i *Invoice) CurrencyOrDefault(def string) string {
	if i.Currency == "" {
		return def
	}
	return i.Currency
}
