package entity

import "time"

// Proveedores de e-factura soportados.
const (
	ProviderANAF = "ANAF" // e-Factura (Rumanía)
	ProviderKSEF = "KSEF" // KSeF (Polonia)
)

// Company representa una organización/tenant emisora de facturas.
type Company struct {
	ID               string
	Name             string
	TaxID            string // CIF (RO) o NIP (PL)
	Address          string
	City             string
	County           string // judeţ / województwo
	PostalCode       string
	Country          string // ISO 3166-1 alpha-2
	Email            string
	Phone            string
	EInvoiceProvider string // ver constantes Provider*
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
