package entity

import "time"

// Customer representa un cliente de la empresa (receptor de la factura).
type Customer struct {
	ID         string
	CompanyID  string
	Name       string
	TaxID      string
	IsCompany  bool // persona jurídica: el identificador fiscal es obligatorio
	Address    string
	City       string
	County     string
	PostalCode string
	Country    string
	Email      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
