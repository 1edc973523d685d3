package entity

import "time"

// EventTypeEInvoiceStatus tipo de evento para transiciones causadas por la e-factura.
const EventTypeEInvoiceStatus = "EINVOICE_STATUS_CHANGE"

// DocumentEvent registro de auditoría de una transición de estado de la factura.
type DocumentEvent struct {
	ID             string
	InvoiceID      string
	SubmissionID   string
	Type           string
	PreviousStatus string
	NewStatus      string
	Metadata       map[string]any
	CreatedAt      time.Time
}
