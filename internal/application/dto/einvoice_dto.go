package dto

import "time"

// SubmissionResponse envío a un proveedor de e-factura.
type SubmissionResponse struct {
	ID           string         `json:"id"`
	InvoiceID    string         `json:"invoice_id"`
	Provider     string         `json:"provider"`
	Status       string         `json:"status"`
	ExternalID   string         `json:"external_id,omitempty"`
	XMLPath      string         `json:"xml_path,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DocumentEventResponse transición registrada en el historial de la factura.
type DocumentEventResponse struct {
	ID             string         `json:"id"`
	SubmissionID   string         `json:"submission_id,omitempty"`
	Type           string         `json:"type"`
	PreviousStatus string         `json:"previous_status,omitempty"`
	NewStatus      string         `json:"new_status"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// InvoiceEInvoiceResponse estado de e-factura de una factura con su historial.
// GET /api/invoices/:id/einvoice/submissions
type InvoiceEInvoiceResponse struct {
	InvoiceID          string                  `json:"invoice_id"`
	Number             string                  `json:"number"`
	Status             string                  `json:"status"`
	ProviderStatus     string                  `json:"provider_status,omitempty"`
	ProviderUploadID   string                  `json:"provider_upload_id,omitempty"`
	ProviderDownloadID string                  `json:"provider_download_id,omitempty"`
	ProviderError      string                  `json:"provider_error,omitempty"`
	SyncedAt           *time.Time              `json:"synced_at,omitempty"`
	Submissions        []SubmissionResponse    `json:"submissions"`
	Events             []DocumentEventResponse `json:"events"`
}
