package entity

import "time"

// Estados de un envío a un proveedor de e-factura.
const (
	SubmissionStatusPending   = "PENDING"   // Creado, aún sin subir
	SubmissionStatusSubmitted = "SUBMITTED" // Subido; esperando el veredicto del proveedor
	SubmissionStatusAccepted  = "ACCEPTED"
	SubmissionStatusRejected  = "REJECTED"
	SubmissionStatusError     = "ERROR"
)

// Claves usadas en Submission.Metadata.
const (
	MetaDownloadID    = "download_id"
	MetaLastCheckedAt = "last_checked_at"
	MetaAttempt       = "attempt"
	MetaUploadedAt    = "uploaded_at"
	MetaKSeFNumber    = "ksef_number"
	MetaProcessing    = "processing_code"
	MetaProviderRaw   = "provider_response"
)

// Submission registro durable de un intento de llevar una factura a un proveedor.
// Nunca se borra: queda como historial de auditoría.
type Submission struct {
	ID           string
	InvoiceID    string
	Provider     string // ver constantes Provider*
	Status       string
	ExternalID   string // id de carga (ANAF) o número de referencia (KSeF)
	XMLPath      string
	ErrorMessage string
	Metadata     map[string]any
	Version      int // token de concurrencia optimista
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal indica que el envío ya no admite transiciones.
func (s *Submission) IsTerminal() bool {
	switch s.Status {
	case SubmissionStatusAccepted, SubmissionStatusRejected, SubmissionStatusError:
		return true
	}
	return false
}

// IsActive indica que el envío bloquea la creación de otro para la misma factura.
func (s *Submission) IsActive() bool {
	switch s.Status {
	case SubmissionStatusPending, SubmissionStatusSubmitted, SubmissionStatusAccepted:
		return true
	}
	return false
}

// SetMeta asigna una clave de metadatos inicializando el mapa si hace falta.
func (s *Submission) SetMeta(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}

// WorkUnit unidad de trabajo diferida "consultar estado".
type WorkUnit struct {
	SubmissionID string `json:"submission_id"`
	Attempt      int    `json:"attempt"`
}
