package einvoice

import "fmt"

// Estados de StatusResponse.
const (
	StatusPending  = "PENDING"
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
	StatusError    = "ERROR"
)

// SubmitResponse resultado de subir un documento al proveedor.
type SubmitResponse struct {
	Success      bool
	ExternalID   string
	ErrorMessage string
	Metadata     map[string]any
}

// StatusResponse resultado de consultar el estado de un documento subido.
type StatusResponse struct {
	Status       string
	ErrorMessage string
	Metadata     map[string]any
}

// ProviderError respuesta HTTP no exitosa de un proveedor.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Provider, e.Op, e.StatusCode, e.Message)
}

// Transient indica fallo de red o 5xx (no es un rechazo de negocio).
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}
