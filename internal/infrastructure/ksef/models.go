package ksef

import "time"

// ═══════════════════════════════════════════════════════════════════════════
// Modelo JSON de la API online de KSeF
// ═══════════════════════════════════════════════════════════════════════════

type contextIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type authorisationChallengeRequest struct {
	ContextIdentifier contextIdentifier `json:"contextIdentifier"`
}

type authorisationChallengeResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Challenge string    `json:"challenge"`
}

type sessionToken struct {
	Token string `json:"token"`
}

type initSessionResponse struct {
	Timestamp       time.Time    `json:"timestamp"`
	ReferenceNumber string       `json:"referenceNumber"`
	SessionToken    sessionToken `json:"sessionToken"`
}

// HashSHA huella del documento enviado.
type HashSHA struct {
	Algorithm string `json:"algorithm"`
	Encoding  string `json:"encoding"`
	Value     string `json:"value"`
}

// InvoiceHash huella y tamaño en bytes.
type InvoiceHash struct {
	HashSHA  HashSHA `json:"hashSHA"`
	FileSize int     `json:"fileSize"`
}

// InvoicePayload cuerpo en base64; Type "plain" (sin cifrado de sesión).
type InvoicePayload struct {
	Type        string `json:"type"`
	InvoiceBody string `json:"invoiceBody"`
}

// SendInvoiceRequest cuerpo de PUT online/Invoice/Send.
type SendInvoiceRequest struct {
	InvoiceHash    InvoiceHash    `json:"invoiceHash"`
	InvoicePayload InvoicePayload `json:"invoicePayload"`
}

// SendInvoiceResponse respuesta 202 de online/Invoice/Send.
type SendInvoiceResponse struct {
	Timestamp              time.Time `json:"timestamp"`
	ReferenceNumber        string    `json:"referenceNumber"`
	ProcessingCode         int       `json:"processingCode"`
	ProcessingDescription  string    `json:"processingDescription"`
	ElementReferenceNumber string    `json:"elementReferenceNumber"`
}

// InvoiceStatus detalle disponible cuando KSeF ya asignó número.
type InvoiceStatus struct {
	InvoiceNumber        string `json:"invoiceNumber"`
	KsefReferenceNumber  string `json:"ksefReferenceNumber"`
	AcquisitionTimestamp string `json:"acquisitionTimestamp"`
}

// InvoiceStatusResponse respuesta de online/Invoice/Status/{ref}.
type InvoiceStatusResponse struct {
	Timestamp              time.Time      `json:"timestamp"`
	ReferenceNumber        string         `json:"referenceNumber"`
	ProcessingCode         int            `json:"processingCode"`
	ProcessingDescription  string         `json:"processingDescription"`
	ElementReferenceNumber string         `json:"elementReferenceNumber"`
	InvoiceStatus          *InvoiceStatus `json:"invoiceStatus,omitempty"`
}

// ExceptionResponse cuerpo de error de KSeF.
type ExceptionResponse struct {
	Exception struct {
		ServiceCtx          string    `json:"serviceCtx"`
		ServiceCode         string    `json:"serviceCode"`
		ServiceName         string    `json:"serviceName"`
		Timestamp           time.Time `json:"timestamp"`
		ReferenceNumber     string    `json:"referenceNumber"`
		ExceptionDetailList []struct {
			ExceptionCode        int    `json:"exceptionCode"`
			ExceptionDescription string `json:"exceptionDescription"`
		} `json:"exceptionDetailList"`
	} `json:"exception"`
}
