package entity

import "time"

// Tipos de credencial.
const (
	CredentialKindOAuth  = "oauth"   // ANAF: token OAuth2 del certificado del contribuyente
	CredentialKindAPIKey = "api_key" // KSeF: token de autorización + NIP
)

// Credential credencial utilizable (ya descifrada) para hablar con un proveedor.
type Credential struct {
	Kind        string
	AccessToken string
	APIKey      string
	TaxID       string
	ExpiresAt   *time.Time
}

// StoredCredential credencial persistida; los secretos van cifrados (AEAD).
type StoredCredential struct {
	ID                 string
	CompanyID          string
	Provider           string
	Kind               string
	TaxID              string
	SealedAccessToken  []byte
	SealedRefreshToken []byte
	SealedAPIKey       []byte
	ExpiresAt          *time.Time
	UpdatedAt          time.Time
}
