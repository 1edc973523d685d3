package credentials

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer cifra/descifra secretos de credenciales con XChaCha20-Poly1305.
// Formato: nonce (24 bytes) || texto cifrado.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer construye el sealer con una clave de 32 bytes.
func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("credentials: clave inválida: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// NewSealerFromBase64 como NewSealer con la clave en base64 estándar (CREDENTIALS_ENCRYPTION_KEY).
func NewSealerFromBase64(encoded string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("credentials: clave no es base64: %w", err)
	}
	return NewSealer(key)
}

// Seal cifra plaintext ligándolo a aad (empresa + proveedor).
func (s *Sealer) Seal(plaintext []byte, aad string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("credentials: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(aad)), nil
}

// Open descifra un valor producido por Seal con el mismo aad.
func (s *Sealer) Open(sealed []byte, aad string) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.New("credentials: secreto truncado")
	}
	nonce, ct := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	pt, err := s.aead.Open(nil, nonce, ct, []byte(aad))
	if err != nil {
		return nil, fmt.Errorf("credentials: no se pudo descifrar: %w", err)
	}
	return pt, nil
}
