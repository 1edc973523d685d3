package ksef

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	pkgksef "github.com/jhoicas/einvoice-gateway/pkg/ksef"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://ksef-test.mf.gov.pl/api"

	nsOnlineTypes = "http://ksef.mf.gov.pl/schema/gtw/svc/online/types/2021/10/01/0001"
	nsTypes       = "http://ksef.mf.gov.pl/schema/gtw/svc/types/2021/10/01/0001"
	nsAuthRequest = "http://ksef.mf.gov.pl/schema/gtw/svc/online/auth/request/2021/10/01/0001"
	nsXSI         = "http://www.w3.org/2001/XMLSchema-instance"

	headerSessionToken = "SessionToken"
	maxResponseBytes   = 1 << 20
)

// ClientConfig configuración del cliente de la API online de KSeF.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	// PublicKey clave RSA del Ministerio de Finanzas para cifrar el token de autorización.
	PublicKey *rsa.PublicKey
}

// Client sesión interactiva de KSeF: challenge, InitToken, Send, Status y Terminate.
type Client struct {
	httpClient *http.Client
	baseURL    string
	publicKey  *rsa.PublicKey
	limiter    *rate.Limiter
}

// NewClient construye el cliente.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		publicKey:  cfg.PublicKey,
		limiter:    limiter,
	}
}

// LoadPublicKey lee la clave pública PEM (PKIX) publicada por el MF.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ksef: leer clave pública: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("ksef: clave pública sin bloque PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("ksef: parsear clave pública: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("ksef: la clave pública no es RSA")
	}
	return rsaPub, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Sesión
// ═══════════════════════════════════════════════════════════════════════════

// InitSession abre una sesión interactiva y devuelve el SessionToken.
func (c *Client) InitSession(ctx context.Context, authToken, taxID string) (string, error) {
	if c.publicKey == nil {
		return "", errors.New("ksef: clave pública no configurada")
	}
	nip := pkgksef.NormalizeNIP(taxID)

	var challenge authorisationChallengeResponse
	reqBody := authorisationChallengeRequest{ContextIdentifier: contextIdentifier{Type: "onip", Identifier: nip}}
	if err := c.doJSON(ctx, "AuthorisationChallenge", http.MethodPost, "/online/Session/AuthorisationChallenge", "", reqBody, &challenge); err != nil {
		return "", err
	}

	encrypted, err := c.encryptToken(authToken, challenge.Timestamp)
	if err != nil {
		return "", err
	}
	initXML, err := buildInitTokenRequest(challenge.Challenge, nip, encrypted)
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, "InitToken", http.MethodPost, "/online/Session/InitToken", "", "application/octet-stream", initXML)
	if err != nil {
		return "", err
	}
	var session initSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("ksef InitToken: respuesta inválida: %w", err)
	}
	if session.SessionToken.Token == "" {
		return "", errors.New("ksef InitToken: respuesta sin sessionToken")
	}
	return session.SessionToken.Token, nil
}

// TerminateSession cierra la sesión.
func (c *Client) TerminateSession(ctx context.Context, session string) error {
	_, err := c.do(ctx, "Terminate", http.MethodGet, "/online/Session/Terminate", session, "", nil)
	return err
}

// encryptToken cifra "token|timestampMillis" con RSA PKCS#1 v1.5 y lo codifica en base64.
func (c *Client) encryptToken(authToken string, ts time.Time) (string, error) {
	plain := authToken + "|" + strconv.FormatInt(ts.UnixMilli(), 10)
	cipher, err := rsa.EncryptPKCS1v15(rand.Reader, c.publicKey, []byte(plain))
	if err != nil {
		return "", fmt.Errorf("ksef: cifrar token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(cipher), nil
}

func buildInitTokenRequest(challenge, nip, encryptedToken string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("ns3:InitSessionTokenRequest")
	root.CreateAttr("xmlns", nsOnlineTypes)
	root.CreateAttr("xmlns:ns2", nsTypes)
	root.CreateAttr("xmlns:ns3", nsAuthRequest)

	ctxEl := root.CreateElement("ns3:Context")
	ctxEl.CreateElement("Challenge").SetText(challenge)

	ident := ctxEl.CreateElement("Identifier")
	ident.CreateAttr("xmlns:xsi", nsXSI)
	ident.CreateAttr("xsi:type", "ns2:SubjectIdentifierByCompanyType")
	ident.CreateElement("ns2:Identifier").SetText(nip)

	docType := ctxEl.CreateElement("DocumentType")
	docType.CreateElement("ns2:Service").SetText("KSeF")
	form := docType.CreateElement("ns2:FormCode")
	form.CreateElement("ns2:SystemCode").SetText(pkgksef.FormSystemCode)
	form.CreateElement("ns2:SchemaVersion").SetText(pkgksef.FormSchemaVersion)
	form.CreateElement("ns2:TargetNamespace").SetText(pkgksef.Namespace)
	form.CreateElement("ns2:Value").SetText(pkgksef.FormCode)

	ctxEl.CreateElement("Token").SetText(encryptedToken)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("ksef: serializar InitSessionTokenRequest: %w", err)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Documentos
// ═══════════════════════════════════════════════════════════════════════════

// Submit envía el XML FA(2) en la sesión abierta.
func (c *Client) Submit(ctx context.Context, xmlBytes []byte, session string) (*einvoice.SubmitResponse, error) {
	sum := sha256.Sum256(xmlBytes)
	req := SendInvoiceRequest{
		InvoiceHash: InvoiceHash{
			HashSHA:  HashSHA{Algorithm: "SHA-256", Encoding: "Base64", Value: base64.StdEncoding.EncodeToString(sum[:])},
			FileSize: len(xmlBytes),
		},
		InvoicePayload: InvoicePayload{Type: "plain", InvoiceBody: base64.StdEncoding.EncodeToString(xmlBytes)},
	}

	var resp SendInvoiceResponse
	if err := c.doJSON(ctx, "Send", http.MethodPut, "/online/Invoice/Send", session, req, &resp); err != nil {
		return nil, err
	}
	meta := map[string]any{entity.MetaProcessing: resp.ProcessingCode}
	if resp.ProcessingDescription != "" {
		meta["processing_description"] = resp.ProcessingDescription
	}
	if resp.ElementReferenceNumber == "" {
		return &einvoice.SubmitResponse{Success: false, ErrorMessage: "respuesta sin elementReferenceNumber", Metadata: meta}, nil
	}
	return &einvoice.SubmitResponse{Success: true, ExternalID: resp.ElementReferenceNumber, Metadata: meta}, nil
}

// CheckStatus consulta el estado de procesamiento de un documento.
// processingCode 200 → ACCEPTED, ≥400 → REJECTED, resto → PENDING.
func (c *Client) CheckStatus(ctx context.Context, referenceNumber, session string) (*einvoice.StatusResponse, error) {
	var resp InvoiceStatusResponse
	path := "/online/Invoice/Status/" + url.PathEscape(referenceNumber)
	if err := c.doJSON(ctx, "Status", http.MethodGet, path, session, nil, &resp); err != nil {
		return nil, err
	}
	meta := map[string]any{entity.MetaProcessing: resp.ProcessingCode}
	switch {
	case resp.ProcessingCode >= 200 && resp.ProcessingCode < 300:
		if resp.InvoiceStatus != nil && resp.InvoiceStatus.KsefReferenceNumber != "" {
			meta[entity.MetaKSeFNumber] = resp.InvoiceStatus.KsefReferenceNumber
		}
		return &einvoice.StatusResponse{Status: einvoice.StatusAccepted, Metadata: meta}, nil
	case resp.ProcessingCode >= 400:
		return &einvoice.StatusResponse{Status: einvoice.StatusRejected, ErrorMessage: resp.ProcessingDescription, Metadata: meta}, nil
	default:
		return &einvoice.StatusResponse{Status: einvoice.StatusPending, Metadata: meta}, nil
	}
}

// ── HTTP ─────────────────────────────────────────────────────────────────────

func (c *Client) doJSON(ctx context.Context, op, method, path, session string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ksef %s: serializar: %w", op, err)
		}
		payload = b
	}
	body, err := c.do(ctx, op, method, path, session, "application/json", payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("ksef %s: respuesta inválida: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, session, contentType string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ksef %s: %w", op, err)
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("ksef %s: crear request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if session != "" {
		req.Header.Set(headerSessionToken, session)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &einvoice.ProviderError{Provider: entity.ProviderKSEF, Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("ksef %s: %w", op, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &einvoice.ProviderError{
			Provider: entity.ProviderKSEF, Op: op, StatusCode: resp.StatusCode,
			Message: exceptionMessage(respBody),
		}
	}
	return respBody, nil
}

func exceptionMessage(body []byte) string {
	var exc ExceptionResponse
	if err := json.Unmarshal(body, &exc); err == nil && len(exc.Exception.ExceptionDetailList) > 0 {
		parts := make([]string, 0, len(exc.Exception.ExceptionDetailList))
		for _, d := range exc.Exception.ExceptionDetailList {
			parts = append(parts, fmt.Sprintf("%d: %s", d.ExceptionCode, d.ExceptionDescription))
		}
		return strings.Join(parts, "; ")
	}
	return strings.TrimSpace(string(body))
}
