package anaf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	pkganaf "github.com/jhoicas/einvoice-gateway/pkg/anaf"
	"golang.org/x/time/rate"
)

// ── Constantes de entorno ────────────────────────────────────────────────────

const (
	// EnvTest entorno de pruebas de e-Factura.
	EnvTest = "test"
	// EnvProd entorno de producción.
	EnvProd = "prod"

	DefaultBaseURL = "https://api.anaf.ro"

	// Valores de "stare" en stareMesaj.
	stateOK         = "ok"
	stateNOK        = "nok"
	stateProcessing = "in prelucrare"
	stateXMLErrors  = "XML cu erori nepreluat de sistem"

	maxResponseBytes = 1 << 20
)

// ClientConfig configuración del cliente REST de e-Factura.
type ClientConfig struct {
	BaseURL           string
	Environment       string // test | prod
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 = sin límite
}

// Client implementa upload y stareMesaj de la API e-Factura.
// Usa net/http con timeout y un limitador de tasa propio por proceso.
type Client struct {
	httpClient *http.Client
	baseURL    string
	env        string
	limiter    *rate.Limiter
}

// NewClient construye el cliente. El timeout por defecto es 60 s: ANAF puede tardar
// varios segundos en aceptar una carga.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Environment != EnvProd {
		cfg.Environment = EnvTest
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		env:        cfg.Environment,
		limiter:    limiter,
	}
}

// Upload sube el XML UBL en nombre del CIF indicado.
// Un error de negocio reportado por ANAF (ExecutionStatus=1) vuelve como Success=false, sin error.
func (c *Client) Upload(ctx context.Context, xmlBytes []byte, taxID, token string) (*einvoice.SubmitResponse, error) {
	q := url.Values{}
	q.Set("standard", "UBL")
	q.Set("cif", pkganaf.NormalizeCIF(taxID))
	endpoint := fmt.Sprintf("%s/%s/FCTEL/rest/upload?%s", c.baseURL, c.env, q.Encode())

	body, err := c.do(ctx, "upload", http.MethodPost, endpoint, token, xmlBytes)
	if err != nil {
		return nil, err
	}
	header, err := parseHeader(body)
	if err != nil {
		return nil, fmt.Errorf("anaf upload: %w", err)
	}

	meta := map[string]any{entity.MetaProviderRaw: string(body)}
	if date := header.SelectAttrValue("dateResponse", ""); date != "" {
		meta["date_response"] = date
	}
	if header.SelectAttrValue("ExecutionStatus", "") != "0" {
		return &einvoice.SubmitResponse{Success: false, ErrorMessage: collectErrors(header, "carga rechazada por ANAF"), Metadata: meta}, nil
	}
	uploadID := header.SelectAttrValue("index_incarcare", "")
	if uploadID == "" {
		return &einvoice.SubmitResponse{Success: false, ErrorMessage: "respuesta sin index_incarcare", Metadata: meta}, nil
	}
	return &einvoice.SubmitResponse{Success: true, ExternalID: uploadID, Metadata: meta}, nil
}

// CheckStatus consulta stareMesaj para un id de carga.
func (c *Client) CheckStatus(ctx context.Context, uploadID, token string) (*einvoice.StatusResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/FCTEL/rest/stareMesaj?id_incarcare=%s", c.baseURL, c.env, url.QueryEscape(uploadID))

	body, err := c.do(ctx, "stareMesaj", http.MethodGet, endpoint, token, nil)
	if err != nil {
		return nil, err
	}
	header, err := parseHeader(body)
	if err != nil {
		return nil, fmt.Errorf("anaf stareMesaj: %w", err)
	}

	meta := map[string]any{}
	if id := header.SelectAttrValue("id_descarcare", ""); id != "" {
		meta[entity.MetaDownloadID] = id
	}
	switch state := header.SelectAttrValue("stare", ""); state {
	case stateOK:
		return &einvoice.StatusResponse{Status: einvoice.StatusAccepted, Metadata: meta}, nil
	case stateNOK:
		return &einvoice.StatusResponse{Status: einvoice.StatusRejected, ErrorMessage: collectErrors(header, "factura rechazada por ANAF"), Metadata: meta}, nil
	case stateProcessing:
		return &einvoice.StatusResponse{Status: einvoice.StatusPending, Metadata: meta}, nil
	case stateXMLErrors:
		return &einvoice.StatusResponse{Status: einvoice.StatusError, ErrorMessage: state, Metadata: meta}, nil
	default:
		// Sin "stare": ANAF devuelve <Errors> (id inexistente, sin derecho sobre el CIF...).
		return &einvoice.StatusResponse{Status: einvoice.StatusError, ErrorMessage: collectErrors(header, "estado desconocido: "+state), Metadata: meta}, nil
	}
}

func (c *Client) do(ctx context.Context, op, method, endpoint, token string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("anaf %s: %w", op, err)
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("anaf %s: crear request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &einvoice.ProviderError{Provider: entity.ProviderANAF, Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("anaf %s: %w", op, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &einvoice.ProviderError{
			Provider: entity.ProviderANAF, Op: op, StatusCode: resp.StatusCode,
			Message: strings.TrimSpace(string(respBody)),
		}
	}
	return respBody, nil
}

func parseHeader(body []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("respuesta XML inválida: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("respuesta XML vacía")
	}
	return root, nil
}

func collectErrors(header *etree.Element, fallback string) string {
	var msgs []string
	for _, e := range header.SelectElements("Errors") {
		if m := strings.TrimSpace(e.SelectAttrValue("errorMessage", "")); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return fallback
	}
	return strings.Join(msgs, "; ")
}
