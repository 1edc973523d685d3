package submission

import (
	"context"
	"time"

	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

// Handler ejecuta un intento de envío (una Submission en PENDING) de principio a fin.
// Los fallos de la factura quedan registrados en Submission/Invoice y no se devuelven;
// solo vuelven domain.ErrRateLimited y errores de infraestructura.
type Handler interface {
	Submit(ctx context.Context, inv *entity.Invoice, sub *entity.Submission) error
}

// Checker procesa una unidad "consultar estado". Idempotente ante reentregas.
type Checker interface {
	Check(ctx context.Context, unit entity.WorkUnit) error
}

// Validator reglas de negocio previas al XML, propias de cada proveedor.
type Validator interface {
	Validate(inv *entity.Invoice) einvoice.ValidationResult
}

// Codec factura → XML del proveedor. Sin E/S.
type Codec interface {
	Generate(inv *entity.Invoice) ([]byte, error)
}

// CredentialResolver devuelve una credencial utilizable para la empresa, o nil si no tiene.
type CredentialResolver interface {
	Resolve(ctx context.Context, company *entity.Company, provider string) (*entity.Credential, error)
}

// BlobStore almacenamiento de los XML generados.
type BlobStore interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
}

// Scheduler entrega diferida de unidades "consultar estado".
type Scheduler interface {
	ScheduleAfter(ctx context.Context, delay time.Duration, unit entity.WorkUnit) error
}

// AnafClient API REST de e-Factura (subida + sondeo).
type AnafClient interface {
	Upload(ctx context.Context, xml []byte, taxID, token string) (*einvoice.SubmitResponse, error)
	CheckStatus(ctx context.Context, uploadID, token string) (*einvoice.StatusResponse, error)
}

// KsefClient API online de KSeF (con sesión).
type KsefClient interface {
	InitSession(ctx context.Context, authToken, taxID string) (string, error)
	Submit(ctx context.Context, xml []byte, session string) (*einvoice.SubmitResponse, error)
	CheckStatus(ctx context.Context, referenceNumber, session string) (*einvoice.StatusResponse, error)
	TerminateSession(ctx context.Context, session string) error
}

// TxRunner ejecuta una función dentro de una transacción con los repos de envío.
type TxRunner interface {
	RunSubmission(ctx context.Context, fn func(
		subRepo repository.SubmissionRepository,
		invoiceRepo repository.InvoiceRepository,
		eventRepo repository.DocumentEventRepository,
	) error) error
}

// JobQueue cola persistida de unidades "consultar estado".
type JobQueue interface {
	// Claim arrienda hasta limit unidades vencidas durante lease.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]entity.WorkUnit, error)
	Complete(ctx context.Context, unit entity.WorkUnit) error
}
