package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

const defaultScheduledLimit = 100

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// GetByID obtiene la factura con empresa, cliente, documento padre y líneas.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `
		SELECT i.id, i.company_id, i.customer_id, i.number, i.document_type, i.issue_date, i.due_date,
		       i.currency, i.status, i.notes, i.receiver_name,
		       i.correction_reason, i.payment_method, i.bank_account,
		       i.net_total, i.tax_total, i.grand_total,
		       i.cash_accounting, i.self_billing, i.reverse_charge, i.split_payment, i.scheduled_for_submission,
		       i.provider_status, i.provider_upload_id, i.provider_download_id, i.provider_error, i.xml_path, i.synced_at,
		       i.created_at, i.updated_at,
		       c.id, c.name, c.tax_id, c.address, c.city, c.county, c.postal_code, c.country,
		       c.email, c.phone, c.einvoice_provider,
		       cu.id, cu.name, cu.tax_id, cu.is_company, cu.address, cu.city, cu.county, cu.postal_code, cu.country, cu.email,
		       p.id, p.number, p.issue_date
		FROM invoices i
		JOIN companies c ON c.id = i.company_id
		LEFT JOIN customers cu ON cu.id = i.customer_id
		LEFT JOIN invoices p ON p.id = i.parent_id
		WHERE i.id = $1`

	var inv entity.Invoice
	var co entity.Company
	var customerID, notes, receiver, reason, payMethod, bank *string
	var provStatus, uploadID, downloadID, provErr, xmlPath *string
	var coCounty, coPostal, coEmail, coPhone, coProvider *string
	var cuID, cuName, cuTaxID, cuAddress, cuCity, cuCounty, cuPostal, cuCountry, cuEmail *string
	var cuIsCompany *bool
	var parentID, parentNumber *string
	var parentDate *time.Time

	err := r.q.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.CompanyID, &customerID, &inv.Number, &inv.DocumentType, &inv.IssueDate, &inv.DueDate,
		&inv.Currency, &inv.Status, &notes, &receiver,
		&reason, &payMethod, &bank,
		&inv.NetTotal, &inv.TaxTotal, &inv.GrandTotal,
		&inv.CashAccounting, &inv.SelfBilling, &inv.ReverseCharge, &inv.SplitPayment, &inv.ScheduledForSubmission,
		&provStatus, &uploadID, &downloadID, &provErr, &xmlPath, &inv.SyncedAt,
		&inv.CreatedAt, &inv.UpdatedAt,
		&co.ID, &co.Name, &co.TaxID, &co.Address, &co.City, &coCounty, &coPostal, &co.Country,
		&coEmail, &coPhone, &coProvider,
		&cuID, &cuName, &cuTaxID, &cuIsCompany, &cuAddress, &cuCity, &cuCounty, &cuPostal, &cuCountry, &cuEmail,
		&parentID, &parentNumber, &parentDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	inv.CustomerID = derefStr(customerID)
	inv.Notes = derefStr(notes)
	inv.ReceiverName = derefStr(receiver)
	inv.CorrectionReason = derefStr(reason)
	inv.PaymentMethod = derefStr(payMethod)
	inv.BankAccount = derefStr(bank)
	inv.ProviderStatus = derefStr(provStatus)
	inv.ProviderUploadID = derefStr(uploadID)
	inv.ProviderDownloadID = derefStr(downloadID)
	inv.ProviderError = derefStr(provErr)
	inv.XMLPath = derefStr(xmlPath)

	co.County = derefStr(coCounty)
	co.PostalCode = derefStr(coPostal)
	co.Email = derefStr(coEmail)
	co.Phone = derefStr(coPhone)
	co.EInvoiceProvider = derefStr(coProvider)
	inv.Company = &co

	if cuID != nil {
		inv.Customer = &entity.Customer{
			ID: *cuID, CompanyID: inv.CompanyID, Name: derefStr(cuName), TaxID: derefStr(cuTaxID),
			IsCompany: cuIsCompany != nil && *cuIsCompany, Address: derefStr(cuAddress), City: derefStr(cuCity),
			County: derefStr(cuCounty), PostalCode: derefStr(cuPostal), Country: derefStr(cuCountry),
			Email: derefStr(cuEmail),
		}
	}
	if parentID != nil {
		inv.Parent = &entity.ParentDocument{ID: *parentID, Number: derefStr(parentNumber)}
		if parentDate != nil {
			inv.Parent.IssueDate = *parentDate
		}
	}

	lines, err := r.getLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

func (r *InvoiceRepo) getLines(ctx context.Context, invoiceID string) ([]entity.InvoiceLine, error) {
	query := `
		SELECT id, invoice_id, position, description, quantity, unit_price, unit_of_measure, vat_rate, vat_category
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice lines: %w", err)
	}
	defer rows.Close()

	var out []entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		var uom, category *string
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Position, &l.Description, &l.Quantity, &l.UnitPrice, &uom, &l.VATRate, &category); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		l.UnitOfMeasure = derefStr(uom)
		l.VATCategory = derefStr(category)
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateProviderState persiste estado + espejo provider_* si el estado sigue siendo expectedStatus.
// Un intento registrado desmarca la factura del lote.
func (r *InvoiceRepo) UpdateProviderState(ctx context.Context, inv *entity.Invoice, expectedStatus string) error {
	query := `
		UPDATE invoices
		SET status                   = $3,
		    provider_status          = $4,
		    provider_upload_id       = $5,
		    provider_download_id     = $6,
		    provider_error           = $7,
		    xml_path                 = COALESCE($8, xml_path),
		    synced_at                = $9,
		    scheduled_for_submission = FALSE,
		    updated_at               = $10
		WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(ctx, query,
		inv.ID, expectedStatus, inv.Status,
		nullIfEmpty(inv.ProviderStatus),
		nullIfEmpty(inv.ProviderUploadID),
		nullIfEmpty(inv.ProviderDownloadID),
		nullIfEmpty(inv.ProviderError),
		nullIfEmpty(inv.XMLPath),
		inv.SyncedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice provider state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("factura %s ya no está en %s: %w", inv.ID, expectedStatus, domain.ErrConcurrentUpdate)
	}
	inv.ScheduledForSubmission = false
	return nil
}

// UpdateXMLPath domain.ErrNotFound si la factura no existe.
func (r *InvoiceRepo) UpdateXMLPath(ctx context.Context, id, path string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE invoices SET xml_path = $2, updated_at = NOW() WHERE id = $1`,
		id, path)
	if err != nil {
		return fmt.Errorf("update invoice xml path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindScheduledForSubmission cabeceras de las facturas marcadas para el proveedor, más antiguas primero.
func (r *InvoiceRepo) FindScheduledForSubmission(ctx context.Context, provider string, limit int) ([]*entity.Invoice, error) {
	if limit <= 0 {
		limit = defaultScheduledLimit
	}
	query := `
		SELECT i.id, i.company_id, i.number, i.status, i.issue_date
		FROM invoices i
		JOIN companies c ON c.id = i.company_id
		WHERE i.scheduled_for_submission
		  AND UPPER(c.einvoice_provider) = UPPER($1)
		  AND i.status IN ($2, $3, $4)
		ORDER BY i.issue_date, i.created_at
		LIMIT $5`
	rows, err := r.q.Query(ctx, query, provider,
		entity.InvoiceStatusIssued, entity.InvoiceStatusSentToProvider, entity.InvoiceStatusRefund, limit)
	if err != nil {
		return nil, fmt.Errorf("find scheduled invoices: %w", err)
	}
	defer rows.Close()

	var out []*entity.Invoice
	for rows.Next() {
		var inv entity.Invoice
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.Status, &inv.IssueDate); err != nil {
			return nil, fmt.Errorf("scan scheduled invoice: %w", err)
		}
		inv.ScheduledForSubmission = true
		out = append(out, &inv)
	}
	return out, rows.Err()
}
