package businessflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clinio/crm-api/app/dto"
	"github.com/clinio/crm-api/app/services"
	"github.com/clinio/crm-api/config"
	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/repository"
	"github.com/google/uuid"
)

// InvoiceFlow defines operations for invoices and their receipt files
type InvoiceFlow interface {
	CreateInvoice(ctx context.Context, customerUUID string, req *dto.CreateInvoiceRequest, metadata *ClientMetadata) (*dto.CreateInvoiceResponse, error)
	GetReceipt(ctx context.Context, invoiceUUID string, metadata *ClientMetadata) (path string, filename string, err error)
	SendInvoiceWhatsApp(ctx context.Context, invoiceUUID string, metadata *ClientMetadata) (*dto.SendInvoiceResponse, error)
	SendInvoiceEmail(ctx context.Context, invoiceUUID string, metadata *ClientMetadata) (*dto.SendInvoiceResponse, error)
}

// InvoiceFlowImpl implements InvoiceFlow
type InvoiceFlowImpl struct {
	customerRepo repository.CustomerRepository
	invoiceRepo  repository.InvoiceRepository
	normalizer   services.ReceiptNormalizer
	notifier     services.NotificationService
	uploadCfg    config.UploadConfig
}

func NewInvoiceFlow(
	customerRepo repository.CustomerRepository,
	invoiceRepo repository.InvoiceRepository,
	normalizer services.ReceiptNormalizer,
	notifier services.NotificationService,
	uploadCfg config.UploadConfig,
) InvoiceFlow {
	return &InvoiceFlowImpl{
		customerRepo: customerRepo,
		invoiceRepo:  invoiceRepo,
		normalizer:   normalizer,
		notifier:     notifier,
		uploadCfg:    uploadCfg,
	}
}

// CreateInvoice stores an invoice for a customer. The uploaded receipt is normalized
// to PDF before anything is persisted: a rejected file leaves no invoice row and no
// file on disk.
func (f *InvoiceFlowImpl) CreateInvoice(ctx context.Context, customerUUID string, req *dto.CreateInvoiceRequest, metadata *ClientMetadata) (*dto.CreateInvoiceResponse, error) {
	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "customer not found", ErrCustomerNotFound)
	}

	if len(req.ReceiptContent) == 0 {
		return nil, NewBusinessError("RECEIPT_REQUIRED", "receipt file is required", ErrReceiptFileRequired)
	}
	if f.uploadCfg.MaxReceiptSize > 0 && int64(len(req.ReceiptContent)) > f.uploadCfg.MaxReceiptSize {
		return nil, NewBusinessError("RECEIPT_TOO_LARGE", "receipt file exceeds the maximum allowed size", ErrReceiptTooLarge)
	}

	pdfBytes, err := f.normalizer.Normalize(req.ReceiptFilename, req.ReceiptContent)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedReceipt) || errors.Is(err, services.ErrEmptyReceipt) {
			return nil, NewBusinessError("UNSUPPORTED_RECEIPT", "receipt must be a jpeg, png, webp, or pdf file", ErrUnsupportedReceiptType)
		}
		return nil, NewBusinessError("RECEIPT_NORMALIZE_FAILED", "failed to process receipt file", err)
	}

	receiptDir := filepath.Join(f.uploadCfg.Dir, "receipts")
	if err := os.MkdirAll(receiptDir, 0o755); err != nil {
		return nil, NewBusinessError("RECEIPT_STORE_FAILED", "failed to prepare receipt storage", err)
	}

	invoiceUUID := uuid.New()
	receiptPath := filepath.Join(receiptDir, invoiceUUID.String()+".pdf")
	if err := os.WriteFile(receiptPath, pdfBytes, 0o644); err != nil {
		return nil, NewBusinessError("RECEIPT_STORE_FAILED", "failed to store receipt file", err)
	}

	invoice := &models.Invoice{
		UUID:             invoiceUUID,
		CustomerID:       customer.ID,
		Amount:           req.Amount,
		ReceiptPath:      receiptPath,
		ReceiptSize:      int64(len(pdfBytes)),
		OriginalFilename: req.ReceiptFilename,
	}

	if err := f.invoiceRepo.Save(ctx, invoice); err != nil {
		os.Remove(receiptPath)
		return nil, NewBusinessError("INVOICE_SAVE_FAILED", "failed to save invoice", err)
	}

	return &dto.CreateInvoiceResponse{
		Message: "Invoice created successfully",
		Invoice: ToInvoiceItem(invoice),
	}, nil
}

// GetReceipt resolves the on-disk PDF for download
func (f *InvoiceFlowImpl) GetReceipt(ctx context.Context, invoiceUUID string, metadata *ClientMetadata) (string, string, error) {
	invoice, err := f.invoiceRepo.ByUUID(ctx, invoiceUUID)
	if err != nil {
		return "", "", NewBusinessError("INVOICE_LOOKUP_FAILED", "failed to look up invoice", err)
	}
	if invoice == nil {
		return "", "", NewBusinessError("INVOICE_NOT_FOUND", "invoice not found", ErrInvoiceNotFound)
	}

	if _, err := os.Stat(invoice.ReceiptPath); err != nil {
		return "", "", NewBusinessError("RECEIPT_MISSING", "receipt file is missing from storage", err)
	}

	return invoice.ReceiptPath, "invoice-" + invoice.UUID.String() + ".pdf", nil
}

// SendInvoiceWhatsApp notifies the customer about their invoice over WhatsApp
func (f *InvoiceFlowImpl) SendInvoiceWhatsApp(ctx context.Context, invoiceUUID string, metadata *ClientMetadata) (*dto.SendInvoiceResponse, error) {
	invoice, err := f.loadInvoiceWithCustomer(ctx, invoiceUUID)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Hello %s, your invoice of %.2f is ready. Thank you for your visit.",
		invoice.Customer.Name, invoice.Amount)
	if err := f.notifier.SendWhatsApp(ctx, invoice.Customer.PhoneNumber, text); err != nil {
		return nil, NewBusinessError("DELIVERY_FAILED", "failed to send invoice via WhatsApp", fmt.Errorf("%w: %v", ErrDeliveryFailed, err))
	}

	return &dto.SendInvoiceResponse{
		Message: "Invoice sent via WhatsApp",
		UUID:    invoice.UUID.String(),
		SentVia: "whatsapp",
	}, nil
}

// SendInvoiceEmail emails the receipt PDF to the customer
func (f *InvoiceFlowImpl) SendInvoiceEmail(ctx context.Context, invoiceUUID string, metadata *ClientMetadata) (*dto.SendInvoiceResponse, error) {
	invoice, err := f.loadInvoiceWithCustomer(ctx, invoiceUUID)
	if err != nil {
		return nil, err
	}

	pdfBytes, err := os.ReadFile(invoice.ReceiptPath)
	if err != nil {
		return nil, NewBusinessError("RECEIPT_MISSING", "receipt file is missing from storage", err)
	}

	subject := fmt.Sprintf("Your invoice %s", invoice.UUID.String())
	body := fmt.Sprintf("Hello %s,\n\nPlease find attached your invoice of %.2f.\n", invoice.Customer.Name, invoice.Amount)
	attachmentName := "invoice-" + invoice.UUID.String() + ".pdf"
	if err := f.notifier.SendEmail(ctx, invoice.Customer.Email, subject, body, pdfBytes, attachmentName); err != nil {
		return nil, NewBusinessError("DELIVERY_FAILED", "failed to send invoice via email", fmt.Errorf("%w: %v", ErrDeliveryFailed, err))
	}

	return &dto.SendInvoiceResponse{
		Message: "Invoice sent via email",
		UUID:    invoice.UUID.String(),
		SentVia: "email",
	}, nil
}

func (f *InvoiceFlowImpl) loadInvoiceWithCustomer(ctx context.Context, invoiceUUID string) (*models.Invoice, error) {
	invoice, err := f.invoiceRepo.ByUUID(ctx, invoiceUUID)
	if err != nil {
		return nil, NewBusinessError("INVOICE_LOOKUP_FAILED", "failed to look up invoice", err)
	}
	if invoice == nil {
		return nil, NewBusinessError("INVOICE_NOT_FOUND", "invoice not found", ErrInvoiceNotFound)
	}
	if invoice.Customer == nil {
		customer, err := f.customerRepo.ByID(ctx, invoice.CustomerID)
		if err != nil || customer == nil {
			return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to resolve invoice customer", err)
		}
		invoice.Customer = customer
	}
	return invoice, nil
}
