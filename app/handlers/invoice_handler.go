package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/clinio/crm-api/app/dto"
	businessflow "github.com/clinio/crm-api/business_flow"
	"github.com/clinio/crm-api/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// InvoiceHandlerInterface defines the contract for invoice handlers
type InvoiceHandlerInterface interface {
	Create(c fiber.Ctx) error
	DownloadReceipt(c fiber.Ctx) error
	SendWhatsApp(c fiber.Ctx) error
	SendEmail(c fiber.Ctx) error
}

// InvoiceHandler handles invoice-related HTTP requests
type InvoiceHandler struct {
	flow      businessflow.InvoiceFlow
	validator *validator.Validate
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(flow businessflow.InvoiceFlow) *InvoiceHandler {
	return &InvoiceHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *InvoiceHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *InvoiceHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func getFirstFile(files []*multipart.FileHeader) *multipart.FileHeader {
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// Create stores a new invoice with its receipt file. Multipart only: the receipt
// upload is mandatory and gets normalized to PDF before anything is persisted.
func (h *InvoiceHandler) Create(c fiber.Ctx) error {
	customerUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(customerUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer UUID", "INVALID_UUID", nil)
	}

	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Multipart form is required", "INVALID_REQUEST", nil)
	}

	var req dto.CreateInvoiceRequest
	if v := c.FormValue("amount"); v != "" {
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid amount", "INVALID_AMOUNT", nil)
		}
		req.Amount = amount
	}

	fileHeader := getFirstFile(form.File["receipt"])
	if fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Receipt file is required", "RECEIPT_REQUIRED", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read receipt file", "RECEIPT_READ_FAILED", err.Error())
	}
	content, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read receipt file", "RECEIPT_READ_FAILED", err.Error())
	}
	req.ReceiptFilename = fileHeader.Filename
	req.ReceiptContent = content

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", collectValidationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.CreateInvoice(h.createRequestContext(c, "/api/v1/customers/:uuid/invoices"), customerUUID, &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsUnsupportedReceiptType(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Unsupported receipt file type", "UNSUPPORTED_RECEIPT", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "RECEIPT_REQUIRED", "RECEIPT_TOO_LARGE":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
			}
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create invoice", "INVOICE_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Invoice created successfully", result)
}

// DownloadReceipt serves the stored receipt PDF
func (h *InvoiceHandler) DownloadReceipt(c fiber.Ctx) error {
	invoiceUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(invoiceUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice UUID", "INVALID_UUID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	path, filename, err := h.flow.GetReceipt(h.createRequestContext(c, "/api/v1/invoices/:uuid/receipt"), invoiceUUID, metadata)
	if err != nil {
		if businessflow.IsInvoiceNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", "INVOICE_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch receipt", "RECEIPT_FETCH_FAILED", nil)
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.SendFile(path)
}

// SendWhatsApp forwards the invoice to the customer over WhatsApp
func (h *InvoiceHandler) SendWhatsApp(c fiber.Ctx) error {
	return h.send(c, "whatsapp")
}

// SendEmail emails the receipt PDF to the customer
func (h *InvoiceHandler) SendEmail(c fiber.Ctx) error {
	return h.send(c, "email")
}

func (h *InvoiceHandler) send(c fiber.Ctx, via string) error {
	invoiceUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(invoiceUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice UUID", "INVALID_UUID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	ctx := h.createRequestContext(c, "/api/v1/invoices/:uuid/send-"+via)

	var result *dto.SendInvoiceResponse
	var err error
	if via == "whatsapp" {
		result, err = h.flow.SendInvoiceWhatsApp(ctx, invoiceUUID, metadata)
	} else {
		result, err = h.flow.SendInvoiceEmail(ctx, invoiceUUID, metadata)
	}
	if err != nil {
		if businessflow.IsInvoiceNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Invoice not found", "INVOICE_NOT_FOUND", nil)
		}
		if businessflow.IsDeliveryFailed(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to deliver invoice", "DELIVERY_FAILED", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send invoice", "INVOICE_SEND_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *InvoiceHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
