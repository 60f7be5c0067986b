package dto

// CreateInvoiceRequest carries invoice data parsed from the multipart form
// Receipt file bytes are handled by the handler; only jpeg, png, webp, and pdf
// uploads are accepted and every stored receipt is a PDF
type CreateInvoiceRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	// Internal: populated by handler from the uploaded file (not exposed in API)
	ReceiptFilename string `json:"-"`
	ReceiptContent  []byte `json:"-"`
}

// InvoiceItem represents an invoice row in listings
type InvoiceItem struct {
	ID               uint    `json:"id"`
	UUID             string  `json:"uuid"`
	Amount           float64 `json:"amount"`
	OriginalFilename string  `json:"original_filename"`
	ReceiptSize      int64   `json:"receipt_size"`
	CreatedAt        string  `json:"created_at"`
}

// CreateInvoiceResponse returns the created invoice
type CreateInvoiceResponse struct {
	Message string      `json:"message"`
	Invoice InvoiceItem `json:"invoice"`
}

// SendInvoiceResponse confirms an invoice receipt was forwarded to the customer
type SendInvoiceResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	SentVia string `json:"sent_via"`
}
