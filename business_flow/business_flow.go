// Package businessflow contains the business logic for the application.
package businessflow

import (
	"unicode"

	"github.com/clinio/crm-api/app/dto"
	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and request tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ValidPhoneNumber reports whether the value holds at least the minimum number of digits
// and nothing besides digits, spaces, and a leading plus sign
func ValidPhoneNumber(value string) bool {
	digits := 0
	for i, r := range value {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	return digits >= utils.MinPhoneDigits
}

// ToCustomerItem converts a customer model to its listing DTO
func ToCustomerItem(customer *models.Customer) dto.CustomerItem {
	treatments := make([]string, 0, len(customer.Treatments))
	for _, t := range customer.Treatments {
		treatments = append(treatments, t.Name)
	}
	return dto.CustomerItem{
		ID:          customer.ID,
		UUID:        customer.UUID.String(),
		Name:        customer.Name,
		Email:       customer.Email,
		PhoneNumber: customer.PhoneNumber,
		Age:         customer.Age,
		Sex:         customer.Sex.String(),
		Treatments:  treatments,
		CreatedAt:   customer.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ToInvoiceItem converts an invoice model to its listing DTO
func ToInvoiceItem(invoice *models.Invoice) dto.InvoiceItem {
	return dto.InvoiceItem{
		ID:               invoice.ID,
		UUID:             invoice.UUID.String(),
		Amount:           invoice.Amount,
		OriginalFilename: invoice.OriginalFilename,
		ReceiptSize:      invoice.ReceiptSize,
		CreatedAt:        invoice.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ToMessageItem converts a message schedule model to its listing DTO.
// Customer fields are filled when the relation is preloaded.
func ToMessageItem(message *models.MessageSchedule) dto.MessageItem {
	item := dto.MessageItem{
		ID:                   message.ID,
		UUID:                 message.UUID.String(),
		Content:              message.Content,
		Channel:              message.Channel.String(),
		ScheduledAt:          message.ScheduledAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Sent:                 utils.IsTrue(message.Sent),
		ReminderAcknowledged: utils.IsTrue(message.ReminderAcknowledged),
		Attempts:             message.Attempts,
		LastError:            message.LastError,
	}
	if message.SentAt != nil {
		item.SentAt = utils.ToPtr(message.SentAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	if message.Customer != nil {
		item.CustomerUUID = message.Customer.UUID.String()
		item.CustomerName = message.Customer.Name
		item.PhoneNumber = message.Customer.PhoneNumber
	}
	return item
}
