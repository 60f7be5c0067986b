// Package dto contains Data Transfer Objects for API request and response structures
package dto

// CreateCustomerRequest carries data to register a new customer
// ScheduleMessage optionally plans a follow-up message at creation time;
// DaysFromToday must be at least 1 so the delivery moment is strictly in the future
type CreateCustomerRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=255"`
	Email       string   `json:"email" validate:"required,email,max=255"`
	PhoneNumber string   `json:"phone_number" validate:"required,min=10,max=20"`
	Address     string   `json:"address" validate:"omitempty,max=500"`
	Problem     string   `json:"problem" validate:"omitempty,max=2000"`
	Age         int      `json:"age" validate:"required,min=1,max=150"`
	Sex         string   `json:"sex" validate:"required,oneof=M F O"`
	Treatments  []string `json:"treatments" validate:"omitempty,dive,min=2,max=100"`

	ScheduleMessage *ScheduleMessageRequest `json:"schedule_message,omitempty" validate:"omitempty"`
}

// UpdateCustomerRequest carries partial updates for an existing customer
type UpdateCustomerRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Email       *string  `json:"email,omitempty" validate:"omitempty,email,max=255"`
	PhoneNumber *string  `json:"phone_number,omitempty" validate:"omitempty,min=10,max=20"`
	Address     *string  `json:"address,omitempty" validate:"omitempty,max=500"`
	Problem     *string  `json:"problem,omitempty" validate:"omitempty,max=2000"`
	Age         *int     `json:"age,omitempty" validate:"omitempty,min=1,max=150"`
	Sex         *string  `json:"sex,omitempty" validate:"omitempty,oneof=M F O"`
	Treatments  []string `json:"treatments,omitempty" validate:"omitempty,dive,min=2,max=100"`
}

// CustomerItem represents a customer row in listings
type CustomerItem struct {
	ID          uint     `json:"id"`
	UUID        string   `json:"uuid"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phone_number"`
	Age         int      `json:"age"`
	Sex         string   `json:"sex"`
	Treatments  []string `json:"treatments"`
	CreatedAt   string   `json:"created_at"`
}

// CustomerDetail represents a single customer with related records
type CustomerDetail struct {
	CustomerItem
	Address        string        `json:"address"`
	Problem        string        `json:"problem"`
	Invoices       []InvoiceItem `json:"invoices"`
	UnsentMessages []MessageItem `json:"unsent_messages"`
}

// CreateCustomerResponse returns created customer identifiers
type CreateCustomerResponse struct {
	Message     string       `json:"message"`
	Customer    CustomerItem `json:"customer"`
	MessageUUID *string      `json:"message_uuid,omitempty"`
}

// ListCustomersRequest carries paging for customer listings
type ListCustomersRequest struct {
	Page     uint `json:"page,omitempty"`
	PageSize uint `json:"page_size,omitempty"`
}

// ListCustomersResponse returns customers plus the due-message reminder block
type ListCustomersResponse struct {
	Message     string         `json:"message"`
	Customers   []CustomerItem `json:"customers"`
	Total       int64          `json:"total"`
	DueMessages []MessageItem  `json:"due_messages"`
}
