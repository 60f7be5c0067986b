package dto

// ScheduleMessageRequest carries data to plan an outbound message
// DaysFromToday >= 1 keeps the delivery moment strictly in the future
type ScheduleMessageRequest struct {
	Content       string `json:"content" validate:"required,min=1,max=2000"`
	DaysFromToday int    `json:"days_from_today" validate:"required,min=1,max=365"`
	Channel       string `json:"channel" validate:"required,oneof=SMS WhatsApp"`
}

// ScheduleMessageResponse returns the planned message identifiers
type ScheduleMessageResponse struct {
	Message     string `json:"message"`
	UUID        string `json:"uuid"`
	ScheduledAt string `json:"scheduled_at"`
	Channel     string `json:"channel"`
}

// MessageItem represents a scheduled message in listings and reminder blocks
type MessageItem struct {
	ID                   uint    `json:"id"`
	UUID                 string  `json:"uuid"`
	CustomerUUID         string  `json:"customer_uuid,omitempty"`
	CustomerName         string  `json:"customer_name,omitempty"`
	PhoneNumber          string  `json:"phone_number,omitempty"`
	Content              string  `json:"content"`
	Channel              string  `json:"channel"`
	ScheduledAt          string  `json:"scheduled_at"`
	Sent                 bool    `json:"sent"`
	ReminderAcknowledged bool    `json:"reminder_acknowledged"`
	Attempts             int     `json:"attempts"`
	LastError            *string `json:"last_error,omitempty"`
	SentAt               *string `json:"sent_at,omitempty"`
}

// ListDueMessagesResponse returns messages past their scheduled time that still
// need operator attention
type ListDueMessagesResponse struct {
	Message     string        `json:"message"`
	DueMessages []MessageItem `json:"due_messages"`
}

// AcknowledgeMessageResponse confirms a reminder acknowledgment
type AcknowledgeMessageResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
}
