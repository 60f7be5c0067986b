package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageChannel represents the delivery channel for a scheduled message
type MessageChannel string

const (
	ChannelSMS      MessageChannel = "SMS"
	ChannelWhatsApp MessageChannel = "WhatsApp"
)

// String returns the string representation of the channel
func (c MessageChannel) String() string {
	return string(c)
}

// Valid checks if the channel is one of the supported delivery channels
func (c MessageChannel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MessageChannel
func (c *MessageChannel) Scan(value any) error {
	if value == nil {
		*c = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*c = MessageChannel(v)
	case []byte:
		*c = MessageChannel(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageChannel", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageChannel
func (c MessageChannel) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid MessageChannel: %s", c)
	}
	return string(c), nil
}

// MessageSchedule represents an outbound message planned for a future delivery time.
// Sent is monotonic: once true it is never reset. ReminderAcknowledged only silences
// the operator-facing due reminder; it does not stop delivery.
type MessageSchedule struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_message_schedules_uuid" json:"uuid"`
	CustomerID  uint           `gorm:"not null;index:idx_message_schedules_customer_id" json:"customer_id"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	ScheduledAt time.Time      `gorm:"not null;index:idx_message_schedules_scheduled_at" json:"scheduled_at"`
	Channel     MessageChannel `gorm:"type:varchar(10);not null" json:"channel"`

	Sent                 *bool `gorm:"default:false;index:idx_message_schedules_sent" json:"sent"`
	ReminderAcknowledged *bool `gorm:"default:false" json:"reminder_acknowledged"`

	// Delivery bookkeeping for the hardened retry path
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	LastError *string    `gorm:"type:text" json:"last_error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Customer *Customer `gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

func (MessageSchedule) TableName() string {
	return "message_schedules"
}

// BeforeCreate ensures UUID and timestamps are set
func (m *MessageSchedule) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// IsDue reports whether the message should appear on the operator reminder surface:
// past its scheduled time, not yet sent, and not acknowledged.
func (m *MessageSchedule) IsDue(now time.Time) bool {
	return !m.ScheduledAt.After(now) && !boolVal(m.Sent) && !boolVal(m.ReminderAcknowledged)
}

// IsDeliverable reports whether the message is eligible for a delivery attempt.
// Acknowledgment does not block delivery, only the reminder surface.
func (m *MessageSchedule) IsDeliverable(now time.Time) bool {
	return !m.ScheduledAt.After(now) && !boolVal(m.Sent)
}

func boolVal(b *bool) bool {
	return b != nil && *b
}

// MessageScheduleFilter represents filter criteria for message schedule queries
type MessageScheduleFilter struct {
	ID                   *uint
	UUID                 *uuid.UUID
	CustomerID           *uint
	Channel              *MessageChannel
	Sent                 *bool
	ReminderAcknowledged *bool
	ScheduledBefore      *time.Time
	ScheduledAfter       *time.Time
}
