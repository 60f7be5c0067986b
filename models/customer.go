// Package models contains domain entities and business models for the CRM system
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sex represents the recorded sex of a customer
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
	SexOther  Sex = "O"
)

// String returns the string representation of the sex
func (s Sex) String() string {
	return string(s)
}

// Valid checks if the sex value is one of the allowed choices
func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for Sex
func (s *Sex) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = Sex(v)
	case []byte:
		*s = Sex(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Sex", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Sex
func (s Sex) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid Sex: %s", s)
	}
	return string(s), nil
}

// Customer represents a patient record with contact details and assigned treatments.
// Deleting a customer cascades to its invoices and message schedules.
type Customer struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Email       string    `gorm:"size:255;not null;uniqueIndex:uk_customers_email" json:"email"`
	PhoneNumber string    `gorm:"size:15;not null;index:idx_customers_phone_number" json:"phone_number"`
	Address     string    `gorm:"type:text;not null" json:"address"`
	Problem     string    `gorm:"type:text;not null" json:"problem"`
	Age         int       `gorm:"not null" json:"age"`
	Sex         Sex       `gorm:"type:varchar(1);not null" json:"sex"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_customers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Treatments       []Treatment       `gorm:"many2many:customer_treatments;constraint:OnDelete:CASCADE" json:"treatments,omitempty"`
	Invoices         []Invoice         `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"invoices,omitempty"`
	MessageSchedules []MessageSchedule `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"message_schedules,omitempty"`
}

func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate ensures UUID and timestamps are set
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Name          *string
	Email         *string
	PhoneNumber   *string
	Sex           *Sex
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
