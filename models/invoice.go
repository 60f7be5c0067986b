package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice represents a billed amount with a stored receipt.
// The receipt is always a PDF on disk; raster uploads are normalized before the row is created.
type Invoice struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_invoices_uuid" json:"uuid"`
	CustomerID uint      `gorm:"not null;index:idx_invoices_customer_id" json:"customer_id"`
	Amount     float64   `gorm:"type:decimal(10,2);not null" json:"amount"`

	ReceiptPath      string `gorm:"size:512;not null" json:"receipt_path"`
	ReceiptSize      int64  `gorm:"not null" json:"receipt_size"`
	OriginalFilename string `gorm:"size:255;not null" json:"original_filename"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_invoices_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Customer *Customer `gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// BeforeCreate ensures UUID and timestamps are set
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == uuid.Nil {
		i.UUID = uuid.New()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// InvoiceFilter represents filter criteria for invoice queries
type InvoiceFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CustomerID    *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
