package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinio/crm-api/models"
	"gorm.io/gorm"
)

// InvoiceRepositoryImpl implements InvoiceRepository interface
type InvoiceRepositoryImpl struct {
	*BaseRepository[models.Invoice, models.InvoiceFilter]
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &InvoiceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Invoice, models.InvoiceFilter](db),
	}
}

func (r *InvoiceRepositoryImpl) applyFilter(query *gorm.DB, filter models.InvoiceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves invoices matching the provided filter
func (r *InvoiceRepositoryImpl) ByFilter(ctx context.Context, filter models.InvoiceFilter, orderBy string, limit, offset int) ([]*models.Invoice, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Invoice{})
	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var invoices []*models.Invoice
	err := query.Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find invoices by filter: %w", err)
	}

	return invoices, nil
}

// Count returns the number of invoices matching the provided filter
func (r *InvoiceRepositoryImpl) Count(ctx context.Context, filter models.InvoiceFilter) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Invoice{})
	query = r.applyFilter(query, filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	return count, nil
}

// ByUUID retrieves an invoice by UUID with its customer preloaded
func (r *InvoiceRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Invoice, error) {
	db := r.getDB(ctx)

	var invoice models.Invoice
	err := db.Preload("Customer").Where("uuid = ?", uuid).Last(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find invoice by UUID: %w", err)
	}

	return &invoice, nil
}

// ListByCustomer retrieves all invoices for a customer, newest first
func (r *InvoiceRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint) ([]*models.Invoice, error) {
	db := r.getDB(ctx)

	var invoices []*models.Invoice
	err := db.Where("customer_id = ?", customerID).Order("id DESC").Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices for customer: %w", err)
	}

	return invoices, nil
}
