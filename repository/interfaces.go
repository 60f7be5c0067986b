// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/clinio/crm-api/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
	ByEmail(ctx context.Context, email string) (*models.Customer, error)
	ListWithTreatments(ctx context.Context, limit, offset int) ([]*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	ReplaceTreatments(ctx context.Context, customer *models.Customer, treatments []*models.Treatment) error
	Delete(ctx context.Context, customer *models.Customer) error
}

// TreatmentRepository defines operations for treatments
type TreatmentRepository interface {
	Repository[models.Treatment, models.TreatmentFilter]
	ByName(ctx context.Context, name string) (*models.Treatment, error)
	ByIDs(ctx context.Context, ids []uint) ([]*models.Treatment, error)
	EnsureSeeded(ctx context.Context, names []string) error
}

// InvoiceRepository defines operations for invoices
type InvoiceRepository interface {
	Repository[models.Invoice, models.InvoiceFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Invoice, error)
	ListByCustomer(ctx context.Context, customerID uint) ([]*models.Invoice, error)
}

// MessageScheduleRepository defines operations for scheduled messages
type MessageScheduleRepository interface {
	Repository[models.MessageSchedule, models.MessageScheduleFilter]
	ByUUID(ctx context.Context, uuid string) (*models.MessageSchedule, error)
	ListByCustomer(ctx context.Context, customerID uint, unsentOnly bool) ([]*models.MessageSchedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.MessageSchedule, error)
	ListDeliverable(ctx context.Context, now time.Time, limit int) ([]*models.MessageSchedule, error)
	MarkSent(ctx context.Context, id uint, sentAt time.Time) (bool, error)
	RecordFailure(ctx context.Context, id uint, cause string) error
	Acknowledge(ctx context.Context, id uint) error
}

// OperatorRepository defines operations for back-office operators
type OperatorRepository interface {
	Repository[models.Operator, models.OperatorFilter]
	ByEmail(ctx context.Context, email string) (*models.Operator, error)
	UpdateLastLogin(ctx context.Context, operatorID uint, at time.Time) error
}
