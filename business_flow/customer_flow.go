package businessflow

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/clinio/crm-api/app/dto"
	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/repository"
	"github.com/clinio/crm-api/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// CustomerFlow defines operations for managing clinic customers
type CustomerFlow interface {
	CreateCustomer(ctx context.Context, req *dto.CreateCustomerRequest, metadata *ClientMetadata) (*dto.CreateCustomerResponse, error)
	ListCustomers(ctx context.Context, req *dto.ListCustomersRequest, metadata *ClientMetadata) (*dto.ListCustomersResponse, error)
	GetCustomer(ctx context.Context, customerUUID string, metadata *ClientMetadata) (*dto.CustomerDetail, error)
	UpdateCustomer(ctx context.Context, customerUUID string, req *dto.UpdateCustomerRequest, metadata *ClientMetadata) (*dto.CustomerItem, error)
	DeleteCustomer(ctx context.Context, customerUUID string, metadata *ClientMetadata) error
	ExportCustomers(ctx context.Context, metadata *ClientMetadata) ([]byte, error)
}

// CustomerFlowImpl implements CustomerFlow
type CustomerFlowImpl struct {
	db            *gorm.DB
	customerRepo  repository.CustomerRepository
	treatmentRepo repository.TreatmentRepository
	invoiceRepo   repository.InvoiceRepository
	messageRepo   repository.MessageScheduleRepository
	messageFlow   *MessageFlowImpl
}

func NewCustomerFlow(
	db *gorm.DB,
	customerRepo repository.CustomerRepository,
	treatmentRepo repository.TreatmentRepository,
	invoiceRepo repository.InvoiceRepository,
	messageRepo repository.MessageScheduleRepository,
	messageFlow *MessageFlowImpl,
) CustomerFlow {
	return &CustomerFlowImpl{
		db:            db,
		customerRepo:  customerRepo,
		treatmentRepo: treatmentRepo,
		invoiceRepo:   invoiceRepo,
		messageRepo:   messageRepo,
		messageFlow:   messageFlow,
	}
}

const defaultPageSize = 50

// CreateCustomer registers a new customer and optionally plans a follow-up message
func (f *CustomerFlowImpl) CreateCustomer(ctx context.Context, req *dto.CreateCustomerRequest, metadata *ClientMetadata) (*dto.CreateCustomerResponse, error) {
	if !ValidPhoneNumber(req.PhoneNumber) {
		return nil, NewBusinessErrorf("INVALID_PHONE", "phone number must contain at least %d digits", ErrInvalidPhoneNumber, utils.MinPhoneDigits)
	}
	sex := models.Sex(req.Sex)
	if !sex.Valid() {
		return nil, NewBusinessError("INVALID_SEX", "sex must be one of M, F, O", ErrInvalidSex)
	}

	existing, err := f.customerRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to check existing email", err)
	}
	if existing != nil {
		return nil, NewBusinessError("EMAIL_EXISTS", "email already exists", ErrEmailAlreadyExists)
	}

	treatments, err := f.resolveTreatments(ctx, req.Treatments)
	if err != nil {
		return nil, err
	}

	customer := &models.Customer{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Address:     req.Address,
		Problem:     req.Problem,
		Age:         req.Age,
		Sex:         sex,
	}

	var message *models.MessageSchedule
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.customerRepo.Save(txCtx, customer); err != nil {
			return fmt.Errorf("failed to save customer: %w", err)
		}
		if len(treatments) > 0 {
			if err := f.customerRepo.ReplaceTreatments(txCtx, customer, treatments); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_CREATE_FAILED", "failed to create customer", err)
	}

	// Inline scheduling runs outside the creation transaction: the customer row
	// must exist before the delivery timer can reference it.
	if req.ScheduleMessage != nil {
		message, err = f.messageFlow.scheduleForCustomer(ctx, customer, req.ScheduleMessage)
		if err != nil {
			return nil, err
		}
	}

	customer.Treatments = nil
	for _, t := range treatments {
		customer.Treatments = append(customer.Treatments, *t)
	}

	resp := &dto.CreateCustomerResponse{
		Message:  "Customer created successfully",
		Customer: ToCustomerItem(customer),
	}
	if message != nil {
		resp.MessageUUID = utils.ToPtr(message.UUID.String())
	}
	return resp, nil
}

// ListCustomers returns a page of customers plus the due-message reminder block.
// The reminder block powers the operator dashboard: every visit to the listing
// surfaces messages that are past due and not yet acknowledged.
func (f *CustomerFlowImpl) ListCustomers(ctx context.Context, req *dto.ListCustomersRequest, metadata *ClientMetadata) (*dto.ListCustomersResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > 100 {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "page size must be between 1 and 100", ErrInvalidPageSize)
	}

	customers, err := f.customerRepo.ListWithTreatments(ctx, int(pageSize), int((page-1)*pageSize))
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LIST_FAILED", "failed to list customers", err)
	}

	total, err := f.customerRepo.Count(ctx, models.CustomerFilter{})
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_COUNT_FAILED", "failed to count customers", err)
	}

	due, err := f.messageRepo.ListDue(ctx, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("DUE_QUERY_FAILED", "failed to list due messages", err)
	}

	items := make([]dto.CustomerItem, 0, len(customers))
	for _, c := range customers {
		items = append(items, ToCustomerItem(c))
	}
	dueItems := make([]dto.MessageItem, 0, len(due))
	for _, m := range due {
		dueItems = append(dueItems, ToMessageItem(m))
	}

	return &dto.ListCustomersResponse{
		Message:     "Customers retrieved successfully",
		Customers:   items,
		Total:       total,
		DueMessages: dueItems,
	}, nil
}

// GetCustomer returns a customer with invoices and pending messages
func (f *CustomerFlowImpl) GetCustomer(ctx context.Context, customerUUID string, metadata *ClientMetadata) (*dto.CustomerDetail, error) {
	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "customer not found", ErrCustomerNotFound)
	}

	invoices, err := f.invoiceRepo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, NewBusinessError("INVOICE_LIST_FAILED", "failed to list customer invoices", err)
	}

	messages, err := f.messageRepo.ListByCustomer(ctx, customer.ID, true)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "failed to list customer messages", err)
	}

	detail := &dto.CustomerDetail{
		CustomerItem:   ToCustomerItem(customer),
		Address:        customer.Address,
		Problem:        customer.Problem,
		Invoices:       make([]dto.InvoiceItem, 0, len(invoices)),
		UnsentMessages: make([]dto.MessageItem, 0, len(messages)),
	}
	for _, inv := range invoices {
		detail.Invoices = append(detail.Invoices, ToInvoiceItem(inv))
	}
	for _, m := range messages {
		detail.UnsentMessages = append(detail.UnsentMessages, ToMessageItem(m))
	}

	return detail, nil
}

// UpdateCustomer applies partial updates to an existing customer
func (f *CustomerFlowImpl) UpdateCustomer(ctx context.Context, customerUUID string, req *dto.UpdateCustomerRequest, metadata *ClientMetadata) (*dto.CustomerItem, error) {
	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "customer not found", ErrCustomerNotFound)
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, customer.Email) {
		existing, err := f.customerRepo.ByEmail(ctx, *req.Email)
		if err != nil {
			return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to check existing email", err)
		}
		if existing != nil && existing.ID != customer.ID {
			return nil, NewBusinessError("EMAIL_EXISTS", "email already exists", ErrEmailAlreadyExists)
		}
		customer.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.PhoneNumber != nil {
		if !ValidPhoneNumber(*req.PhoneNumber) {
			return nil, NewBusinessErrorf("INVALID_PHONE", "phone number must contain at least %d digits", ErrInvalidPhoneNumber, utils.MinPhoneDigits)
		}
		customer.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.Problem != nil {
		customer.Problem = *req.Problem
	}
	if req.Age != nil {
		customer.Age = *req.Age
	}
	if req.Sex != nil {
		sex := models.Sex(*req.Sex)
		if !sex.Valid() {
			return nil, NewBusinessError("INVALID_SEX", "sex must be one of M, F, O", ErrInvalidSex)
		}
		customer.Sex = sex
	}

	var treatments []*models.Treatment
	if req.Treatments != nil {
		treatments, err = f.resolveTreatments(ctx, req.Treatments)
		if err != nil {
			return nil, err
		}
	}

	customer.UpdatedAt = utils.UTCNow()
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.customerRepo.Update(txCtx, customer); err != nil {
			return err
		}
		if req.Treatments != nil {
			if err := f.customerRepo.ReplaceTreatments(txCtx, customer, treatments); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_UPDATE_FAILED", "failed to update customer", err)
	}

	if req.Treatments != nil {
		customer.Treatments = nil
		for _, t := range treatments {
			customer.Treatments = append(customer.Treatments, *t)
		}
	}

	item := ToCustomerItem(customer)
	return &item, nil
}

// DeleteCustomer removes a customer; invoices and message schedules go with it
func (f *CustomerFlowImpl) DeleteCustomer(ctx context.Context, customerUUID string, metadata *ClientMetadata) error {
	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to look up customer", err)
	}
	if customer == nil {
		return NewBusinessError("CUSTOMER_NOT_FOUND", "customer not found", ErrCustomerNotFound)
	}

	if err := f.customerRepo.Delete(ctx, customer); err != nil {
		return NewBusinessError("CUSTOMER_DELETE_FAILED", "failed to delete customer", err)
	}

	return nil
}

// ExportCustomers produces an xlsx workbook of all customers
func (f *CustomerFlowImpl) ExportCustomers(ctx context.Context, metadata *ClientMetadata) ([]byte, error) {
	customers, err := f.customerRepo.ListWithTreatments(ctx, 0, 0)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LIST_FAILED", "failed to list customers for export", err)
	}

	wb := excelize.NewFile()
	defer wb.Close()

	sheet := "Customers"
	wb.SetSheetName(wb.GetSheetName(0), sheet)

	headers := []string{"Name", "Email", "Phone", "Age", "Sex", "Address", "Problem", "Treatments", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := wb.SetCellValue(sheet, cell, h); err != nil {
			return nil, NewBusinessError("EXPORT_FAILED", "failed to write export header", err)
		}
	}

	for row, c := range customers {
		names := make([]string, 0, len(c.Treatments))
		for _, t := range c.Treatments {
			names = append(names, t.Name)
		}
		values := []any{
			c.Name, c.Email, c.PhoneNumber, c.Age, c.Sex.String(),
			c.Address, c.Problem, strings.Join(names, ", "),
			c.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := wb.SetCellValue(sheet, cell, v); err != nil {
				return nil, NewBusinessError("EXPORT_FAILED", "failed to write export row", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, NewBusinessError("EXPORT_FAILED", "failed to render export workbook", err)
	}

	return buf.Bytes(), nil
}

// resolveTreatments maps treatment names to catalogue rows, rejecting unknown names
func (f *CustomerFlowImpl) resolveTreatments(ctx context.Context, names []string) ([]*models.Treatment, error) {
	treatments := make([]*models.Treatment, 0, len(names))
	for _, name := range names {
		t, err := f.treatmentRepo.ByName(ctx, name)
		if err != nil {
			return nil, NewBusinessError("TREATMENT_LOOKUP_FAILED", "failed to look up treatment", err)
		}
		if t == nil {
			return nil, NewBusinessErrorf("TREATMENT_NOT_FOUND", "treatment %q not found", ErrTreatmentNotFound, name)
		}
		treatments = append(treatments, t)
	}
	return treatments, nil
}
