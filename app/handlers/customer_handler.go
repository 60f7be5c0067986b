package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/clinio/crm-api/app/dto"
	businessflow "github.com/clinio/crm-api/business_flow"
	"github.com/clinio/crm-api/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CustomerHandlerInterface defines the contract for customer handlers
type CustomerHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// CustomerHandler handles customer-related HTTP requests
type CustomerHandler struct {
	flow      businessflow.CustomerFlow
	validator *validator.Validate
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(flow businessflow.CustomerFlow) *CustomerHandler {
	return &CustomerHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *CustomerHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CustomerHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Create registers a new customer, optionally scheduling a follow-up message
func (h *CustomerHandler) Create(c fiber.Ctx) error {
	var req dto.CreateCustomerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", collectValidationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.CreateCustomer(h.createRequestContext(c, "/api/v1/customers"), &req, metadata)
	if err != nil {
		if businessflow.IsEmailAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "INVALID_PHONE", "INVALID_SEX", "TREATMENT_NOT_FOUND",
				"MESSAGE_CONTENT_REQUIRED", "SCHEDULE_TIME_NOT_FUTURE", "INVALID_CHANNEL":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Error())
			}
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create customer", "CUSTOMER_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Customer created successfully", result)
}

// List returns customers plus the due-message reminder block
func (h *CustomerHandler) List(c fiber.Ctx) error {
	req := dto.ListCustomersRequest{Page: 1, PageSize: 50}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Page = uint(n)
		}
	}
	if v := c.Query("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.PageSize = uint(n)
		}
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.ListCustomers(h.createRequestContext(c, "/api/v1/customers"), &req, metadata)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "INVALID_PAGE_SIZE" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list customers", "CUSTOMER_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customers retrieved successfully", result)
}

// Get returns a customer with invoices and pending messages
func (h *CustomerHandler) Get(c fiber.Ctx) error {
	customerUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(customerUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer UUID", "INVALID_UUID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.GetCustomer(h.createRequestContext(c, "/api/v1/customers/:uuid"), customerUUID, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get customer", "CUSTOMER_GET_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customer retrieved successfully", result)
}

// Update applies partial updates to a customer
func (h *CustomerHandler) Update(c fiber.Ctx) error {
	customerUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(customerUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer UUID", "INVALID_UUID", nil)
	}

	var req dto.UpdateCustomerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", collectValidationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.UpdateCustomer(h.createRequestContext(c, "/api/v1/customers/:uuid"), customerUUID, &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsEmailAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "INVALID_PHONE", "INVALID_SEX", "TREATMENT_NOT_FOUND":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Error())
			}
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update customer", "CUSTOMER_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customer updated successfully", result)
}

// Delete removes a customer and everything attached to it
func (h *CustomerHandler) Delete(c fiber.Ctx) error {
	customerUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(customerUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer UUID", "INVALID_UUID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	err := h.flow.DeleteCustomer(h.createRequestContext(c, "/api/v1/customers/:uuid"), customerUUID, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete customer", "CUSTOMER_DELETE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customer deleted successfully", nil)
}

// Export streams an xlsx workbook of all customers
func (h *CustomerHandler) Export(c fiber.Ctx) error {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	content, err := h.flow.ExportCustomers(h.createRequestContext(c, "/api/v1/customers/export"), metadata)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export customers", "EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="customers.xlsx"`)
	return c.Send(content)
}

func (h *CustomerHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *CustomerHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
