package handlers

import (
	"context"
	"time"

	"github.com/clinio/crm-api/app/dto"
	businessflow "github.com/clinio/crm-api/business_flow"
	"github.com/clinio/crm-api/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// MessageHandlerInterface defines the contract for message schedule handlers
type MessageHandlerInterface interface {
	Schedule(c fiber.Ctx) error
	ListDue(c fiber.Ctx) error
	Acknowledge(c fiber.Ctx) error
}

// MessageHandler handles message scheduling HTTP requests
type MessageHandler struct {
	flow      businessflow.MessageFlow
	validator *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(flow businessflow.MessageFlow) *MessageHandler {
	return &MessageHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *MessageHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MessageHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Schedule plans an outbound message for a customer
func (h *MessageHandler) Schedule(c fiber.Ctx) error {
	customerUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(customerUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer UUID", "INVALID_UUID", nil)
	}

	var req dto.ScheduleMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", collectValidationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.ScheduleMessage(h.createRequestContext(c, "/api/v1/customers/:uuid/messages"), customerUUID, &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsScheduleTimeNotFuture(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Scheduled delivery must be at least one day from today", "SCHEDULE_TIME_NOT_FUTURE", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "MESSAGE_CONTENT_REQUIRED", "INVALID_CHANNEL":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
			}
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to schedule message", "MESSAGE_SCHEDULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Message scheduled successfully", result)
}

// ListDue returns messages past their scheduled time that still need operator attention
func (h *MessageHandler) ListDue(c fiber.Ctx) error {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.ListDueMessages(h.createRequestContext(c, "/api/v1/messages/due"), metadata)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list due messages", "DUE_QUERY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Due messages retrieved successfully", result)
}

// Acknowledge silences the due reminder for a message
func (h *MessageHandler) Acknowledge(c fiber.Ctx) error {
	messageUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(messageUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid message UUID", "INVALID_UUID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.AcknowledgeReminder(h.createRequestContext(c, "/api/v1/messages/:uuid/acknowledge"), messageUUID, metadata)
	if err != nil {
		if businessflow.IsMessageNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Message not found", "MESSAGE_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to acknowledge reminder", "ACKNOWLEDGE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reminder acknowledged", result)
}

func (h *MessageHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
