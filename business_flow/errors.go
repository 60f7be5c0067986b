package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidPhoneNumber = errors.New("phone number must contain at least 10 digits")
	ErrInvalidSex         = errors.New("sex must be one of M, F, O")
	ErrTreatmentNotFound  = errors.New("treatment not found")

	// Invoice-related errors
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrReceiptFileRequired    = errors.New("receipt file is required")
	ErrUnsupportedReceiptType = errors.New("receipt must be a jpeg, png, webp, or pdf file")
	ErrReceiptTooLarge        = errors.New("receipt file exceeds the maximum allowed size")

	// Message scheduling errors
	ErrMessageNotFound        = errors.New("message not found")
	ErrScheduleTimeNotFuture  = errors.New("scheduled delivery must be at least one day from today")
	ErrInvalidMessageChannel  = errors.New("channel must be SMS or WhatsApp")
	ErrMessageContentRequired = errors.New("message content is required")
	ErrDeliveryFailed         = errors.New("message delivery failed")
	ErrMessageAlreadySent     = errors.New("message has already been sent")

	// Operator / auth errors
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrOperatorInactive  = errors.New("operator is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsInvoiceNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}

func IsUnsupportedReceiptType(err error) bool {
	return errors.Is(err, ErrUnsupportedReceiptType)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsScheduleTimeNotFuture(err error) bool {
	return errors.Is(err, ErrScheduleTimeNotFuture)
}

func IsMessageContentRequired(err error) bool {
	return errors.Is(err, ErrMessageContentRequired)
}

func IsInvalidMessageChannel(err error) bool {
	return errors.Is(err, ErrInvalidMessageChannel)
}

func IsDeliveryFailed(err error) bool {
	return errors.Is(err, ErrDeliveryFailed)
}

func IsMessageAlreadySent(err error) bool {
	return errors.Is(err, ErrMessageAlreadySent)
}

func IsOperatorNotFound(err error) bool {
	return errors.Is(err, ErrOperatorNotFound)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}
