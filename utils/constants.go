package utils

type contextKey string

// Context keys used by handlers to pass request metadata into business flows
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
	OperatorIDKey contextKey = "operator_id"
)

// Scheduling constants
const (
	// MinScheduleDays is the minimum number of days from today a message may be scheduled
	MinScheduleDays = 1

	// MinPhoneDigits is the minimum number of digits in a customer phone number
	MinPhoneDigits = 10
)
