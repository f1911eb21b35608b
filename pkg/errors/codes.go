package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeStorageError       ErrorCode = "COMMON_014"
	ErrCodeMessagingError     ErrorCode = "COMMON_015"
	ErrCodeUnknown            ErrorCode = "COMMON_000"
)

// Data Source Error Codes
const (
	ErrCodeDataSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeDataSourceAuthFailed  ErrorCode = "SRC_003"
	ErrCodeDataSourceParseError  ErrorCode = "SRC_004"
)

// AI Error Codes
const (
	ErrCodeAIModelNotAvailable ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed   ErrorCode = "AI_002"
)

// Short aliases used at call sites.
const (
	CodeOK                    = ErrorCode("OK")
	CodeUnknown               = ErrCodeUnknown
	CodeInternal              = ErrCodeInternal
	CodeInvalidParam          = ErrCodeBadRequest
	CodeNotFound              = ErrCodeNotFound
	CodeConflict              = ErrCodeConflict
	CodeTimeout               = ErrCodeTimeout
	CodeValidation            = ErrCodeValidation
	CodeSerialization         = ErrCodeSerialization
	CodeDatabaseError         = ErrCodeDatabaseError
	CodeCacheError            = ErrCodeCacheError
	CodeStorageError          = ErrCodeStorageError
	CodeMessageQueueError     = ErrCodeMessagingError
	CodeDataSourceUnavailable = ErrCodeDataSourceUnavailable
	CodeDataSourceRateLimited = ErrCodeDataSourceRateLimited
	CodeDataSourceAuthFailed  = ErrCodeDataSourceAuthFailed
	CodeDataSourceParseError  = ErrCodeDataSourceParseError
	CodeAIInferenceFailed     = ErrCodeAIInferenceFailed
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,
	ErrCodeUnknown:            http.StatusInternalServerError,

	ErrCodeDataSourceUnavailable: http.StatusBadGateway,
	ErrCodeDataSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeDataSourceAuthFailed:  http.StatusBadGateway,
	ErrCodeDataSourceParseError:  http.StatusBadGateway,

	ErrCodeAIModelNotAvailable: http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed:   http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:              "internal server error",
	ErrCodeBadRequest:            "bad request",
	ErrCodeNotFound:              "resource not found",
	ErrCodeConflict:              "resource conflict",
	ErrCodeServiceUnavailable:    "service unavailable",
	ErrCodeTimeout:               "request timeout",
	ErrCodeValidation:            "validation failed",
	ErrCodeSerialization:         "serialization error",
	ErrCodeDatabaseError:         "database error",
	ErrCodeCacheError:            "cache error",
	ErrCodeStorageError:          "object storage error",
	ErrCodeMessagingError:        "message queue error",
	ErrCodeDataSourceUnavailable: "upstream data source unavailable",
	ErrCodeDataSourceRateLimited: "upstream data source rate limited",
	ErrCodeDataSourceAuthFailed:  "upstream data source rejected credentials",
	ErrCodeDataSourceParseError:  "upstream data source returned malformed data",
	ErrCodeAIModelNotAvailable:   "language model not available",
	ErrCodeAIInferenceFailed:     "language model inference failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
