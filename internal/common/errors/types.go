package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeInvalidArgument represents bad caller input rejected before any network call
	ErrTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrTypeUnknownOperation represents a lookup of an operation the catalog does not define
	ErrTypeUnknownOperation ErrorType = "unknown_operation"
	// ErrTypeAuth represents credential exchange failures and repeated 401/403 responses
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeRemote represents a non-auth, non-2xx response from the remote service
	ErrTypeRemote ErrorType = "remote"
	// ErrTypeTransport represents network, timeout and response parsing failures
	ErrTypeTransport ErrorType = "transport"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeNotFound represents a lookup of an unregistered action
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeUnauthorized represents a serve-mode request without valid credentials
	ErrTypeUnauthorized ErrorType = "unauthorized"
	// ErrTypeRateLimited represents a serve-mode caller over its request budget
	ErrTypeRateLimited ErrorType = "rate_limited"
)

// maxBodyInMessage bounds how much of a remote body ends up in Error()
const maxBodyInMessage = 512

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Body       string                 `json:"body,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body=%s", truncate(e.Body, maxBodyInMessage)))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// InvalidArgumentError creates a new invalid argument error
func InvalidArgumentError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeInvalidArgument,
		Message: msg,
	}
}

// UnknownOperationError creates a new unknown operation error
func UnknownOperationError(name string) *AppError {
	return &AppError{
		Type:    ErrTypeUnknownOperation,
		Message: fmt.Sprintf("unknown operation %q", name),
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// AuthErrorWithCause creates a new authentication error wrapping cause
func AuthErrorWithCause(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
		Cause:   cause,
	}
}

// RemoteError creates a new remote error carrying the response status and body
func RemoteError(statusCode int, body string) *AppError {
	return &AppError{
		Type:       ErrTypeRemote,
		Message:    fmt.Sprintf("remote service returned HTTP %d", statusCode),
		StatusCode: statusCode,
		Body:       body,
	}
}

// TransportError creates a new transport error
func TransportError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransport,
		Message: msg,
		Cause:   cause,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// UnauthorizedError creates a new unauthorized error
func UnauthorizedError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeUnauthorized,
		Message: msg,
	}
}

// RateLimitedError creates a new rate limited error
func RateLimitedError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimited,
		Message: msg,
	}
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil || !stderrors.As(err, &appErr) {
		return nil, false
	}
	return appErr, true
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := As(err)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsInvalidArgument reports whether err is an invalid argument error
func IsInvalidArgument(err error) bool { return IsType(err, ErrTypeInvalidArgument) }

// IsUnknownOperation reports whether err is an unknown operation error
func IsUnknownOperation(err error) bool { return IsType(err, ErrTypeUnknownOperation) }

// IsAuth reports whether err is an authentication error
func IsAuth(err error) bool { return IsType(err, ErrTypeAuth) }

// IsRemote reports whether err is a remote error
func IsRemote(err error) bool { return IsType(err, ErrTypeRemote) }

// IsTransport reports whether err is a transport error
func IsTransport(err error) bool { return IsType(err, ErrTypeTransport) }

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	appErr, ok := As(err)
	if !ok {
		return 0
	}
	return appErr.StatusCode
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
