package domain

import (
	"fmt"
)

// ErrorCode represents categorized error types.
// These codes are stable and can be used for programmatic error handling.
type ErrorCode string

const (
	ErrCodeConfigMissing    ErrorCode = "config_missing"
	ErrCodeIdPNotFound      ErrorCode = "idp_not_found"
	ErrCodeAuthFailed       ErrorCode = "auth_failed"
	ErrCodeBuildFailed      ErrorCode = "build_failed"
	ErrCodeServiceError     ErrorCode = "service_error"
	ErrCodeBadRequest       ErrorCode = "bad_request"
	ErrCodeSignatureInvalid ErrorCode = "signature_invalid"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Title returns a user-friendly title for this error code.
func (c ErrorCode) Title() string {
	switch c {
	case ErrCodeConfigMissing:
		return "Configuration Error"
	case ErrCodeIdPNotFound:
		return "Identity Provider Not Found"
	case ErrCodeAuthFailed:
		return "Authentication Failed"
	case ErrCodeBuildFailed:
		return "Request Construction Failed"
	case ErrCodeServiceError:
		return "Service Error"
	case ErrCodeBadRequest:
		return "Invalid Request"
	case ErrCodeSignatureInvalid:
		return "Signature Invalid"
	default:
		return "Error"
	}
}

// AppError is a structured error with code, message, and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ConfigError creates a configuration error.
func ConfigError(message string) *AppError {
	return &AppError{Code: ErrCodeConfigMissing, Message: message}
}

// IdPNotFoundError creates an IdP not found error.
func IdPNotFoundError(entityID string) *AppError {
	return &AppError{
		Code:    ErrCodeIdPNotFound,
		Message: fmt.Sprintf("the identity provider %q is not registered", entityID),
	}
}

// BadRequestError creates a bad request error.
func BadRequestError(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message}
}

// AuthError creates an authentication error with optional cause.
func AuthError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeAuthFailed, Message: message, Cause: cause}
}

// BuildError creates an AuthnRequest construction error with optional cause.
func BuildError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeBuildFailed, Message: message, Cause: cause}
}

// ServiceError creates a service error.
func ServiceError(message string) *AppError {
	return &AppError{Code: ErrCodeServiceError, Message: message}
}
