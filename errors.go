package spidpassport

import (
	"github.com/BeAdopt/spid-passport/internal/core/domain"
)

// Re-export error types from domain package
type ErrorCode = domain.ErrorCode
type AppError = domain.AppError

// Re-export error code constants
const (
	ErrCodeConfigMissing    = domain.ErrCodeConfigMissing
	ErrCodeIdPNotFound      = domain.ErrCodeIdPNotFound
	ErrCodeAuthFailed       = domain.ErrCodeAuthFailed
	ErrCodeBuildFailed      = domain.ErrCodeBuildFailed
	ErrCodeServiceError     = domain.ErrCodeServiceError
	ErrCodeBadRequest       = domain.ErrCodeBadRequest
	ErrCodeSignatureInvalid = domain.ErrCodeSignatureInvalid
)

// Re-export error constructors
var (
	ConfigError      = domain.ConfigError
	IdPNotFoundError = domain.IdPNotFoundError
	BadRequestError  = domain.BadRequestError
	AuthError        = domain.AuthError
	BuildError       = domain.BuildError
	ServiceError     = domain.ServiceError
)
