package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeUnsupportedFormat      ErrorType = "unsupported_format"
	ErrorTypeFileTooLarge           ErrorType = "file_too_large"
	ErrorTypeFileNotFound           ErrorType = "file_not_found"
	ErrorTypeDecode                 ErrorType = "decode_error"
	ErrorTypeUnsupportedColorSpace  ErrorType = "unsupported_color_space"
	ErrorTypeInsufficientResolution ErrorType = "insufficient_resolution"
	ErrorTypeTimeout                ErrorType = "analysis_timeout"
	ErrorTypeConfiguration          ErrorType = "configuration_error"
	ErrorTypeValidation             ErrorType = "validation"
	ErrorTypeNetwork                ErrorType = "network"
	ErrorTypeInternal               ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewUnsupportedFormatError reports a file extension outside the profile's supported formats.
func NewUnsupportedFormatError(message string, cause error) *AppError {
	return newAppError(ErrorTypeUnsupportedFormat, http.StatusUnsupportedMediaType, message, cause)
}

// NewFileTooLargeError reports a source that exceeds the profile's max image size.
func NewFileTooLargeError(message string, cause error) *AppError {
	return newAppError(ErrorTypeFileTooLarge, http.StatusRequestEntityTooLarge, message, cause)
}

// NewFileNotFoundError reports a missing source file.
func NewFileNotFoundError(message string, cause error) *AppError {
	return newAppError(ErrorTypeFileNotFound, http.StatusNotFound, message, cause)
}

// NewDecodeError reports bytes that could not be interpreted as an image.
func NewDecodeError(message string, cause error) *AppError {
	return newAppError(ErrorTypeDecode, http.StatusUnprocessableEntity, message, cause)
}

// NewUnsupportedColorSpaceError reports a pixel layout with an unsupported channel count.
func NewUnsupportedColorSpaceError(message string, cause error) *AppError {
	return newAppError(ErrorTypeUnsupportedColorSpace, http.StatusUnprocessableEntity, message, cause)
}

// NewInsufficientResolutionError reports an image smaller than the kernel windows.
func NewInsufficientResolutionError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInsufficientResolution, http.StatusUnprocessableEntity, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newAppError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewConfigurationError reports an invalid profile or process configuration.
func NewConfigurationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeConfiguration, http.StatusInternalServerError, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// As extracts an *AppError from anywhere in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// Wrap converts any error into an *AppError, keeping existing ones untouched.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("deadline exceeded", err)
	}
	return NewInternalError(err.Error(), err)
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Info converts err into the {kind, message} shape returned to callers.
func Info(err error) *models.ErrorInfo {
	appErr := Wrap(err)
	if appErr == nil {
		return nil
	}
	info := &models.ErrorInfo{
		Kind:    string(appErr.Type),
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if info.Details == "" && appErr.Cause != nil {
		info.Details = appErr.Cause.Error()
	}
	return info
}
