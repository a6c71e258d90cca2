package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Common error kinds
var (
	ErrBadRequest = errors.New("bad request")
	ErrValidation = errors.New("validation error")
	ErrUpstream   = errors.New("upstream failure")
	ErrRateLimit  = errors.New("rate limited")
	ErrInternal   = errors.New("internal error")
)

// AppError carries the HTTP status and a stable code alongside the cause.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// BadRequest creates a client error for unusable input.
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a client error with per-field details.
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Upstream reports a failed call to an external dependency (store, chat API).
func Upstream(dependency string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrUpstream, err),
		Message:    dependency + " unavailable",
		Code:       "UPSTREAM_ERROR",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]string{"dependency": dependency},
	}
}

func RateLimited() *AppError {
	return &AppError{
		Err:        ErrRateLimit,
		Message:    "too many requests",
		Code:       "RATE_LIMITED",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Err:        appErr.Err,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			Code:       appErr.Code,
			HTTPStatus: appErr.HTTPStatus,
			Details:    appErr.Details,
		}
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Respond writes err as a JSON error body and aborts the gin chain.
// Server-side failures are logged with their cause; client errors at debug.
func Respond(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Internal(err)
	}

	entry := log.WithFields(log.Fields{
		"path":   c.FullPath(),
		"code":   appErr.Code,
		"status": appErr.HTTPStatus,
	})
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		entry.WithError(appErr.Err).Error(appErr.Message)
	} else {
		entry.Debug(appErr.Message)
	}

	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}
