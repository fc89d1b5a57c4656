package errprocess

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error; values double as HTTP status codes
type Code int

const (
	// BadRequest invalid or missing input
	BadRequest Code = http.StatusBadRequest
	// Unauthorized missing identity
	Unauthorized Code = http.StatusUnauthorized
	// Forbidden identity not allowed to act on the resource
	Forbidden Code = http.StatusForbidden
	// NotFound resource does not exist
	NotFound Code = http.StatusNotFound
	// TooManyRequests rate or quota exceeded
	TooManyRequests Code = http.StatusTooManyRequests
	// Internal anything not classified
	Internal Code = http.StatusInternalServerError
)

// AppError domain error carrying a status classification
type AppError struct {
	Code    Code
	Message string
	Err     error
}

// Error implement error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap support errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New create AppError
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap keep the classification and attach the cause
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewBadRequest 400
func NewBadRequest(message string) *AppError { return New(BadRequest, message) }

// NewUnauthorized 401
func NewUnauthorized(message string) *AppError { return New(Unauthorized, message) }

// NewForbidden 403
func NewForbidden(message string) *AppError { return New(Forbidden, message) }

// NewNotFound 404
func NewNotFound(message string) *AppError { return New(NotFound, message) }

// NewTooManyRequests 429
func NewTooManyRequests(message string) *AppError { return New(TooManyRequests, message) }

// StatusCode return the HTTP status of err, 500 for unclassified errors
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return int(appErr.Code)
	}
	return int(Internal)
}

// Message return the client visible message of err
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// IsCode check err is an AppError with code
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

