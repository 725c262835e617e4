package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error for missing or malformed input.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ErrPayloadTooLarge returns a VAL_002 error for bodies over the size limit.
func ErrPayloadTooLarge(limit int64) *AppError {
	return New("VAL_002", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// ---- Webhook Authenticity (SEC) ----

func ErrMissingSignature() *AppError {
	return New("SEC_001", "Missing signature header", http.StatusBadRequest)
}

func ErrInvalidSignature(err error) *AppError {
	return Wrap("SEC_002", "Invalid signature", http.StatusBadRequest, err)
}

func ErrMalformedEvent(err error) *AppError {
	return Wrap("SEC_003", "Malformed event payload", http.StatusBadRequest, err)
}

// ---- Payments (PAY) ----

func ErrNotFound(entity string) *AppError {
	return New("PAY_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrProvider(err error) *AppError {
	return Wrap("PAY_002", "Payment provider error", http.StatusBadGateway, err)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_003", "Invalid amount", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_004", "Staff access required", http.StatusForbidden)
}

func ErrAccountDisabled() *AppError {
	return New("AUTH_005", "Account is disabled", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrStorageFailure(err error) *AppError {
	return Wrap("SYS_002", "Object storage failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
