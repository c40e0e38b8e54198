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

// ---- Rental Lifecycle (RENT) ----

func ErrNotFound(entity string) *AppError {
	return New("RENT_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrInvalidState signals a transition attempted from the wrong contract status.
func ErrInvalidState(detail string) *AppError {
	return New("RENT_002", detail, http.StatusConflict)
}

func ErrHandshakeExpired() *AppError {
	return New("RENT_003", "Handshake has expired", http.StatusGone)
}

// ErrInsufficientFunds is recoverable: the scheduler retries the charge next run.
func ErrInsufficientFunds() *AppError {
	return New("RENT_004", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

// ErrConflict signals a lost concurrency race; safe to retry.
func ErrConflict(detail string) *AppError {
	return New("RENT_005", detail, http.StatusConflict)
}

func ErrHandshakeExists() *AppError {
	return New("RENT_006", "An unexpired handshake already exists for this subject", http.StatusConflict)
}

func ErrNotParty() *AppError {
	return New("RENT_007", "Caller is not a party to this contract", http.StatusForbidden)
}

func ErrInvalidAmount() *AppError {
	return New("RENT_008", "Invalid amount", http.StatusBadRequest)
}

func ErrSameParty() *AppError {
	return New("RENT_009", "Owner and borrower must be different users", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// Validation returns a RENT_008-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("RENT_008", message, http.StatusBadRequest)
}
