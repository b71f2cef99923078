package apperror

import (
	"errors"
	"net/http"
	"strings"
)

// AppError is a coded error. Two AppErrors match under errors.Is when their
// codes are equal.
type AppError struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Context    string `json:"context,omitempty"`
	cause      error
}

// Error renders "CODE: message (context): cause".
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Context)
		sb.WriteString(")")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Kind returns the taxonomy category of the error.
func (e *AppError) Kind() Kind {
	return KindOf(e)
}

// Option is a functional option for AppError
type Option func(*AppError)

// New creates an AppError with the registered message and default status
// for code.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:       code,
		Message:    messages[code],
		StatusCode: defaultStatusCode(code),
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

// WithContext names what was being done or looked at.
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

func WithStatusCode(statusCode int) Option {
	return func(e *AppError) {
		e.StatusCode = statusCode
	}
}

// WithCause wraps an underlying error
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// Validation creates an error for malformed caller input.
func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusBadRequest))
}

// State creates an error for an operation attempted in the wrong session state.
func State(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusConflict))
}

// Wrap wraps err into an AppError with code unless it already is one.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if context != "" && appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}

	return New(code, WithContext(context), WithCause(err))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode extracts the error code from an error
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// GetStatusCode extracts the HTTP status carried by an error, 0 when absent.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 0
}

func defaultStatusCode(code Code) int {
	switch {
	case strings.Contains(string(code), "NOT_FOUND"):
		return http.StatusNotFound

	case strings.Contains(string(code), "INVALID"),
		code == CodeEmptyKeyList,
		code == CodeRequiredField:
		return http.StatusBadRequest

	case strings.Contains(string(code), "CONNECTION"),
		strings.Contains(string(code), "TIMEOUT"),
		strings.Contains(string(code), "UNAVAILABLE"):
		return http.StatusServiceUnavailable

	case code == CodeRateLimitExceeded:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
