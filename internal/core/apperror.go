package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType categorizes an error for user feedback and logging.
type ErrorType string

const (
	ErrorNetwork        ErrorType = "network"
	ErrorValidation     ErrorType = "validation"
	ErrorAuthentication ErrorType = "authentication"
	ErrorAuthorization  ErrorType = "authorization"
	ErrorNotFound       ErrorType = "not_found"
	ErrorServer         ErrorType = "server"
	ErrorClient         ErrorType = "client"
	ErrorUnknown        ErrorType = "unknown"
)

// Name returns the display name used as a toast title, e.g. "ClientError".
func (t ErrorType) Name() string {
	if t == "" {
		t = ErrorUnknown
	}
	parts := strings.Split(string(t), "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	b.WriteString("Error")
	return b.String()
}

// AppError is an error with a category and optional context.
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Context    map[string]any
	Err        error
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

// NewError creates an AppError with the given message, type and context.
func NewError(message string, typ ErrorType, ctx map[string]any) *AppError {
	if typ == "" {
		typ = ErrorUnknown
	}
	return &AppError{Type: typ, Message: message, Context: ctx}
}

// WrapError wraps err in an AppError of the given type.
func WrapError(err error, typ ErrorType, message string) *AppError {
	if typ == "" {
		typ = ErrorUnknown
	}
	return &AppError{Type: typ, Message: message, Err: err}
}

// TypeOf returns the ErrorType of err, or ErrorUnknown if err carries none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Type != "" {
		return appErr.Type
	}
	switch {
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrMissingRequired), errors.Is(err, ErrUnknownSlice),
		errors.Is(err, ErrInvalidTheme), errors.Is(err, ErrInvalidView),
		errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrInvalidSort):
		return ErrorValidation
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrNotificationNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrorClient
	}
	return ErrorUnknown
}

// FromStatus maps an HTTP status code to an ErrorType.
func FromStatus(code int) ErrorType {
	switch {
	case code == http.StatusUnauthorized:
		return ErrorAuthentication
	case code == http.StatusForbidden:
		return ErrorAuthorization
	case code == http.StatusNotFound:
		return ErrorNotFound
	case code >= 400 && code < 500:
		return ErrorClient
	case code >= 500:
		return ErrorServer
	}
	return ErrorUnknown
}

// StatusCode maps an ErrorType to the HTTP status reported to API clients.
func (t ErrorType) StatusCode() int {
	switch t {
	case ErrorValidation:
		return http.StatusBadRequest
	case ErrorAuthentication:
		return http.StatusUnauthorized
	case ErrorAuthorization:
		return http.StatusForbidden
	case ErrorNotFound:
		return http.StatusNotFound
	case ErrorClient:
		return http.StatusBadRequest
	case ErrorNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var toastMessages = map[ErrorType]string{
	ErrorNetwork:        "Network connection issue. Please check your internet connection.",
	ErrorValidation:     "Please check your input and try again.",
	ErrorAuthentication: "Authentication failed. Please log in again.",
	ErrorAuthorization:  "You do not have permission to perform this action.",
	ErrorNotFound:       "The requested resource was not found.",
	ErrorServer:         "Server error. Our team has been notified.",
	ErrorClient:         "An error occurred in the application.",
	ErrorUnknown:        "An unexpected error occurred.",
}

// ToastMessage returns the generic user-facing text for an ErrorType.
func ToastMessage(t ErrorType) string {
	if msg, ok := toastMessages[t]; ok {
		return msg
	}
	return toastMessages[ErrorUnknown]
}
