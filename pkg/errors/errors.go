package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes in the watcher. Only ErrConfig is
// fatal to the process; everything else is isolated to the message, API call,
// or flush cycle that produced it.
var (
	ErrConfig      = NewError("CONFIG_ERROR", "invalid configuration", http.StatusInternalServerError)
	ErrTransport   = NewError("TRANSPORT_ERROR", "workspace transport failure", http.StatusBadGateway)
	ErrActuator    = NewError("ACTUATOR_ERROR", "alert actuator failure", http.StatusInternalServerError)
	ErrPersistence = NewError("PERSISTENCE_ERROR", "statistics persistence failure", http.StatusInternalServerError)
	ErrNotFound    = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrInternal    = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return e.Code != ErrConfig.Code
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}
	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}
	return e.Code == ErrConfig.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	err := *e
	err.Message = message
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Is(err, target error) bool {
	var e, t *Error
	if errors.As(err, &e) && errors.As(target, &t) {
		return e.Code == t.Code
	}
	return errors.Is(err, target)
}

// ToHTTPStatus maps an error to the status code reported by the dashboard.
func ToHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func ToErrorResponse(err error) ErrorResponse {
	var e *Error
	if errors.As(err, &e) {
		return ErrorResponse{Error: e.Message, ErrorCode: e.Code}
	}
	return ErrorResponse{Error: err.Error(), ErrorCode: ErrInternal.Code}
}
