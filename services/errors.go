package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrorKind classifies a ServiceError for the HTTP layer
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindRule
	KindConflict
	KindUnauthorized
)

// ServiceError is a user-facing failure raised by a service operation
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  map[string]string // field-level messages for KindValidation
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing record
func NotFound(code, message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Code: code, Message: message}
}

// Forbidden reports a role or ownership failure
func Forbidden(message string) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

// Validation reports invalid input fields
func Validation(fields map[string]string) *ServiceError {
	return &ServiceError{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "Invalid request data", Fields: fields}
}

// RuleViolation reports an operation the current state does not allow
func RuleViolation(code, message string) *ServiceError {
	return &ServiceError{Kind: KindRule, Code: code, Message: message}
}

// Conflict reports a duplicate
func Conflict(code, message string) *ServiceError {
	return &ServiceError{Kind: KindConflict, Code: code, Message: message}
}

// Unauthorized reports missing or bad credentials
func Unauthorized(code, message string) *ServiceError {
	return &ServiceError{Kind: KindUnauthorized, Code: code, Message: message}
}

// Internal wraps an unexpected backend failure
func Internal(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// IsKind reports whether err is a ServiceError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}

// wrap keeps ServiceErrors as they are and turns anything else into an Internal error
func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return Internal(message, err)
}

// notFoundOr maps gorm.ErrRecordNotFound to a NotFound error and wraps everything else
func notFoundOr(err error, code, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(code, message)
	}
	return Internal("Database error", err)
}
