// Package failures carries the storage-failure error kind shared by the store services.
package failures

import (
	"errors"
	"fmt"
)

// ServiceError reports an unexpected storage failure. Its code has the form
// "<operation>.<reason>" so HTTP callers can surface it without parsing messages.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation-qualified failure code.
func (e *ServiceError) Code() string {
	return e.code
}

// New builds a ServiceError for the operation and reason.
func New(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IsStorage reports whether err is, or wraps, a ServiceError.
func IsStorage(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// CodeOf returns the ServiceError code carried by err, or "" when there is none.
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}
