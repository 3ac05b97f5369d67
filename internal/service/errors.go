package service

import "fmt"

// JobServiceError is a custom error type for job service errors.
type JobServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// NewJobServiceError creates a new JobServiceError.
func NewJobServiceError(operation, message string, err error) *JobServiceError {
	return &JobServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// ConfigServiceError is a custom error type for config service errors.
type ConfigServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ConfigServiceError.
func (e *ConfigServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("config service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ConfigServiceError) Unwrap() error {
	return e.Err
}

// NewConfigServiceError creates a new ConfigServiceError.
func NewConfigServiceError(operation, message string, err error) *ConfigServiceError {
	return &ConfigServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
