package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound     = NewError("not found", 404)
	ErrInvalidInput = NewError("invalid input", 400)

	// ErrSessionDisposed is returned by operations on a gateway session that
	// has already been torn down.
	ErrSessionDisposed = errors.New("session disposed")
)

// Error represents a domain error with an associated code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// ResourceNotFoundError indicates that a requested resource was not found on
// a downstream server.
type ResourceNotFoundError struct {
	ServerIndex int
	URI         string
	Err         *Error
}

// Error returns the error message.
func (e *ResourceNotFoundError) Error() string {
	return e.Err.Error()
}

// NewResourceNotFoundError creates a new ResourceNotFoundError.
func NewResourceNotFoundError(serverIndex int, uri string) *ResourceNotFoundError {
	return &ResourceNotFoundError{
		ServerIndex: serverIndex,
		URI:         uri,
		Err: NewError(
			fmt.Sprintf("resource with URI %s not found on server %d", uri, serverIndex),
			404,
		),
	}
}

// ToolNotFoundError indicates that no downstream server exposes a tool.
type ToolNotFoundError struct {
	Name string
	Err  *Error
}

// Error returns the error message.
func (e *ToolNotFoundError) Error() string {
	return e.Err.Error()
}

// NewToolNotFoundError creates a new ToolNotFoundError.
func NewToolNotFoundError(name string) *ToolNotFoundError {
	return &ToolNotFoundError{
		Name: name,
		Err: NewError(
			fmt.Sprintf("tool with name %s not found", name),
			404,
		),
	}
}

// BackendNotFoundError indicates a server index outside the aggregated set.
type BackendNotFoundError struct {
	ServerIndex int
	Err         *Error
}

// Error returns the error message.
func (e *BackendNotFoundError) Error() string {
	return e.Err.Error()
}

// NewBackendNotFoundError creates a new BackendNotFoundError.
func NewBackendNotFoundError(serverIndex int) *BackendNotFoundError {
	return &BackendNotFoundError{
		ServerIndex: serverIndex,
		Err: NewError(
			fmt.Sprintf("no server with index %d", serverIndex),
			404,
		),
	}
}

// SessionNotFoundError indicates that a requested gateway session was not found.
type SessionNotFoundError struct {
	ID  string
	Err *Error
}

// Error returns the error message.
func (e *SessionNotFoundError) Error() string {
	return e.Err.Error()
}

// NewSessionNotFoundError creates a new SessionNotFoundError.
func NewSessionNotFoundError(id string) *SessionNotFoundError {
	return &SessionNotFoundError{
		ID: id,
		Err: NewError(
			fmt.Sprintf("session with ID %s not found", id),
			404,
		),
	}
}

// ValidationError indicates that input validation failed.
type ValidationError struct {
	Field   string
	Message string
	Err     *Error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return e.Err.Error()
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err: NewError(
			fmt.Sprintf("validation failed for field %s: %s", field, message),
			400,
		),
	}
}
