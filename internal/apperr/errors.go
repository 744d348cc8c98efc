// Package apperr defines the error taxonomy shared by services, the session
// layer and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthRequired               = errors.New("authentication required")
	ErrBackend                    = errors.New("backend request failed")
	ErrValidation                 = errors.New("validation failed")
	ErrNotFound                   = errors.New("not found")
	ErrDuplicateRequest           = errors.New("connection request already exists")
	ErrConversationCreationFailed = errors.New("conversation creation failed")
	ErrAIProvider                 = errors.New("ai provider request failed")
)

// ValidationError carries a message that is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// BackendError wraps a failed call against the database or another
// collaborator. It matches both ErrBackend and the underlying cause.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackend, e.Err}
}

// Backend wraps err unless it already belongs to the taxonomy.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// NotFound wraps ErrNotFound with a description of what was missing.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// Classified reports whether err already carries one of the taxonomy sentinels.
func Classified(err error) bool {
	for _, target := range []error{
		ErrAuthRequired, ErrBackend, ErrValidation, ErrNotFound,
		ErrDuplicateRequest, ErrConversationCreationFailed, ErrAIProvider,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage returns text that can be shown to an end user for err.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrAuthRequired):
		return "Unauthorized"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrDuplicateRequest):
		return "A connection request already exists between these users"
	case errors.Is(err, ErrConversationCreationFailed):
		return "Failed to start conversation"
	default:
		return "Something went wrong, please try again"
	}
}

// HTTPStatus maps err to the response status of the REST API.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, ErrBackend), errors.Is(err, ErrAIProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
