// Package domain contains the core business entities for ClassReel.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (blob store, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist
	// or its stored record could not be decoded.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEmail indicates a user with the same email is already registered.
	ErrDuplicateEmail = errors.New("email is already registered")

	// ErrMalformedRecord indicates a stored user record is missing required fields.
	ErrMalformedRecord = errors.New("malformed user record")

	// ErrClassCodeNotFound indicates the class code to remove is not on the user.
	ErrClassCodeNotFound = errors.New("class code not found")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// License Errors
	// ===========================================

	// ErrInvalidLicenseKey indicates the license key is not in the allowed
	// set for the requested account type.
	ErrInvalidLicenseKey = errors.New("invalid license key")

	// ErrLicenseLimitReached indicates the license key has no free account slots.
	ErrLicenseLimitReached = errors.New("license limit reached")

	// ===========================================
	// Video Errors
	// ===========================================

	// ErrVideoNotFound indicates the requested video does not exist.
	// A video whose metadata or payload object is missing is treated as absent.
	ErrVideoNotFound = errors.New("video not found")

	// ErrDuplicateTitle indicates the user already has a video with the same
	// title in the same class.
	ErrDuplicateTitle = errors.New("video title already exists for this class")

	// ErrUploadFailed indicates the video upload could not be completed.
	ErrUploadFailed = errors.New("video upload failed")

	// ===========================================
	// Store Errors
	// ===========================================

	// ErrStoreUnavailable indicates the blob store cannot be reached.
	// Fatal at startup.
	ErrStoreUnavailable = errors.New("blob store unavailable")

	// ErrObjectNotFound indicates the requested object key does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., email, object key).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
