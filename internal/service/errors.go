// Package service provides business logic services for ClassReel.
package service

import "errors"

// Common service errors. Business-rule violations surface as the domain
// sentinels; these cover input validation and infrastructure failure.
var (
	// ErrInvalidInput indicates a request failed field validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidEmail indicates the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword indicates the password does not meet requirements.
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 characters")

	// ErrInvalidAccountType indicates the account type is not student or teacher.
	ErrInvalidAccountType = errors.New("invalid account type: must be student or teacher")

	// ErrLockNotAcquired indicates a contended operation could not be
	// serialized in time. Callers should retry.
	ErrLockNotAcquired = errors.New("operation is busy, try again")

	// ErrResetTokenInvalid indicates a password reset token is unknown or expired.
	ErrResetTokenInvalid = errors.New("password reset token is invalid or expired")

	// ErrInternalError indicates an unexpected storage or infrastructure failure.
	ErrInternalError = errors.New("internal server error")
)
