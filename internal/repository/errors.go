// Package repository defines data access interfaces for ClassReel.
package repository

import "errors"

// Common repository errors.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a record with the same key exists.
	ErrAlreadyExists = errors.New("record already exists")
)
