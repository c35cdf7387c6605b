// Package domain contains the core business entities for ClassReel.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the video-sharing system.
package domain

import (
	"slices"
	"time"
)

// AccountType is the role flag governing listing scope and permitted license keys.
type AccountType string

const (
	// AccountTypeStudent can upload videos and list their own per-class videos.
	AccountTypeStudent AccountType = "student"

	// AccountTypeTeacher can list every video in their school, filtered to
	// the classes they run.
	AccountTypeTeacher AccountType = "teacher"
)

// IsValid returns true if the account type is one of the known roles.
func (t AccountType) IsValid() bool {
	return t == AccountTypeStudent || t == AccountTypeTeacher
}

// User represents a registered user in the system.
// Users are stored as one JSON object per user in the blob store,
// keyed by email under the users/ namespace.
type User struct {
	// Email is the unique identifier for the user.
	Email string `json:"email"`

	// FirstName is the user's display name.
	FirstName string `json:"firstName"`

	// PasswordHash is the bcrypt hash of the user's password.
	// It is persisted verbatim in the stored record but never exposed
	// in API responses.
	PasswordHash string `json:"hashedPassword"`

	// AccountType is either student or teacher.
	AccountType AccountType `json:"accountType"`

	// SchoolName scopes the user's videos within the store.
	SchoolName string `json:"schoolName"`

	// LicenseKey is the shared credential the user registered under.
	LicenseKey string `json:"licenseKey"`

	// ClassCodes is the ordered list of classes the user belongs to.
	ClassCodes []string `json:"classCodesArray"`

	// CreatedAt is the timestamp when the user registered.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a new User with default values.
func NewUser(email, firstName, passwordHash string, accountType AccountType, schoolName, licenseKey string) *User {
	now := time.Now().UTC()
	return &User{
		Email:        email,
		FirstName:    firstName,
		PasswordHash: passwordHash,
		AccountType:  accountType,
		SchoolName:   schoolName,
		LicenseKey:   licenseKey,
		ClassCodes:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks that the record carries the fields every stored user must have.
// A record failing this check is malformed and must not be served.
func (u *User) Validate() error {
	if u.Email == "" || u.FirstName == "" || !u.AccountType.IsValid() {
		return ErrMalformedRecord
	}
	return nil
}

// AddClassCode appends a class code to the user's ordered list.
func (u *User) AddClassCode(code string) {
	u.ClassCodes = append(u.ClassCodes, code)
	u.UpdatedAt = time.Now().UTC()
}

// RemoveClassCode removes the first occurrence of a class code.
// Returns ErrClassCodeNotFound if the code is not present.
func (u *User) RemoveClassCode(code string) error {
	i := slices.Index(u.ClassCodes, code)
	if i < 0 {
		return ErrClassCodeNotFound
	}
	u.ClassCodes = slices.Delete(u.ClassCodes, i, i+1)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// HasClassCode reports whether the user belongs to the given class.
func (u *User) HasClassCode(code string) bool {
	return slices.Contains(u.ClassCodes, code)
}

// ClassCodeAction selects the mutation applied by a class-code update.
type ClassCodeAction string

const (
	// ClassCodeAdd appends the code to the user's list.
	ClassCodeAdd ClassCodeAction = "add"

	// ClassCodeDelete removes the code from the user's list.
	ClassCodeDelete ClassCodeAction = "delete"
)

// IsValid returns true if the action is one of the known mutations.
func (a ClassCodeAction) IsValid() bool {
	return a == ClassCodeAdd || a == ClassCodeDelete
}
