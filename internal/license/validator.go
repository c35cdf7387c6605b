// Package license implements license-key-gated registration: a pure
// validator over the static tables and a slot-accounting ledger behind a
// pluggable backend.
package license

import (
	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
)

// Validator answers which license keys an account type may use and how many
// accounts each key admits. Pure table lookups; no mutation, no persistence.
type Validator struct {
	limits  map[string]int
	allowed map[domain.AccountType]map[string]bool
}

// NewValidator builds a validator from the configured license tables.
func NewValidator(cfg config.LicenseConfig) *Validator {
	v := &Validator{
		limits: make(map[string]int, len(cfg.Limits)),
		allowed: map[domain.AccountType]map[string]bool{
			domain.AccountTypeStudent: make(map[string]bool, len(cfg.StudentKeys)),
			domain.AccountTypeTeacher: make(map[string]bool, len(cfg.TeacherKeys)),
		},
	}
	for key, limit := range cfg.Limits {
		v.limits[key] = limit
	}
	for _, key := range cfg.StudentKeys {
		v.allowed[domain.AccountTypeStudent][key] = true
	}
	for _, key := range cfg.TeacherKeys {
		v.allowed[domain.AccountTypeTeacher][key] = true
	}
	return v
}

// IsValidKeyFor reports whether the key is in the allowed set for the
// account type.
func (v *Validator) IsValidKeyFor(accountType domain.AccountType, key string) bool {
	return v.allowed[accountType][key]
}

// LimitFor returns the maximum account count for a key.
// Unconfigured keys have limit 0 and always reject registration.
func (v *Validator) LimitFor(key string) int {
	return v.limits[key]
}

// Keys returns every configured license key. Used by the admin CLI and the
// ledger seeding command.
func (v *Validator) Keys() []string {
	keys := make([]string, 0, len(v.limits))
	for key := range v.limits {
		keys = append(keys, key)
	}
	return keys
}
