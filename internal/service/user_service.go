// Package service provides business logic services for ClassReel.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/license"
	"github.com/classreel/classreel/internal/lock"
	"github.com/classreel/classreel/internal/metrics"
	"github.com/classreel/classreel/internal/repository"
)

// Lock acquisition parameters for contended registration paths.
const (
	lockRetries    = 3
	lockRetryDelay = 50 * time.Millisecond
)

const resetTokenTTL = time.Hour

// UserService handles user lifecycle operations.
type UserService struct {
	users     repository.UserRepository
	videos    repository.VideoRepository
	validator *license.Validator
	ledger    license.Ledger
	locker    lock.Locker
	lockTTL   time.Duration
	tokens    repository.Cache
	validate  *validator.Validate
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewUserService creates a new UserService.
// tokens backs password reset tokens; m may be nil.
func NewUserService(
	users repository.UserRepository,
	videos repository.VideoRepository,
	licenseValidator *license.Validator,
	ledger license.Ledger,
	locker lock.Locker,
	lockTTL time.Duration,
	tokens repository.Cache,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		videos:    videos,
		validator: licenseValidator,
		ledger:    ledger,
		locker:    locker,
		lockTTL:   lockTTL,
		tokens:    tokens,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		metrics:   m,
		logger:    logger.With().Str("service", "user").Logger(),
	}
}

// RegisterInput contains the data needed to create a new user.
// Either Password (hashed here) or PasswordHash (persisted verbatim)
// must be set.
type RegisterInput struct {
	Email        string             `validate:"required,email"`
	FirstName    string             `validate:"required"`
	Password     string             `validate:"omitempty,min=8"`
	PasswordHash string             `validate:"-"`
	AccountType  domain.AccountType `validate:"required"`
	SchoolName   string             `validate:"required"`
	LicenseKey   string             `validate:"required"`
}

// RegisterOutput contains the result of creating a user.
type RegisterOutput struct {
	User *domain.User
}

// Register creates a new user account gated by the license tables.
//
// The duplicate-email and license-limit checks are serialized through locks
// on the email and the license key, closing the check-then-write window
// within one deployment. With the noop locker the original racy behavior
// is preserved; non-racing callers observe the same results either way.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if err := s.validateRegisterInput(input); err != nil {
		s.metrics.RecordRegistration("invalid_input")
		return nil, err
	}

	if !s.validator.IsValidKeyFor(input.AccountType, input.LicenseKey) {
		s.metrics.RecordRegistration("invalid_license")
		return nil, domain.ErrInvalidLicenseKey
	}

	release, err := s.acquire(ctx, lock.Keys.Registration(input.Email), lock.Keys.License(input.LicenseKey))
	if err != nil {
		s.metrics.RecordRegistration("error")
		return nil, err
	}
	defer release()

	exists, err := s.users.Exists(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to check email existence")
		s.metrics.RecordRegistration("error")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		s.metrics.RecordRegistration("duplicate_email")
		return nil, domain.ErrDuplicateEmail
	}

	if err := s.ledger.Reserve(ctx, input.LicenseKey); err != nil {
		if errors.Is(err, domain.ErrLicenseLimitReached) {
			s.metrics.RecordRegistration("limit_reached")
			return nil, domain.ErrLicenseLimitReached
		}
		s.logger.Error().Err(err).Str("license_key", input.LicenseKey).Msg("failed to reserve license slot")
		s.metrics.RecordRegistration("error")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	passwordHash := input.PasswordHash
	if passwordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			s.releaseSlot(ctx, input.LicenseKey)
			s.metrics.RecordRegistration("error")
			return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
		}
		passwordHash = string(hash)
	}

	user := domain.NewUser(input.Email, input.FirstName, passwordHash, input.AccountType, input.SchoolName, input.LicenseKey)
	if err := s.users.Create(ctx, user); err != nil {
		s.releaseSlot(ctx, input.LicenseKey)
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to create user")
		s.metrics.RecordRegistration("error")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("email", user.Email).
		Str("account_type", string(user.AccountType)).
		Str("school", user.SchoolName).
		Str("license_key", user.LicenseKey).
		Msg("user registered")
	s.metrics.RecordRegistration("ok")

	return &RegisterOutput{User: user}, nil
}

// Authenticate verifies credentials and returns the user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.Get(ctx, email)
	if err != nil {
		// Log but don't expose whether the email exists.
		s.logger.Debug().Str("email", email).Msg("user not found during authentication")
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug().Str("email", email).Msg("invalid password during authentication")
		return nil, domain.ErrInvalidCredentials
	}

	s.logger.Info().Str("email", email).Msg("user authenticated")
	return user, nil
}

// GetUserOutput is the combined read view: the record plus the user's videos.
type GetUserOutput struct {
	User   *domain.User
	Videos []*domain.VideoEntry
}

// Get fetches one user together with their visible videos.
// An absent or malformed record both surface as ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, email string) (*GetUserOutput, error) {
	user, err := s.users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrMalformedRecord) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	videos, err := s.videos.List(ctx, repository.ListScope{
		Email:       user.Email,
		AccountType: user.AccountType,
		SchoolName:  user.SchoolName,
		ClassCodes:  user.ClassCodes,
	})
	if err != nil {
		// Strict listing mode only; lenient mode never fails.
		s.logger.Error().Err(err).Str("email", email).Msg("failed to list user videos")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &GetUserOutput{User: user, Videos: videos}, nil
}

// List returns every stored user record.
// One malformed record fails the whole listing with ErrMalformedRecord.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRecord) {
			return nil, err
		}
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return users, nil
}

// UpdateClassCodes adds or removes one class code on a user.
// The whole record is written back; concurrent updates are last-write-wins.
func (s *UserService) UpdateClassCodes(ctx context.Context, email, classCode string, action domain.ClassCodeAction) (*domain.User, error) {
	if classCode == "" {
		return nil, fmt.Errorf("%w: class code is required", ErrInvalidInput)
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: action must be add or delete", ErrInvalidInput)
	}

	user, err := s.users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrMalformedRecord) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	switch action {
	case domain.ClassCodeAdd:
		user.AddClassCode(classCode)
	case domain.ClassCodeDelete:
		if err := user.RemoveClassCode(classCode); err != nil {
			return nil, err
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to update class codes")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("email", email).
		Str("class_code", classCode).
		Str("action", string(action)).
		Msg("class codes updated")

	return user, nil
}

// UpdatePassword changes a user's password after verifying the old one.
func (s *UserService) UpdatePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrMalformedRecord) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}

	return s.setPassword(ctx, user, newPassword)
}

// resetToken is the stored state of one password reset request.
type resetToken struct {
	Email string `json:"email"`
}

// RequestPasswordReset issues a time-limited reset token for the email.
// Delivering the token to the user (email etc.) is up to the caller.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if _, err := s.users.Get(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrMalformedRecord) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	token := uuid.NewString()
	data, err := json.Marshal(resetToken{Email: email})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.tokens.Set(ctx, "reset:"+token, data, resetTokenTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("email", email).Msg("password reset token issued")
	return token, nil
}

// ConfirmPasswordReset redeems a reset token and sets the new password.
func (s *UserService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	data, err := s.tokens.Get(ctx, "reset:"+token)
	if err != nil {
		return ErrResetTokenInvalid
	}
	var rt resetToken
	if err := json.Unmarshal(data, &rt); err != nil {
		return ErrResetTokenInvalid
	}

	user, err := s.users.Get(ctx, rt.Email)
	if err != nil {
		return ErrResetTokenInvalid
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	// Tokens are single use.
	_ = s.tokens.Delete(ctx, "reset:"+token)

	s.logger.Info().Str("email", rt.Email).Msg("password reset")
	return nil
}

// DeleteOutput summarizes an account removal.
type DeleteOutput struct {
	// VideosDeleted is the number of videos removed by the cascade.
	VideosDeleted int

	// VideosFailed is the number of videos the cascade could not remove.
	VideosFailed int
}

// Delete removes the user record, then sweeps the user's videos.
// The cascade is best effort: a failed video deletion is reported, not
// rolled back, and the user record stays deleted.
func (s *UserService) Delete(ctx context.Context, email string) (*DeleteOutput, error) {
	user, err := s.users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrMalformedRecord) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.users.Delete(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to delete user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	deleted, failed, err := s.videos.DeleteByOwner(ctx, user.SchoolName, email)
	if err != nil {
		// The user record is already gone; report the sweep failure but
		// don't resurrect the account.
		s.logger.Error().Err(err).Str("email", email).Msg("video cascade failed")
		failed = -1
	}

	s.releaseSlot(ctx, user.LicenseKey)

	s.logger.Info().
		Str("email", email).
		Int("videos_deleted", deleted).
		Int("videos_failed", failed).
		Msg("user deleted")

	return &DeleteOutput{VideosDeleted: deleted, VideosFailed: failed}, nil
}

// acquire takes the given locks in order, returning a release for all of them.
func (s *UserService) acquire(ctx context.Context, keys ...string) (func(), error) {
	var held []string
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_, _ = s.locker.Release(context.WithoutCancel(ctx), held[i])
		}
	}

	for _, key := range keys {
		acquired, err := s.locker.AcquireWithRetry(ctx, key, s.lockTTL, lockRetries, lockRetryDelay)
		if err != nil {
			release()
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if !acquired {
			release()
			return nil, ErrLockNotAcquired
		}
		held = append(held, key)
	}

	return release, nil
}

// releaseSlot returns a ledger slot, logging instead of failing.
func (s *UserService) releaseSlot(ctx context.Context, licenseKey string) {
	if err := s.ledger.Release(ctx, licenseKey); err != nil {
		s.logger.Warn().Err(err).Str("license_key", licenseKey).Msg("failed to release license slot")
	}
}

func (s *UserService) setPassword(ctx context.Context, user *domain.User, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// validateRegisterInput validates the input for creating a user.
func (s *UserService) validateRegisterInput(input RegisterInput) error {
	if !input.AccountType.IsValid() {
		return ErrInvalidAccountType
	}
	if input.Password == "" && input.PasswordHash == "" {
		return fmt.Errorf("%w: password or password hash is required", ErrInvalidInput)
	}
	if err := s.validate.Struct(input); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			field := fields[0]
			if field.Field() == "Email" {
				return ErrInvalidEmail
			}
			if field.Field() == "Password" {
				return ErrInvalidPassword
			}
			return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, field.Field())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
