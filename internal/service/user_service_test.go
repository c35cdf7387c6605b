// Package service provides business logic services for ClassReel.
package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rs/zerolog"

	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/license"
	"github.com/classreel/classreel/internal/lock"
	"github.com/classreel/classreel/internal/repository"
)

// =============================================================================
// Mock Repository Types
// =============================================================================

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Get(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *mockUserRepository) Exists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) CountByLicenseKey(ctx context.Context, licenseKey string) (int, error) {
	args := m.Called(ctx, licenseKey)
	return args.Int(0), args.Error(1)
}

type mockVideoRepository struct {
	mock.Mock
}

func (m *mockVideoRepository) List(ctx context.Context, scope repository.ListScope) ([]*domain.VideoEntry, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VideoEntry), args.Error(1)
}

func (m *mockVideoRepository) GetMeta(ctx context.Context, school, classCode, email, title string) (*domain.Video, error) {
	args := m.Called(ctx, school, classCode, email, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Video), args.Error(1)
}

func (m *mockVideoRepository) Upload(ctx context.Context, video *domain.Video, payload []byte) (*domain.Video, error) {
	args := m.Called(ctx, video, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Video), args.Error(1)
}

func (m *mockVideoRepository) UpdateMeta(ctx context.Context, video *domain.Video) error {
	args := m.Called(ctx, video)
	return args.Error(0)
}

func (m *mockVideoRepository) Delete(ctx context.Context, school, classCode, email, title string) error {
	args := m.Called(ctx, school, classCode, email, title)
	return args.Error(0)
}

func (m *mockVideoRepository) DeleteByOwner(ctx context.Context, school, email string) (int, int, error) {
	args := m.Called(ctx, school, email)
	return args.Int(0), args.Int(1), args.Error(2)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Reserve(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockLedger) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockLedger) Count(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockCache) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	args := m.Called(ctx, key, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	args := m.Called(ctx, key, delta)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Helper Functions
// =============================================================================

func testLicenseValidator() *license.Validator {
	return license.NewValidator(config.LicenseConfig{
		Limits:      map[string]int{"3399": 20, "7742": 50, "1185": 5},
		StudentKeys: []string{"3399", "7742"},
		TeacherKeys: []string{"1185", "7742"},
	})
}

func newTestUserService() (*UserService, *mockUserRepository, *mockVideoRepository, *mockLedger, *mockCache) {
	users := new(mockUserRepository)
	videos := new(mockVideoRepository)
	ledger := new(mockLedger)
	tokens := new(mockCache)

	svc := NewUserService(
		users,
		videos,
		testLicenseValidator(),
		ledger,
		lock.NewNoopLocker(),
		30*time.Second,
		tokens,
		nil,
		zerolog.Nop(),
	)

	return svc, users, videos, ledger, tokens
}

func testUser(email string, accountType domain.AccountType, classCodes ...string) *domain.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	u := domain.NewUser(email, "Alex", string(hash), accountType, "Springfield High", "3399")
	u.ClassCodes = append(u.ClassCodes, classCodes...)
	return u
}

// =============================================================================
// Test Cases
// =============================================================================

func TestUserService_Register(t *testing.T) {
	tests := []struct {
		name    string
		input   RegisterInput
		setup   func(*mockUserRepository, *mockLedger)
		wantErr error
	}{
		{
			name: "success - student",
			input: RegisterInput{
				Email:       "student@example.com",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "3399",
			},
			setup: func(users *mockUserRepository, ledger *mockLedger) {
				users.On("Exists", mock.Anything, "student@example.com").Return(false, nil)
				ledger.On("Reserve", mock.Anything, "3399").Return(nil)
				users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
					return u.Email == "student@example.com" && u.AccountType == domain.AccountTypeStudent
				})).Return(nil)
			},
			wantErr: nil,
		},
		{
			name: "success - caller-supplied hash persisted verbatim",
			input: RegisterInput{
				Email:        "hashed@example.com",
				FirstName:    "Sam",
				PasswordHash: "$2a$10$precomputedhashprecomputedhashpre",
				AccountType:  domain.AccountTypeTeacher,
				SchoolName:   "Springfield High",
				LicenseKey:   "1185",
			},
			setup: func(users *mockUserRepository, ledger *mockLedger) {
				users.On("Exists", mock.Anything, "hashed@example.com").Return(false, nil)
				ledger.On("Reserve", mock.Anything, "1185").Return(nil)
				users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
					return u.PasswordHash == "$2a$10$precomputedhashprecomputedhashpre"
				})).Return(nil)
			},
			wantErr: nil,
		},
		{
			name: "duplicate email",
			input: RegisterInput{
				Email:       "taken@example.com",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "3399",
			},
			setup: func(users *mockUserRepository, ledger *mockLedger) {
				users.On("Exists", mock.Anything, "taken@example.com").Return(true, nil)
			},
			wantErr: domain.ErrDuplicateEmail,
		},
		{
			name: "license key not valid for account type",
			input: RegisterInput{
				Email:       "student@example.com",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "1185",
			},
			setup:   func(users *mockUserRepository, ledger *mockLedger) {},
			wantErr: domain.ErrInvalidLicenseKey,
		},
		{
			name: "unknown license key",
			input: RegisterInput{
				Email:       "student@example.com",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "0000",
			},
			setup:   func(users *mockUserRepository, ledger *mockLedger) {},
			wantErr: domain.ErrInvalidLicenseKey,
		},
		{
			name: "license limit reached",
			input: RegisterInput{
				Email:       "late@example.com",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "3399",
			},
			setup: func(users *mockUserRepository, ledger *mockLedger) {
				users.On("Exists", mock.Anything, "late@example.com").Return(false, nil)
				ledger.On("Reserve", mock.Anything, "3399").Return(domain.ErrLicenseLimitReached)
			},
			wantErr: domain.ErrLicenseLimitReached,
		},
		{
			name: "slot released when create fails",
			input: RegisterInput{
				Email:       "unlucky@example.com",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "3399",
			},
			setup: func(users *mockUserRepository, ledger *mockLedger) {
				users.On("Exists", mock.Anything, "unlucky@example.com").Return(false, nil)
				ledger.On("Reserve", mock.Anything, "3399").Return(nil)
				users.On("Create", mock.Anything, mock.Anything).Return(domain.ErrStoreUnavailable)
				ledger.On("Release", mock.Anything, "3399").Return(nil)
			},
			wantErr: ErrInternalError,
		},
		{
			name: "invalid email",
			input: RegisterInput{
				Email:       "not-an-email",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "3399",
			},
			setup:   func(users *mockUserRepository, ledger *mockLedger) {},
			wantErr: ErrInvalidEmail,
		},
		{
			name: "invalid account type",
			input: RegisterInput{
				Email:       "student@example.com",
				FirstName:   "Alex",
				Password:    "correct-horse",
				AccountType: "admin",
				SchoolName:  "Springfield High",
				LicenseKey:  "3399",
			},
			setup:   func(users *mockUserRepository, ledger *mockLedger) {},
			wantErr: ErrInvalidAccountType,
		},
		{
			name: "missing password",
			input: RegisterInput{
				Email:       "student@example.com",
				FirstName:   "Alex",
				AccountType: domain.AccountTypeStudent,
				SchoolName:  "Springfield High",
				LicenseKey:  "3399",
			},
			setup:   func(users *mockUserRepository, ledger *mockLedger) {},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _, ledger, _ := newTestUserService()
			tt.setup(users, ledger)

			output, err := svc.Register(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, output.User)
				require.Equal(t, tt.input.Email, output.User.Email)
				require.Empty(t, output.User.ClassCodes)
			}

			mock.AssertExpectationsForObjects(t, users, ledger)
		})
	}
}

func TestUserService_Register_HashesPassword(t *testing.T) {
	svc, users, _, ledger, _ := newTestUserService()

	var created *domain.User
	users.On("Exists", mock.Anything, "student@example.com").Return(false, nil)
	ledger.On("Reserve", mock.Anything, "3399").Return(nil)
	users.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.User)
	}).Return(nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:       "student@example.com",
		FirstName:   "Alex",
		Password:    "correct-horse",
		AccountType: domain.AccountTypeStudent,
		SchoolName:  "Springfield High",
		LicenseKey:  "3399",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotEqual(t, "correct-horse", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct-horse")))
}

func TestUserService_Authenticate(t *testing.T) {
	user := testUser("student@example.com", domain.AccountTypeStudent)

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(*mockUserRepository)
		wantErr  error
	}{
		{
			name:     "success",
			email:    "student@example.com",
			password: "correct-horse",
			setup: func(users *mockUserRepository) {
				users.On("Get", mock.Anything, "student@example.com").Return(user, nil)
			},
			wantErr: nil,
		},
		{
			name:     "wrong password",
			email:    "student@example.com",
			password: "battery-staple",
			setup: func(users *mockUserRepository) {
				users.On("Get", mock.Anything, "student@example.com").Return(user, nil)
			},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:     "unknown email maps to invalid credentials",
			email:    "ghost@example.com",
			password: "correct-horse",
			setup: func(users *mockUserRepository) {
				users.On("Get", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)
			},
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _, _, _ := newTestUserService()
			tt.setup(users)

			got, err := svc.Authenticate(context.Background(), tt.email, tt.password)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.email, got.Email)
			}

			mock.AssertExpectationsForObjects(t, users)
		})
	}
}

func TestUserService_Get(t *testing.T) {
	user := testUser("student@example.com", domain.AccountTypeStudent, "MATH101")

	tests := []struct {
		name    string
		email   string
		setup   func(*mockUserRepository, *mockVideoRepository)
		wantErr error
	}{
		{
			name:  "success with videos",
			email: "student@example.com",
			setup: func(users *mockUserRepository, videos *mockVideoRepository) {
				users.On("Get", mock.Anything, "student@example.com").Return(user, nil)
				entries := []*domain.VideoEntry{
					{Video: domain.Video{Title: "Fractions", ClassCode: "MATH101"}, VideoURL: "https://store.invalid/v.mp4"},
				}
				videos.On("List", mock.Anything, repository.ListScope{
					Email:       "student@example.com",
					AccountType: domain.AccountTypeStudent,
					SchoolName:  "Springfield High",
					ClassCodes:  []string{"MATH101"},
				}).Return(entries, nil)
			},
			wantErr: nil,
		},
		{
			name:  "user not found",
			email: "ghost@example.com",
			setup: func(users *mockUserRepository, videos *mockVideoRepository) {
				users.On("Get", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)
			},
			wantErr: domain.ErrUserNotFound,
		},
		{
			name:  "malformed record surfaces as not found",
			email: "broken@example.com",
			setup: func(users *mockUserRepository, videos *mockVideoRepository) {
				users.On("Get", mock.Anything, "broken@example.com").Return(nil, domain.ErrMalformedRecord)
			},
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, videos, _, _ := newTestUserService()
			tt.setup(users, videos)

			output, err := svc.Get(context.Background(), tt.email)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.email, output.User.Email)
				require.Len(t, output.Videos, 1)
			}

			mock.AssertExpectationsForObjects(t, users, videos)
		})
	}
}

func TestUserService_List(t *testing.T) {
	t.Run("malformed record fails the whole listing", func(t *testing.T) {
		svc, users, _, _, _ := newTestUserService()
		users.On("List", mock.Anything).Return(nil, domain.NewDomainError(domain.ErrMalformedRecord, "user record users/broken@example.com.json is malformed", "users/broken@example.com.json"))

		_, err := svc.List(context.Background())
		require.ErrorIs(t, err, domain.ErrMalformedRecord)

		mock.AssertExpectationsForObjects(t, users)
	})

	t.Run("success", func(t *testing.T) {
		svc, users, _, _, _ := newTestUserService()
		users.On("List", mock.Anything).Return([]*domain.User{
			testUser("a@example.com", domain.AccountTypeStudent),
			testUser("b@example.com", domain.AccountTypeTeacher),
		}, nil)

		got, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
	})
}

func TestUserService_UpdateClassCodes(t *testing.T) {
	tests := []struct {
		name      string
		classCode string
		action    domain.ClassCodeAction
		setup     func(*mockUserRepository)
		wantCodes []string
		wantErr   error
	}{
		{
			name:      "add",
			classCode: "SCI202",
			action:    domain.ClassCodeAdd,
			setup: func(users *mockUserRepository) {
				users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent, "MATH101"), nil)
				users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
					return u.HasClassCode("SCI202") && u.HasClassCode("MATH101")
				})).Return(nil)
			},
			wantCodes: []string{"MATH101", "SCI202"},
			wantErr:   nil,
		},
		{
			name:      "delete",
			classCode: "MATH101",
			action:    domain.ClassCodeDelete,
			setup: func(users *mockUserRepository) {
				users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent, "MATH101", "SCI202"), nil)
				users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
					return !u.HasClassCode("MATH101") && u.HasClassCode("SCI202")
				})).Return(nil)
			},
			wantCodes: []string{"SCI202"},
			wantErr:   nil,
		},
		{
			name:      "delete absent code",
			classCode: "ART303",
			action:    domain.ClassCodeDelete,
			setup: func(users *mockUserRepository) {
				users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent, "MATH101"), nil)
			},
			wantErr: domain.ErrClassCodeNotFound,
		},
		{
			name:      "invalid action",
			classCode: "MATH101",
			action:    "replace",
			setup:     func(users *mockUserRepository) {},
			wantErr:   ErrInvalidInput,
		},
		{
			name:      "user not found",
			classCode: "MATH101",
			action:    domain.ClassCodeAdd,
			setup: func(users *mockUserRepository) {
				users.On("Get", mock.Anything, "student@example.com").Return(nil, repository.ErrNotFound)
			},
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _, _, _ := newTestUserService()
			tt.setup(users)

			got, err := svc.UpdateClassCodes(context.Background(), "student@example.com", tt.classCode, tt.action)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.wantCodes, got.ClassCodes)
			}

			mock.AssertExpectationsForObjects(t, users)
		})
	}
}

func TestUserService_UpdatePassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, users, _, _, _ := newTestUserService()
		users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent), nil)
		users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("battery-staple")) == nil
		})).Return(nil)

		err := svc.UpdatePassword(context.Background(), "student@example.com", "correct-horse", "battery-staple")
		require.NoError(t, err)

		mock.AssertExpectationsForObjects(t, users)
	})

	t.Run("wrong old password", func(t *testing.T) {
		svc, users, _, _, _ := newTestUserService()
		users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent), nil)

		err := svc.UpdatePassword(context.Background(), "student@example.com", "wrong", "battery-staple")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("new password too short", func(t *testing.T) {
		svc, users, _, _, _ := newTestUserService()
		users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent), nil)

		err := svc.UpdatePassword(context.Background(), "student@example.com", "correct-horse", "short")
		require.ErrorIs(t, err, ErrInvalidPassword)
	})
}

func TestUserService_PasswordReset(t *testing.T) {
	t.Run("request and confirm round trip", func(t *testing.T) {
		svc, users, _, _, tokens := newTestUserService()
		user := testUser("student@example.com", domain.AccountTypeStudent)

		var stored []byte
		users.On("Get", mock.Anything, "student@example.com").Return(user, nil)
		tokens.On("Set", mock.Anything, mock.AnythingOfType("string"), mock.Anything, time.Hour).Run(func(args mock.Arguments) {
			stored = args.Get(2).([]byte)
		}).Return(nil)

		token, err := svc.RequestPasswordReset(context.Background(), "student@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		tokens.On("Get", mock.Anything, "reset:"+token).Return(stored, nil)
		tokens.On("Delete", mock.Anything, "reset:"+token).Return(nil)
		users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("battery-staple")) == nil
		})).Return(nil)

		err = svc.ConfirmPasswordReset(context.Background(), token, "battery-staple")
		require.NoError(t, err)

		mock.AssertExpectationsForObjects(t, users, tokens)
	})

	t.Run("request for unknown user", func(t *testing.T) {
		svc, users, _, _, _ := newTestUserService()
		users.On("Get", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)

		_, err := svc.RequestPasswordReset(context.Background(), "ghost@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("confirm with unknown token", func(t *testing.T) {
		svc, _, _, _, tokens := newTestUserService()
		tokens.On("Get", mock.Anything, "reset:bogus").Return(nil, repository.ErrCacheMiss)

		err := svc.ConfirmPasswordReset(context.Background(), "bogus", "battery-staple")
		require.ErrorIs(t, err, ErrResetTokenInvalid)
	})
}

func TestUserService_Delete(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		setup       func(*mockUserRepository, *mockVideoRepository, *mockLedger)
		wantErr     error
		wantDeleted int
		wantFailed  int
	}{
		{
			name:  "success with video cascade",
			email: "student@example.com",
			setup: func(users *mockUserRepository, videos *mockVideoRepository, ledger *mockLedger) {
				users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent), nil)
				users.On("Delete", mock.Anything, "student@example.com").Return(nil)
				videos.On("DeleteByOwner", mock.Anything, "Springfield High", "student@example.com").Return(3, 0, nil)
				ledger.On("Release", mock.Anything, "3399").Return(nil)
			},
			wantDeleted: 3,
			wantFailed:  0,
		},
		{
			name:  "cascade failures reported not rolled back",
			email: "student@example.com",
			setup: func(users *mockUserRepository, videos *mockVideoRepository, ledger *mockLedger) {
				users.On("Get", mock.Anything, "student@example.com").Return(testUser("student@example.com", domain.AccountTypeStudent), nil)
				users.On("Delete", mock.Anything, "student@example.com").Return(nil)
				videos.On("DeleteByOwner", mock.Anything, "Springfield High", "student@example.com").Return(2, 1, nil)
				ledger.On("Release", mock.Anything, "3399").Return(nil)
			},
			wantDeleted: 2,
			wantFailed:  1,
		},
		{
			name:  "user not found",
			email: "ghost@example.com",
			setup: func(users *mockUserRepository, videos *mockVideoRepository, ledger *mockLedger) {
				users.On("Get", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)
			},
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, videos, ledger, _ := newTestUserService()
			tt.setup(users, videos, ledger)

			output, err := svc.Delete(context.Background(), tt.email)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.wantDeleted, output.VideosDeleted)
				require.Equal(t, tt.wantFailed, output.VideosFailed)
			}

			mock.AssertExpectationsForObjects(t, users, videos, ledger)
		})
	}
}
