package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/lock"
	"github.com/classreel/classreel/internal/metrics"
	"github.com/classreel/classreel/internal/repository"
)

const defaultVideoContentType = "video/mp4"

// VideoService handles video listing and lifecycle operations.
type VideoService struct {
	videos  repository.VideoRepository
	users   repository.UserRepository
	locker  lock.Locker
	lockTTL time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewVideoService creates a new VideoService. m may be nil.
func NewVideoService(
	videos repository.VideoRepository,
	users repository.UserRepository,
	locker lock.Locker,
	lockTTL time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *VideoService {
	return &VideoService{
		videos:  videos,
		users:   users,
		locker:  locker,
		lockTTL: lockTTL,
		metrics: m,
		logger:  logger.With().Str("service", "video").Logger(),
	}
}

// List returns the videos visible to the given user.
// Teachers see every video in their school whose class code is one of
// theirs; students see the videos of the classes they belong to.
func (s *VideoService) List(ctx context.Context, email string) ([]*domain.VideoEntry, error) {
	user, err := s.users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrMalformedRecord) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	entries, err := s.videos.List(ctx, repository.ListScope{
		Email:       user.Email,
		AccountType: user.AccountType,
		SchoolName:  user.SchoolName,
		ClassCodes:  user.ClassCodes,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to list videos")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.metrics.RecordListing(len(entries))
	return entries, nil
}

// UploadInput contains the data needed to store a new video.
type UploadInput struct {
	Email     string
	Title     string
	Subject   string
	ClassCode string

	// Filename is the client-side name of the uploaded file, used to
	// derive the content type when ContentType is empty.
	Filename string

	// ContentType overrides detection when set.
	ContentType string

	Payload []byte
}

// UploadOutput contains the stored metadata of an uploaded video.
type UploadOutput struct {
	Video *domain.Video
}

// Upload stores a new video for the user.
//
// The payload is written before the metadata record, so a failed upload
// leaves at worst an orphaned payload that no listing ever surfaces.
// Duplicate titles within the same user and class are rejected before
// anything is written.
func (s *VideoService) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	if err := validateUploadInput(input); err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrMalformedRecord) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	lockKey := lock.Keys.VideoUpload(user.SchoolName, input.ClassCode, input.Email, input.Title)
	acquired, err := s.locker.AcquireWithRetry(ctx, lockKey, s.lockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, ErrLockNotAcquired
	}
	defer func() {
		_, _ = s.locker.Release(context.WithoutCancel(ctx), lockKey)
	}()

	_, err = s.videos.GetMeta(ctx, user.SchoolName, input.ClassCode, input.Email, input.Title)
	if err == nil {
		return nil, domain.ErrDuplicateTitle
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error().Err(err).Str("title", input.Title).Msg("failed to check for duplicate title")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	video := domain.NewVideo(
		input.Title,
		input.Subject,
		input.Email,
		input.ClassCode,
		user.AccountType,
		user.SchoolName,
		contentTypeFor(input),
		"",
	)

	stored, err := s.videos.Upload(ctx, video, input.Payload)
	if err != nil {
		s.logger.Error().Err(err).
			Str("email", input.Email).
			Str("title", input.Title).
			Msg("upload failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	s.logger.Info().
		Str("email", input.Email).
		Str("class_code", input.ClassCode).
		Str("title", input.Title).
		Int("size_bytes", len(input.Payload)).
		Msg("video uploaded")
	s.metrics.RecordUpload()

	return &UploadOutput{Video: stored}, nil
}

// MarkViewed flags a video as watched.
func (s *VideoService) MarkViewed(ctx context.Context, school, classCode, email, title string) (*domain.Video, error) {
	video, err := s.videos.GetMeta(ctx, school, classCode, email, title)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrVideoNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if video.Viewed {
		return video, nil
	}

	video.Viewed = true
	if err := s.videos.UpdateMeta(ctx, video); err != nil {
		s.logger.Error().Err(err).Str("title", title).Msg("failed to mark video viewed")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return video, nil
}

// Delete removes one video, metadata first.
func (s *VideoService) Delete(ctx context.Context, school, classCode, email, title string) error {
	if err := s.videos.Delete(ctx, school, classCode, email, title); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrVideoNotFound
		}
		s.logger.Error().Err(err).
			Str("email", email).
			Str("title", title).
			Msg("failed to delete video")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("email", email).
		Str("class_code", classCode).
		Str("title", title).
		Msg("video deleted")
	return nil
}

func validateUploadInput(input UploadInput) error {
	if input.Email == "" {
		return ErrInvalidEmail
	}
	if input.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.ContainsAny(input.Title, "/\\") {
		return fmt.Errorf("%w: title must not contain path separators", ErrInvalidInput)
	}
	if input.ClassCode == "" {
		return fmt.Errorf("%w: class code is required", ErrInvalidInput)
	}
	if len(input.Payload) == 0 {
		return fmt.Errorf("%w: payload is empty", ErrInvalidInput)
	}
	return nil
}

// videoContentTypes maps the upload formats players are expected to handle.
var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

func contentTypeFor(input UploadInput) string {
	if input.ContentType != "" {
		return input.ContentType
	}
	if ct, ok := videoContentTypes[strings.ToLower(filepath.Ext(input.Filename))]; ok {
		return ct
	}
	return defaultVideoContentType
}
