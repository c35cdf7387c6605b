package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/classreel/classreel/internal/blobstore"
	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/repository"
)

// VideoRepository implements repository.VideoRepository over the blob store.
// Each video is a metadata record plus a binary payload under the same base
// key. The metadata record is written last and acts as the commit record:
// listing only surfaces a video when both objects exist.
type VideoRepository struct {
	store   blobstore.Store
	listing config.ListingConfig
	logger  zerolog.Logger
}

// NewVideoRepository creates a blob-backed video repository.
func NewVideoRepository(store blobstore.Store, listing config.ListingConfig, logger zerolog.Logger) *VideoRepository {
	return &VideoRepository{
		store:   store,
		listing: listing,
		logger:  logger.With().Str("repository", "video").Logger(),
	}
}

// List returns the caller's visible videos with presigned access URLs.
//
// Teachers scan the whole school namespace and filter by school and class;
// students scan their own namespace per class code. Results preserve listing
// order. In lenient mode any failure degrades to an empty or partial result.
func (r *VideoRepository) List(ctx context.Context, scope repository.ListScope) ([]*domain.VideoEntry, error) {
	entries, err := r.list(ctx, scope)
	if err != nil {
		if r.listing.Strict() {
			return nil, err
		}
		r.logger.Warn().Err(err).Str("email", scope.Email).Msg("listing failed, returning empty result")
		return []*domain.VideoEntry{}, nil
	}
	return entries, nil
}

func (r *VideoRepository) list(ctx context.Context, scope repository.ListScope) ([]*domain.VideoEntry, error) {
	var prefixes []string
	if scope.AccountType == domain.AccountTypeTeacher {
		prefixes = []string{blobstore.SchoolPrefix(scope.SchoolName)}
	} else {
		for _, code := range scope.ClassCodes {
			prefixes = append(prefixes, blobstore.ClassPrefix(scope.SchoolName, code, scope.Email))
		}
	}

	entries := []*domain.VideoEntry{}
	for _, prefix := range prefixes {
		keys, err := r.store.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}

		for _, key := range keys {
			if !blobstore.IsMetaKey(key) {
				continue
			}
			entry, err := r.resolveEntry(ctx, key, scope)
			if err != nil {
				if r.listing.Strict() {
					return nil, err
				}
				r.logger.Debug().Err(err).Str("key", key).Msg("skipping entry")
				continue
			}
			if entry != nil {
				entries = append(entries, entry)
			}
		}
	}

	return entries, nil
}

// resolveEntry turns one metadata key into a listing entry.
// Returns (nil, nil) when the entry is filtered out or not fully written.
func (r *VideoRepository) resolveEntry(ctx context.Context, metaKey string, scope repository.ListScope) (*domain.VideoEntry, error) {
	obj, err := r.store.Get(ctx, metaKey)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			// Deleted between list and get.
			return nil, nil
		}
		return nil, fmt.Errorf("fetching %s: %w", metaKey, err)
	}

	var video domain.Video
	if err := json.Unmarshal(obj.Data, &video); err != nil {
		// Unparseable metadata is treated as absent, never as an error.
		r.logger.Debug().Str("key", metaKey).Msg("unparseable video metadata skipped")
		return nil, nil
	}

	if scope.AccountType == domain.AccountTypeTeacher {
		if video.SchoolName != scope.SchoolName || !slices.Contains(scope.ClassCodes, video.ClassCode) {
			return nil, nil
		}
	}

	dataKey := video.VideoPath
	if dataKey == "" {
		dataKey = blobstore.DataKeyForMeta(metaKey)
	}

	// A video is only listable when both paired objects exist.
	exists, err := r.store.Head(ctx, dataKey)
	if err != nil {
		return nil, fmt.Errorf("checking payload %s: %w", dataKey, err)
	}
	if !exists {
		return nil, nil
	}

	url, expiresAt, err := r.store.PresignGet(ctx, dataKey, r.listing.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presigning %s: %w", dataKey, err)
	}

	return &domain.VideoEntry{
		Video:     video,
		VideoURL:  url,
		VideoKey:  dataKey,
		MimeType:  video.ContentType,
		ExpiresAt: expiresAt,
	}, nil
}

// GetMeta fetches one metadata record.
func (r *VideoRepository) GetMeta(ctx context.Context, school, classCode, email, title string) (*domain.Video, error) {
	obj, err := r.store.Get(ctx, blobstore.VideoMetaKey(school, classCode, email, title))
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("fetching video %s/%s/%s/%s: %w", school, classCode, email, title, err)
	}

	var video domain.Video
	if err := json.Unmarshal(obj.Data, &video); err != nil {
		return nil, repository.ErrNotFound
	}
	return &video, nil
}

// Upload writes the payload first, then the metadata commit record.
// If the second write fails the payload is left dangling; listings never
// surface it because the commit record is missing.
func (r *VideoRepository) Upload(ctx context.Context, video *domain.Video, payload []byte) (*domain.Video, error) {
	dataKey := blobstore.VideoDataKey(video.SchoolName, video.ClassCode, video.UserEmail, video.Title)
	metaKey := blobstore.VideoMetaKey(video.SchoolName, video.ClassCode, video.UserEmail, video.Title)
	video.VideoPath = dataKey

	if err := r.store.Put(ctx, dataKey, payload, video.ContentType); err != nil {
		return nil, fmt.Errorf("writing payload %s: %w", dataKey, err)
	}

	data, err := json.Marshal(video)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata %s: %w", metaKey, err)
	}
	if err := r.store.Put(ctx, metaKey, data, recordContentType); err != nil {
		return nil, fmt.Errorf("writing metadata %s: %w", metaKey, err)
	}

	r.logger.Info().
		Str("key", metaKey).
		Str("email", video.UserEmail).
		Str("class_code", video.ClassCode).
		Int("size", len(payload)).
		Msg("video uploaded")

	return video, nil
}

// UpdateMeta rewrites a metadata record in place.
func (r *VideoRepository) UpdateMeta(ctx context.Context, video *domain.Video) error {
	metaKey := blobstore.VideoMetaKey(video.SchoolName, video.ClassCode, video.UserEmail, video.Title)
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("encoding metadata %s: %w", metaKey, err)
	}
	if err := r.store.Put(ctx, metaKey, data, recordContentType); err != nil {
		return fmt.Errorf("writing metadata %s: %w", metaKey, err)
	}
	return nil
}

// Delete removes a video, metadata record first.
func (r *VideoRepository) Delete(ctx context.Context, school, classCode, email, title string) error {
	metaKey := blobstore.VideoMetaKey(school, classCode, email, title)
	dataKey := blobstore.VideoDataKey(school, classCode, email, title)

	exists, err := r.store.Head(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("checking %s: %w", metaKey, err)
	}
	if !exists {
		return repository.ErrNotFound
	}

	if err := r.store.Delete(ctx, metaKey); err != nil {
		return fmt.Errorf("deleting metadata %s: %w", metaKey, err)
	}
	if err := r.store.Delete(ctx, dataKey); err != nil {
		return fmt.Errorf("deleting payload %s: %w", dataKey, err)
	}
	return nil
}

// DeleteByOwner removes every video owned by the email within a school.
// Best effort: one failed deletion does not stop the sweep.
func (r *VideoRepository) DeleteByOwner(ctx context.Context, school, email string) (deleted, failed int, err error) {
	keys, err := r.store.List(ctx, blobstore.SchoolPrefix(school))
	if err != nil {
		return 0, 0, fmt.Errorf("listing %s: %w", school, err)
	}

	for _, key := range keys {
		if !blobstore.IsMetaKey(key) {
			continue
		}
		obj, err := r.store.Get(ctx, key)
		if err != nil {
			failed++
			continue
		}
		var video domain.Video
		if err := json.Unmarshal(obj.Data, &video); err != nil {
			continue
		}
		if video.UserEmail != email {
			continue
		}

		if err := r.store.Delete(ctx, key); err != nil {
			failed++
			continue
		}
		dataKey := video.VideoPath
		if dataKey == "" {
			dataKey = blobstore.DataKeyForMeta(key)
		}
		if err := r.store.Delete(ctx, dataKey); err != nil {
			failed++
			continue
		}
		deleted++
	}

	if failed > 0 {
		r.logger.Warn().
			Str("email", email).
			Int("deleted", deleted).
			Int("failed", failed).
			Msg("video cascade completed with failures")
	}

	return deleted, failed, nil
}

// Ensure VideoRepository implements repository.VideoRepository.
var _ repository.VideoRepository = (*VideoRepository)(nil)
