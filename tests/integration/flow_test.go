// Package integration provides end-to-end tests for ClassReel against a
// real S3-compatible bucket (MinIO or AWS). Run with a store reachable at
// CLASSREEL_TEST_ENDPOINT; skipped in short mode.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classreel/classreel/internal/blobstore"
	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/license"
	"github.com/classreel/classreel/internal/lock"
	"github.com/classreel/classreel/internal/repository/blob"
	"github.com/classreel/classreel/internal/service"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func testS3Config(bucket string) config.S3Config {
	return config.S3Config{
		Endpoint:        getEnv("CLASSREEL_TEST_ENDPOINT", "http://localhost:9000"),
		Region:          getEnv("CLASSREEL_TEST_REGION", "us-east-1"),
		Bucket:          bucket,
		AccessKeyID:     getEnv("CLASSREEL_TEST_ACCESS_KEY_ID", "minioadmin"),
		SecretAccessKey: getEnv("CLASSREEL_TEST_SECRET_ACCESS_KEY", "minioadmin"),
		UsePathStyle:    true,
	}
}

// newTestBucket creates a throwaway bucket and returns a store bound to it.
func newTestBucket(t *testing.T) *blobstore.S3Store {
	t.Helper()
	ctx := context.Background()

	cfg := testS3Config("classreel-test-" + time.Now().Format("20060102150405"))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	require.NoError(t, err)

	t.Cleanup(func() {
		// Best-effort cleanup; leftover objects keep the bucket around.
		paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{Bucket: aws.String(cfg.Bucket)})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return
			}
			for _, obj := range page.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(cfg.Bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(cfg.Bucket)})
	})

	store, err := blobstore.NewS3Store(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))

	return store
}

func newTestServices(t *testing.T, store blobstore.Store) (*service.UserService, *service.VideoService) {
	t.Helper()
	logger := zerolog.Nop()

	userRepo := blob.NewUserRepository(store, nil, 0, logger)
	videoRepo := blob.NewVideoRepository(store, config.ListingConfig{Mode: "strict", PresignExpiry: time.Hour}, logger)

	validator := license.NewValidator(config.LicenseConfig{
		Limits:      map[string]int{"3399": 20, "1185": 5},
		StudentKeys: []string{"3399"},
		TeacherKeys: []string{"1185"},
	})
	ledger := license.NewScanLedger(userRepo, validator)
	locker := lock.NewMemoryLocker()

	users := service.NewUserService(userRepo, videoRepo, validator, ledger, locker, 30*time.Second, nil, nil, logger)
	videos := service.NewVideoService(videoRepo, userRepo, locker, 30*time.Second, nil, logger)
	return users, videos
}

func TestEndToEndFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store := newTestBucket(t)
	users, videos := newTestServices(t, store)
	ctx := context.Background()

	// Register a student and a teacher at the same school.
	_, err := users.Register(ctx, service.RegisterInput{
		Email:       "student@school.org",
		FirstName:   "Alex",
		Password:    "correct-horse",
		AccountType: domain.AccountTypeStudent,
		SchoolName:  "Springfield High",
		LicenseKey:  "3399",
	})
	require.NoError(t, err)

	_, err = users.Register(ctx, service.RegisterInput{
		Email:       "teacher@school.org",
		FirstName:   "Sam",
		Password:    "battery-staple",
		AccountType: domain.AccountTypeTeacher,
		SchoolName:  "Springfield High",
		LicenseKey:  "1185",
	})
	require.NoError(t, err)

	// Duplicate registration is rejected.
	_, err = users.Register(ctx, service.RegisterInput{
		Email:       "student@school.org",
		FirstName:   "Alex",
		Password:    "correct-horse",
		AccountType: domain.AccountTypeStudent,
		SchoolName:  "Springfield High",
		LicenseKey:  "3399",
	})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)

	// Authentication round trip.
	_, err = users.Authenticate(ctx, "student@school.org", "correct-horse")
	require.NoError(t, err)
	_, err = users.Authenticate(ctx, "student@school.org", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// Both join the same class.
	_, err = users.UpdateClassCodes(ctx, "student@school.org", "MATH101", domain.ClassCodeAdd)
	require.NoError(t, err)
	_, err = users.UpdateClassCodes(ctx, "teacher@school.org", "MATH101", domain.ClassCodeAdd)
	require.NoError(t, err)

	// Student uploads a video.
	_, err = videos.Upload(ctx, service.UploadInput{
		Email:     "student@school.org",
		Title:     "Fractions",
		Subject:   "Math",
		ClassCode: "MATH101",
		Filename:  "fractions.mp4",
		Payload:   []byte("not really a video"),
	})
	require.NoError(t, err)

	// Same title again is rejected.
	_, err = videos.Upload(ctx, service.UploadInput{
		Email:     "student@school.org",
		Title:     "Fractions",
		ClassCode: "MATH101",
		Payload:   []byte("other bytes"),
	})
	require.ErrorIs(t, err, domain.ErrDuplicateTitle)

	// Both the student and the teacher see it, with a working presigned URL.
	entries, err := videos.List(ctx, "student@school.org")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Fractions", entries[0].Title)
	require.NotEmpty(t, entries[0].VideoURL)
	require.True(t, entries[0].ExpiresAt.After(time.Now()))

	entries, err = videos.List(ctx, "teacher@school.org")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Viewed flag round trip.
	_, err = videos.MarkViewed(ctx, "Springfield High", "MATH101", "student@school.org", "Fractions")
	require.NoError(t, err)
	entries, err = videos.List(ctx, "student@school.org")
	require.NoError(t, err)
	require.True(t, entries[0].Viewed)

	// Deleting the student removes the account and its videos.
	out, err := users.Delete(ctx, "student@school.org")
	require.NoError(t, err)
	require.Equal(t, 1, out.VideosDeleted)

	_, err = users.Get(ctx, "student@school.org")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	entries, err = videos.List(ctx, "teacher@school.org")
	require.NoError(t, err)
	require.Empty(t, entries)
}
