package blob

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classreel/classreel/internal/blobstore"
	"github.com/classreel/classreel/internal/cache/memory"
	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/repository"
)

func newTestUserRepo(t *testing.T) (*UserRepository, *blobstore.MemoryStore) {
	t.Helper()
	store := blobstore.NewMemoryStore()
	return NewUserRepository(store, nil, 0, zerolog.Nop()), store
}

func storedUser(email, licenseKey string) *domain.User {
	return domain.NewUser(email, "Alex", "$2a$10$hash", domain.AccountTypeStudent, "Springfield High", licenseKey)
}

func TestUserRepository_CreateGet(t *testing.T) {
	repo, _ := newTestUserRepo(t)
	ctx := context.Background()

	user := storedUser("student@example.com", "3399")
	user.ClassCodes = []string{"MATH101"}
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.Get(ctx, "student@example.com")
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)
	require.Equal(t, user.FirstName, got.FirstName)
	require.Equal(t, user.PasswordHash, got.PasswordHash)
	require.Equal(t, []string{"MATH101"}, got.ClassCodes)
}

func TestUserRepository_Get_NotFound(t *testing.T) {
	repo, _ := newTestUserRepo(t)

	_, err := repo.Get(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_Get_MalformedRecord(t *testing.T) {
	repo, store := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, blobstore.UserKey("broken@example.com"), []byte("{not json"), "application/json"))

	_, err := repo.Get(ctx, "broken@example.com")
	require.ErrorIs(t, err, domain.ErrMalformedRecord)
}

func TestUserRepository_Get_MissingRequiredFields(t *testing.T) {
	repo, store := newTestUserRepo(t)
	ctx := context.Background()

	// Valid JSON but not a valid user record.
	require.NoError(t, store.Put(ctx, blobstore.UserKey("empty@example.com"), []byte(`{"email":"empty@example.com"}`), "application/json"))

	_, err := repo.Get(ctx, "empty@example.com")
	require.ErrorIs(t, err, domain.ErrMalformedRecord)
}

func TestUserRepository_Get_NormalizesAccountType(t *testing.T) {
	repo, store := newTestUserRepo(t)
	ctx := context.Background()

	record := `{"email":"caps@example.com","firstName":"Alex","accountType":"Teacher","schoolName":"Springfield High"}`
	require.NoError(t, store.Put(ctx, blobstore.UserKey("caps@example.com"), []byte(record), "application/json"))

	got, err := repo.Get(ctx, "caps@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.AccountTypeTeacher, got.AccountType)
}

func TestUserRepository_List(t *testing.T) {
	repo, _ := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, storedUser("a@example.com", "3399")))
	require.NoError(t, repo.Create(ctx, storedUser("b@example.com", "7742")))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "a@example.com", users[0].Email)
	require.Equal(t, "b@example.com", users[1].Email)
}

func TestUserRepository_List_MalformedRecordPoisonsListing(t *testing.T) {
	repo, store := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, storedUser("good@example.com", "3399")))
	require.NoError(t, store.Put(ctx, blobstore.UserKey("broken@example.com"), []byte("{not json"), "application/json"))

	_, err := repo.List(ctx)
	require.ErrorIs(t, err, domain.ErrMalformedRecord)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, blobstore.UserKey("broken@example.com"), derr.Resource)
}

func TestUserRepository_Update(t *testing.T) {
	repo, _ := newTestUserRepo(t)
	ctx := context.Background()

	user := storedUser("student@example.com", "3399")
	require.NoError(t, repo.Create(ctx, user))

	user.AddClassCode("SCI202")
	require.NoError(t, repo.Update(ctx, user))

	got, err := repo.Get(ctx, "student@example.com")
	require.NoError(t, err)
	require.True(t, got.HasClassCode("SCI202"))
}

func TestUserRepository_Delete(t *testing.T) {
	repo, _ := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, storedUser("student@example.com", "3399")))
	require.NoError(t, repo.Delete(ctx, "student@example.com"))

	_, err := repo.Get(ctx, "student@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, repo.Delete(ctx, "student@example.com"), repository.ErrNotFound)
}

func TestUserRepository_Exists(t *testing.T) {
	repo, _ := newTestUserRepo(t)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "student@example.com")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, repo.Create(ctx, storedUser("student@example.com", "3399")))

	exists, err = repo.Exists(ctx, "student@example.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestUserRepository_CountByLicenseKey(t *testing.T) {
	repo, store := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, storedUser("a@example.com", "3399")))
	require.NoError(t, repo.Create(ctx, storedUser("b@example.com", "3399")))
	require.NoError(t, repo.Create(ctx, storedUser("c@example.com", "7742")))

	// Malformed records hold no slot and don't fail the count.
	require.NoError(t, store.Put(ctx, blobstore.UserKey("broken@example.com"), []byte("{not json"), "application/json"))

	count, err := repo.CountByLicenseKey(ctx, "3399")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = repo.CountByLicenseKey(ctx, "0000")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestUserRepository_CacheFrontsGet(t *testing.T) {
	store := blobstore.NewMemoryStore()
	cache := memory.NewCache()
	defer cache.Stop()
	repo := NewUserRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, storedUser("student@example.com", "3399")))

	// Remove the backing object; the cached record still serves reads.
	require.NoError(t, store.Delete(ctx, blobstore.UserKey("student@example.com")))

	got, err := repo.Get(ctx, "student@example.com")
	require.NoError(t, err)
	require.Equal(t, "student@example.com", got.Email)
}
