package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/passkeyd/internal/config"
	"github.com/rohits-web03/passkeyd/internal/models"
	"github.com/rohits-web03/passkeyd/internal/repositories"
	"github.com/rohits-web03/passkeyd/internal/repositories/repotest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeArchive records snapshots in memory.
type fakeArchive struct {
	mu       sync.Mutex
	objects  map[string]models.Vault
	purged   []uuid.UUID
	putErr   error
	purgeErr error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string]models.Vault{}}
}

func (f *fakeArchive) Put(_ context.Context, vault *models.Vault) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[repositories.SnapshotKey(vault.UserID, vault.Version)] = *vault
	return nil
}

func (f *fakeArchive) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeArchive) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	return "https://archive.example/" + key + "?expires=" + expires.String(), nil
}

func (f *fakeArchive) Purge(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return f.purgeErr
	}
	f.purged = append(f.purged, userID)
	return nil
}

type fixture struct {
	uow     *repositories.GormUnitOfWork
	auth    *AuthService
	vaults  *VaultService
	archive *fakeArchive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithArchive(t, newFakeArchive())
}

func newFixtureWithArchive(t *testing.T, archive *fakeArchive) *fixture {
	t.Helper()

	uow := repositories.NewUnitOfWork(repotest.NewDB(t))
	hasher, err := NewHasher(testHashConfig(config.HashBcrypt))
	require.NoError(t, err)
	tokens, err := NewTokenIssuer(testSecret, "HS256", time.Hour)
	require.NoError(t, err)

	var va VaultArchive
	if archive != nil {
		va = archive
	}
	auth, err := NewAuthService(uow, hasher, tokens, va, zap.NewNop(), 32)
	require.NoError(t, err)

	return &fixture{
		uow:     uow,
		auth:    auth,
		vaults:  NewVaultService(uow, va, zap.NewNop()),
		archive: archive,
	}
}

func (f *fixture) register(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := f.auth.Register(context.Background(), email, "H1", "U0FMVFNBTFRTQUxUU0FMVA==")
	require.NoError(t, err)
	return user
}

var errBoom = errors.New("boom")
