package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/passkeyd/internal/models"
	"github.com/rohits-web03/passkeyd/internal/repositories"
	"go.uber.org/zap"
)

// ExportURLExpiry is how long a presigned vault export link stays valid.
const ExportURLExpiry = 15 * time.Minute

// VaultArchive stores versioned copies of vault ciphertext outside the database.
type VaultArchive interface {
	Put(ctx context.Context, vault *models.Vault) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	Purge(ctx context.Context, userID uuid.UUID) error
}

// VaultService enforces one vault per user and the version counter. Every
// method is scoped by the user id taken from the verified token.
type VaultService struct {
	uow     repositories.UnitOfWork
	archive VaultArchive
	log     *zap.Logger
}

// NewVaultService builds the service. archive may be nil to disable archiving.
func NewVaultService(uow repositories.UnitOfWork, archive VaultArchive, log *zap.Logger) *VaultService {
	return &VaultService{uow: uow, archive: archive, log: log}
}

func (s *VaultService) Get(ctx context.Context, userID uuid.UUID) (*models.Vault, error) {
	var vault *models.Vault
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		var err error
		vault, err = st.Vaults.FindByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, vaultError("get vault", err)
	}
	return vault, nil
}

// Create stores the first vault of the user at version 1.
func (s *VaultService) Create(ctx context.Context, userID uuid.UUID, encryptedData, iv string) (*models.Vault, error) {
	if encryptedData == "" || iv == "" {
		return nil, fmt.Errorf("%w: encrypted_data and iv are required", ErrValidation)
	}

	vault := &models.Vault{
		UserID:        userID,
		EncryptedData: encryptedData,
		IV:            iv,
	}
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		// The token may outlive its account.
		if _, err := st.Users.FindByID(ctx, userID); errors.Is(err, repositories.ErrNotFound) {
			return ErrUnauthorized
		} else if err != nil {
			return err
		}
		if err := st.Vaults.Create(ctx, vault); err != nil {
			return err
		}
		stored, err := st.Vaults.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		vault = stored
		return nil
	})
	if errors.Is(err, repositories.ErrConflict) {
		return nil, fmt.Errorf("%w: vault already exists, use update", ErrConflict)
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, vaultError("create vault", err)
	}

	s.archiveVersion(ctx, vault)
	return vault, nil
}

// Update replaces ciphertext and iv and increments the version by one. With a
// nil expectedVersion the last writer wins; otherwise a stale version is a conflict.
func (s *VaultService) Update(ctx context.Context, userID uuid.UUID, encryptedData, iv string, expectedVersion *int) (*models.Vault, error) {
	if encryptedData == "" || iv == "" {
		return nil, fmt.Errorf("%w: encrypted_data and iv are required", ErrValidation)
	}

	var vault *models.Vault
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		var err error
		vault, err = st.Vaults.Update(ctx, userID, encryptedData, iv, expectedVersion)
		return err
	})
	if errors.Is(err, repositories.ErrVersionMismatch) {
		return nil, fmt.Errorf("%w: vault was modified, expected version %d is stale", ErrConflict, *expectedVersion)
	}
	if err != nil {
		return nil, vaultError("update vault", err)
	}

	s.archiveVersion(ctx, vault)
	return vault, nil
}

// Delete removes the vault record only; the user stays.
func (s *VaultService) Delete(ctx context.Context, userID uuid.UUID) error {
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		return st.Vaults.Delete(ctx, userID)
	})
	if err != nil {
		return vaultError("delete vault", err)
	}

	purgeArchive(ctx, s.archive, s.log, userID)
	return nil
}

// ExportURL returns a short-lived download link for the archived current version.
func (s *VaultService) ExportURL(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.archive == nil {
		return "", fmt.Errorf("%w: vault export is not configured", ErrNotFound)
	}

	vault, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	key := repositories.SnapshotKey(userID, vault.Version)
	exists, err := s.archive.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check snapshot: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: no archived copy of version %d", ErrNotFound, vault.Version)
	}

	return s.archive.PresignGet(ctx, key, ExportURLExpiry)
}

// archiveVersion copies a committed vault version to the archive. The
// database row is authoritative, so failures are logged only.
func (s *VaultService) archiveVersion(ctx context.Context, vault *models.Vault) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Put(ctx, vault); err != nil {
		s.log.Warn("vault archive failed",
			zap.String("user_id", vault.UserID.String()),
			zap.Int("version", vault.Version),
			zap.Error(err),
		)
	}
}

func purgeArchive(ctx context.Context, archive VaultArchive, log *zap.Logger, userID uuid.UUID) {
	if archive == nil {
		return
	}
	if err := archive.Purge(ctx, userID); err != nil {
		log.Warn("vault archive purge failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func vaultError(op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: vault not found", ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
