package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/passkeyd/internal/models"
	"gorm.io/gorm"
)

type VaultRepository struct {
	db *gorm.DB
}

func NewVaultRepository(db *gorm.DB) *VaultRepository {
	return &VaultRepository{db: db}
}

func (r *VaultRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Vault, error) {
	var vault models.Vault
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&vault).Error; err != nil {
		return nil, translate(err)
	}
	return &vault, nil
}

// Create inserts the first vault of a user. A second vault yields ErrConflict.
func (r *VaultRepository) Create(ctx context.Context, vault *models.Vault) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Vault{}).
		Where("user_id = ?", vault.UserID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}
	vault.Version = 1
	return translate(r.db.WithContext(ctx).Create(vault).Error)
}

func (r *VaultRepository) Update(ctx context.Context, userID uuid.UUID, encryptedData, iv string, expectedVersion *int) (*models.Vault, error) {
	q := r.db.WithContext(ctx).Model(&models.Vault{}).Where("user_id = ?", userID)
	if expectedVersion != nil {
		q = q.Where("version = ?", *expectedVersion)
	}
	res := q.Updates(map[string]any{
		"encrypted_data": encryptedData,
		"iv":             iv,
		"version":        gorm.Expr("version + 1"),
		"updated_at":     time.Now(),
	})
	if res.Error != nil {
		return nil, translate(res.Error)
	}

	if res.RowsAffected == 0 {
		if _, err := r.FindByUser(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrVersionMismatch
	}
	return r.FindByUser(ctx, userID)
}

func (r *VaultRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Vault{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
