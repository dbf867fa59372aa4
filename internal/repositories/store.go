package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/passkeyd/internal/models"
	"gorm.io/gorm"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type VaultStore interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Vault, error)
	Create(ctx context.Context, vault *models.Vault) error
	// Update replaces ciphertext and iv and bumps the version in one statement.
	// A non-nil expectedVersion must match the stored version or ErrVersionMismatch is returned.
	Update(ctx context.Context, userID uuid.UUID, encryptedData, iv string, expectedVersion *int) (*models.Vault, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Stores groups the stores bound to one unit of work.
type Stores struct {
	Users  UserStore
	Vaults VaultStore
}

// UnitOfWork runs fn inside a transaction scoped to a single request. The
// transaction commits when fn returns nil and rolls back on error or panic.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(s Stores) error) error
}

type GormUnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(s Stores) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Stores{
			Users:  NewUserRepository(tx),
			Vaults: NewVaultRepository(tx),
		})
	})
}
