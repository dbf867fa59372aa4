package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vault holds the single encrypted blob of a user. EncryptedData and IV are
// opaque to the server. Version starts at 1 and grows by one per update.
type Vault struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	User          *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	EncryptedData string    `json:"encrypted_data" gorm:"type:text;not null"`
	IV            string    `json:"iv" gorm:"not null"`
	Version       int       `json:"version" gorm:"not null;default:1"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (v *Vault) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Version == 0 {
		v.Version = 1
	}
	return nil
}
