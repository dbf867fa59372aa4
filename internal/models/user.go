package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account identity. Salt is client generated and returned verbatim;
// AuthKeyHash is the server-side slow hash of the client derived auth key.
type User struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email       string     `json:"email" gorm:"uniqueIndex;not null"`
	Salt        string     `json:"-" gorm:"not null"`
	AuthKeyHash string     `json:"-" gorm:"not null"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserSummary is the public view of a User.
type UserSummary struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}
