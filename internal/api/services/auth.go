package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/passkeyd/internal/models"
	"github.com/rohits-web03/passkeyd/internal/repositories"
	"github.com/rohits-web03/passkeyd/internal/utils"
	"go.uber.org/zap"
)

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// AuthService registers and authenticates users. It never sees the master
// password: clients send a hash derived from it, which is hashed again here.
type AuthService struct {
	uow           repositories.UnitOfWork
	hasher        *Hasher
	tokens        *TokenIssuer
	archive       VaultArchive
	log           *zap.Logger
	fakeSaltBytes int
	// dummyHash is verified against when the email is unknown so both login
	// failure branches do the same amount of work.
	dummyHash string
	now       func() time.Time
}

// NewAuthService wires the auth flow. archive may be nil.
func NewAuthService(uow repositories.UnitOfWork, hasher *Hasher, tokens *TokenIssuer, archive VaultArchive, log *zap.Logger, fakeSaltBytes int) (*AuthService, error) {
	seed, err := utils.RandomSalt(32)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("compute dummy hash: %w", err)
	}

	return &AuthService{
		uow:           uow,
		hasher:        hasher,
		tokens:        tokens,
		archive:       archive,
		log:           log,
		fakeSaltBytes: fakeSaltBytes,
		dummyHash:     dummy,
		now:           time.Now,
	}, nil
}

// FetchSalt returns the stored salt for email. Unknown emails get a freshly
// generated salt of the same encoding so callers cannot tell them apart.
func (s *AuthService) FetchSalt(ctx context.Context, email string) (string, error) {
	var salt string
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		user, err := st.Users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		salt = user.Salt
		return nil
	})

	switch {
	case err == nil:
		return salt, nil
	case errors.Is(err, repositories.ErrNotFound):
		return utils.RandomSalt(s.fakeSaltBytes)
	default:
		return "", fmt.Errorf("fetch salt: %w", err)
	}
}

// Register stores a new identity. salt is opaque and kept verbatim.
func (s *AuthService) Register(ctx context.Context, email, clientHash, salt string) (*models.User, error) {
	if email == "" || clientHash == "" || salt == "" {
		return nil, fmt.Errorf("%w: email, auth_key_hash and salt are required", ErrValidation)
	}

	serverHash, err := s.hasher.Hash(clientHash)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:       email,
		Salt:        salt,
		AuthKeyHash: serverHash,
	}
	err = s.uow.Do(ctx, func(st repositories.Stores) error {
		return st.Users.Create(ctx, user)
	})
	if errors.Is(err, repositories.ErrConflict) {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login checks clientHash for email and returns a fresh token. Unknown email
// and wrong key both yield ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, clientHash string) (*LoginResult, error) {
	var user *models.User
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		found, err := st.Users.FindByEmail(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			s.hasher.Verify(clientHash, s.dummyHash)
			return ErrUnauthorized
		}
		if err != nil {
			return err
		}

		if !s.hasher.Verify(clientHash, found.AuthKeyHash) {
			return ErrUnauthorized
		}

		now := s.now()
		if err := st.Users.TouchLastLogin(ctx, found.ID, now); err != nil {
			return err
		}
		found.LastLogin = &now
		user = found
		return nil
	})
	if errors.Is(err, ErrUnauthorized) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, s.tokens.TTL())
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// VerifyToken resolves a bearer token to a user id.
func (s *AuthService) VerifyToken(token string) (uuid.UUID, error) {
	return s.tokens.Verify(token)
}

// Me returns the authenticated user. A token for a deleted account is unauthorized.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user *models.User
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		var err error
		user, err = st.Users.FindByID(ctx, userID)
		return err
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// DeleteAccount removes the user together with their vault and archived snapshots.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	err := s.uow.Do(ctx, func(st repositories.Stores) error {
		if err := st.Vaults.Delete(ctx, userID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		return st.Users.Delete(ctx, userID)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	purgeArchive(ctx, s.archive, s.log, userID)
	s.log.Info("account deleted", zap.String("user_id", userID.String()))
	return nil
}
