package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rohits-web03/passkeyd/internal/config"
	"github.com/rohits-web03/passkeyd/internal/utils"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2Prefix     = "$argon2id$"
	argon2SaltLength = 16
	argon2KeyLength  = 32
)

// Hasher turns the client derived auth key hash into the value stored in
// users.auth_key_hash. The input is first reduced to a hex SHA-256 digest so
// bcrypt's 72 byte input limit never truncates it.
//
// New hashes use the configured algorithm. Verify accepts hashes produced by
// either algorithm, so switching HASH_ALGORITHM does not lock out old accounts.
type Hasher struct {
	algorithm   string
	bcryptCost  int
	memory      uint32
	time        uint32
	parallelism uint8
}

func NewHasher(cfg config.HashConfig) (*Hasher, error) {
	switch cfg.Algorithm {
	case config.HashBcrypt:
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
		}
	case config.HashArgon2id:
		if cfg.Argon2MemoryKB == 0 || cfg.Argon2Time == 0 || cfg.Argon2Parallelism == 0 {
			return nil, errors.New("argon2id parameters must be positive")
		}
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", cfg.Algorithm)
	}

	return &Hasher{
		algorithm:   cfg.Algorithm,
		bcryptCost:  cfg.BcryptCost,
		memory:      cfg.Argon2MemoryKB,
		time:        cfg.Argon2Time,
		parallelism: cfg.Argon2Parallelism,
	}, nil
}

func prehash(clientHash string) []byte {
	sum := sha256.Sum256([]byte(clientHash))
	return []byte(hex.EncodeToString(sum[:]))
}

// Hash derives the server-side hash. Every call embeds a fresh random salt.
func (h *Hasher) Hash(clientHash string) (string, error) {
	if h.algorithm == config.HashArgon2id {
		return h.hashArgon2(prehash(clientHash))
	}

	out, err := bcrypt.GenerateFromPassword(prehash(clientHash), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

// Verify reports whether candidate matches stored. Malformed stored hashes never match.
func (h *Hasher) Verify(candidate, stored string) bool {
	if strings.HasPrefix(stored, argon2Prefix) {
		return verifyArgon2(prehash(candidate), stored)
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), prehash(candidate)) == nil
}

func (h *Hasher) hashArgon2(input []byte) (string, error) {
	salt, err := utils.RandomBytes(argon2SaltLength)
	if err != nil {
		return "", err
	}
	key := argon2.IDKey(input, salt, h.time, h.memory, h.parallelism, argon2KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifyArgon2 parses a PHC string of the form
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
func verifyArgon2(input []byte, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey(input, salt, iterations, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
