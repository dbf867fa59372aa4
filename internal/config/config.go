package config

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	HashBcrypt   = "bcrypt"
	HashArgon2id = "argon2id"

	maxArgon2MemoryKB = 4 << 20 // 4 GiB

	// DefaultJWTSecret is only acceptable outside production.
	DefaultJWTSecret = "not-so-secret-now-is-it?"
)

// ArchiveConfig points at an S3 compatible bucket (AWS, R2, MinIO) used to
// keep versioned copies of vault ciphertext. Archiving is off when Bucket is empty.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

type HashConfig struct {
	Algorithm         string
	BcryptCost        int
	Argon2MemoryKB    uint32
	Argon2Time        uint32
	Argon2Parallelism uint8
}

type Config struct {
	DBDriver       string
	DBURL          string
	Port           string
	Environment    string
	JWTSecret      string
	JWTAlgorithm   string
	AccessTokenTTL time.Duration
	Hash           HashConfig
	FakeSaltBytes  int
	AllowedOrigins []string
	Archive        ArchiveConfig
}

// Load reads the environment, seeded from ENV_FILE (default .env) when present.
// Values already set in the process environment win over the file.
func Load() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found, using process environment")
	}

	return Config{
		DBDriver:       getEnv("DB_DRIVER", DriverPostgres),
		DBURL:          getEnv("DB_URL", ""),
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENV", "development"),
		JWTSecret:      getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTAlgorithm:   strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
		AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		Hash: HashConfig{
			Algorithm:         strings.ToLower(getEnv("HASH_ALGORITHM", HashBcrypt)),
			BcryptCost:        getInt("BCRYPT_COST", 12),
			Argon2MemoryKB:    uint32(uintOrZero(getInt("ARGON2_MEMORY_KB", 64*1024), math.MaxUint32)),
			Argon2Time:        uint32(uintOrZero(getInt("ARGON2_TIME", 3), math.MaxUint32)),
			Argon2Parallelism: uint8(uintOrZero(getInt("ARGON2_PARALLELISM", 2), math.MaxUint8)),
		},
		FakeSaltBytes:  getInt("FAKE_SALT_BYTES", 32),
		AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Archive: ArchiveConfig{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DBURL == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() && (c.JWTSecret == DefaultJWTSecret || len(c.JWTSecret) < 32) {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 32 bytes in production"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}

	switch c.Hash.Algorithm {
	case HashBcrypt, HashArgon2id:
	default:
		errs = append(errs, fmt.Errorf("unsupported HASH_ALGORITHM %q", c.Hash.Algorithm))
	}
	if c.Hash.BcryptCost < 4 || c.Hash.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d must be between 4 and 31", c.Hash.BcryptCost))
	}
	// Checked for every algorithm: verification accepts argon2id hashes either way.
	if c.Hash.Argon2Parallelism < 1 {
		errs = append(errs, errors.New("ARGON2_PARALLELISM must be between 1 and 255"))
	}
	if c.Hash.Argon2Time < 1 {
		errs = append(errs, errors.New("ARGON2_TIME must be at least 1"))
	}
	if m := uint64(c.Hash.Argon2MemoryKB); m < 8*uint64(c.Hash.Argon2Parallelism) || m > maxArgon2MemoryKB {
		errs = append(errs, fmt.Errorf("ARGON2_MEMORY_KB must be between 8*ARGON2_PARALLELISM and %d", maxArgon2MemoryKB))
	}
	if c.FakeSaltBytes < 16 {
		errs = append(errs, errors.New("FAKE_SALT_BYTES must be at least 16"))
	}

	if c.Archive.Enabled() && (c.Archive.AccessKeyID == "" || c.Archive.SecretAccessKey == "") {
		errs = append(errs, errors.New("archive credentials are required when ARCHIVE_BUCKET is set"))
	}

	return errors.Join(errs...)
}

func (c Config) CorsOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

// uintOrZero maps n outside [0, limit] to 0 so Validate reports it instead of
// the value silently wrapping on conversion.
func uintOrZero(n int, limit uint64) uint64 {
	if n < 0 || uint64(n) > limit {
		return 0
	}
	return uint64(n)
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
