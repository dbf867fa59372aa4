package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")

	// Token failures are all ErrUnauthorized to callers that only check that.
	ErrTokenExpired          = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenMalformed        = fmt.Errorf("%w: token malformed", ErrUnauthorized)
	ErrTokenSignatureInvalid = fmt.Errorf("%w: token signature invalid", ErrUnauthorized)
)
