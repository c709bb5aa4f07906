package service

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by the services. Handlers map these to responses;
// lower-layer errors are wrapped so errors.Is reaches both.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid or expired share token")
	ErrValidation       = errors.New("validation failed")
	ErrStorageTransient = errors.New("storage temporarily unavailable")
	ErrStorageIntegrity = errors.New("storage integrity violation")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
