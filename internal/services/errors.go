package services

import (
	"errors"

	"github.com/staysignal/backend/internal/store"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is an illegal response lifecycle transition.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransition is an illegal feedback status transition.
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrGenerationFailed   = errors.New("draft generation failed")
	ErrRegenerationFailed = errors.New("decision recorded but no new draft could be generated")
	ErrValidation         = errors.New("validation error")
	// ErrConflict means a concurrent decision won the race.
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// translateStoreErr maps repository errors onto service errors.
func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}
