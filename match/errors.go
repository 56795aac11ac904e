package match

import (
	"errors"

	"github.com/google/uuid"
)

// Error kinds. Callers test them with errors.Is; the HTTP layer maps each to a status.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrDependencyFailure = errors.New("dependency failure")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// validID rejects identifiers that are not UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
