package storage

import (
	"errors"
	"fmt"

	"github.com/username/easyledger/backend/src/models"
)

var (
	// ErrBackend marks storage-layer faults: I/O failure, connection loss,
	// unreadable documents.
	ErrBackend = errors.New("storage backend failure")

	// ErrInvalidReference is returned when a transaction points at an
	// account or category that does not exist.
	ErrInvalidReference = errors.New("transaction references unknown account or category")

	// ErrConflict is returned when an explicitly supplied id is taken.
	ErrConflict = errors.New("record id already exists")

	ErrInvalidBackup      = models.ErrInvalidBackup
	ErrUnsupportedVersion = models.ErrUnsupportedVersion
)

// BackendError wraps err as a storage fault with a short description of the
// failed step. A nil err yields nil.
func BackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}
