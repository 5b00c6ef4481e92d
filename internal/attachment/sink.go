package attachment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sink durably stores attachment bytes under a sanitized name. Storing a
// name that already exists overwrites it.
type Sink interface {
	Store(ctx context.Context, name string, content []byte) error
}

// StorageError reports an upload that did not complete. The attachment is
// considered lost for the run that produced it.
type StorageError struct {
	Backend string
	Name    string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s via %s: %v", e.Name, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError checks whether an error is a storage failure.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid object name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("object name %q contains a path separator", name)
	}
	return nil
}
