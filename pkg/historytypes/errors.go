// Package historytypes defines the error taxonomy shared by the history store and its callers.
package historytypes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that no conversation matched an identifier or path.
	// Commands treat it as an informational outcome, not a failure.
	ErrNotFound = errors.New("conversation not found")

	// ErrDestinationExists reports that an export target exists and overwrite was not requested.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrStoreIO reports that the storage substrate could not be read or written.
	// It aborts the whole operation.
	ErrStoreIO = errors.New("conversation store unavailable")
)

// DecodeStage names the layer of the storage codec that failed.
type DecodeStage string

const (
	// StageEnvelope is the outer layer: the stored JSON value holding the record text.
	StageEnvelope DecodeStage = "envelope"
	// StageRecord is the inner layer: the record text itself.
	StageRecord DecodeStage = "record"
)

// DecodeError reports a stored value that cannot be interpreted as a session record.
type DecodeError struct {
	Key   string
	Stage DecodeStage
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("decode %s for %q: %v", e.Stage, e.Key, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
