package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("control offsets overlap")
	ErrOutOfBounds        = errors.New("control extends beyond data section")
	ErrTooManyControls    = errors.New("too many controls in file")
	ErrInvalidName        = errors.New("invalid control name")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Err      error  // One of the sentinel errors above
	Control  string // Primary control name involved
	Control2 string // Secondary control name (for overlap errors)
	Details  string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Control2 != "" {
		return fmt.Sprintf("%v: controls %q and %q: %s", e.Err, e.Control, e.Control2, e.Details)
	}
	if e.Control != "" {
		return fmt.Sprintf("%v: control %q: %s", e.Err, e.Control, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error { return e.Err }
