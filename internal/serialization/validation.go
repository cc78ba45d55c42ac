package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize     = 16 * 1024 * 1024 // maximum header size
	MaxControlCount   = 10_000           // maximum number of controls in a file
	MaxControlNameLen = 256              // maximum control name length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and counts but not offsets.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateOffsets checks for overlapping control offsets, sizes that are not
// a whole number of values, and out-of-bounds regions.
func ValidateOffsets(controls []ControlMeta, dataSize int64) error {
	sorted := make([]ControlMeta, len(controls))
	copy(sorted, controls)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, c := range sorted {
		if c.Offset < 0 || c.Size < 0 || c.Size%valueSize != 0 {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Control: c.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", c.Offset, c.Size),
			}
		}
		if c.Offset+c.Size > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Control: c.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", c.Offset, c.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if c.Offset+c.Size > next.Offset {
				return &ValidationError{
					Err:      ErrOffsetOverlap,
					Control:  c.Name,
					Control2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						c.Offset, c.Offset+c.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateName checks that name could be an identifier in a problem file.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxControlNameLen {
		return &ValidationError{
			Err:     ErrInvalidName,
			Control: name,
			Details: fmt.Sprintf("length %d not in [1, %d]", len(name), MaxControlNameLen),
		}
	}
	if i := strings.IndexFunc(name, func(r rune) bool {
		return r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9')
	}); i >= 0 {
		return &ValidationError{
			Err:     ErrInvalidName,
			Control: name,
			Details: fmt.Sprintf("unexpected character at %d", i),
		}
	}
	return nil
}

// ValidateHeader checks the header against the data section size.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Controls) > MaxControlCount {
		return &ValidationError{
			Err:     ErrTooManyControls,
			Details: fmt.Sprintf("got %d, max %d", len(h.Controls), MaxControlCount),
		}
	}
	seen := make(map[string]bool, len(h.Controls))
	for _, c := range h.Controls {
		if err := ValidateName(c.Name); err != nil {
			return err
		}
		if seen[c.Name] {
			return &ValidationError{Err: ErrInvalidName, Control: c.Name, Details: "duplicate"}
		}
		seen[c.Name] = true
		if c.Kind != KindField && c.Kind != KindConstant {
			return &ValidationError{Err: ErrInvalidName, Control: c.Name, Details: fmt.Sprintf("unknown kind %q", c.Kind)}
		}
	}
	if level == ValidationStrict {
		return ValidateOffsets(h.Controls, dataSize)
	}
	return nil
}
