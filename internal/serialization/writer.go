package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Version is written into every header.
const Version = "0.1.0"

// Write encodes s to w.
func Write(w io.Writer, s *Snapshot) error {
	header := Header{
		FormatVersion:   FormatVersion,
		FormgradVersion: Version,
		CreatedAt:       s.CreatedAt,
		Controls:        make([]ControlMeta, 0, len(s.Controls)),
		Metadata:        s.Metadata,
		Checkpoint:      s.Checkpoint,
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data []byte
	for _, e := range s.Controls {
		if err := ValidateName(e.Name); err != nil {
			return err
		}
		header.Controls = append(header.Controls, ControlMeta{
			Name:   e.Name,
			Kind:   e.Kind,
			Space:  e.Space,
			Offset: int64(len(data)),
			Size:   int64(len(e.Values) * valueSize),
		})
		for _, v := range e.Values {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
	}
	if err := ValidateHeader(&header, int64(len(data)), ValidationNormal); err != nil {
		return err
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Checkpoint != nil {
		flags |= FlagHasCheckpoint
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	// The checksum covers the control values only; the JSON header is
	// validated structurally on read.
	sum := sha256.Sum256(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if pad := padding(int64(FixedHeaderSize + len(headerJSON))); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// Save writes s to path, replacing any existing file.
func Save(path string, s *Snapshot) (err error) {
	//nolint:gosec // G304: the path is chosen by the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()
	return Write(f, s)
}
