package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// ReaderOptions configures Read.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Read decodes a snapshot from r with strict validation.
func Read(r io.Reader) (*Snapshot, error) {
	return ReadWithOptions(r, ReaderOptions{ValidationLevel: ValidationStrict})
}

// ReadWithOptions decodes a snapshot from r.
func ReadWithOptions(r io.Reader, opts ReaderOptions) (*Snapshot, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if !bytes.Equal(fixed[0:4], []byte(MagicBytes)) {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	if dataSize > MaxControlCount*(1<<20)*valueSize {
		return nil, &ValidationError{Err: ErrOutOfBounds, Details: fmt.Sprintf("data size %d", dataSize)}
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	if pad := padding(FixedHeaderSize + int64(headerSize)); pad > 0 {
		if _, err := io.CopyN(io.Discard, r, pad); err != nil {
			return nil, fmt.Errorf("failed to skip padding: %w", err)
		}
	}
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	if !opts.SkipChecksumValidation && sha256.Sum256(data) != stored {
		return nil, ErrChecksumMismatch
	}
	//nolint:gosec // G115: dataSize is bounded above
	if err := ValidateHeader(&header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	s := &Snapshot{
		CreatedAt:  header.CreatedAt,
		Controls:   make([]Entry, len(header.Controls)),
		Metadata:   header.Metadata,
		Checkpoint: header.Checkpoint,
	}
	for i, c := range header.Controls {
		if c.Offset < 0 || c.Size < 0 || c.Offset+c.Size > int64(len(data)) {
			return nil, &ValidationError{Err: ErrOutOfBounds, Control: c.Name, Details: "unchecked header"}
		}
		raw := data[c.Offset : c.Offset+c.Size]
		vals := make([]float64, len(raw)/valueSize)
		for k := range vals {
			vals[k] = math.Float64frombits(binary.LittleEndian.Uint64(raw[k*valueSize:]))
		}
		s.Controls[i] = Entry{Name: c.Name, Kind: c.Kind, Space: c.Space, Values: vals}
	}
	return s, nil
}

// Load reads the snapshot stored at path.
func Load(path string) (*Snapshot, error) {
	//nolint:gosec // G304: the path is chosen by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}
