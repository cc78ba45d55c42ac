package serialization

import "time"

// Format constants.
const (
	MagicBytes      = "FGRD"
	FormatVersion   = 1
	HeaderAlignment = 64   // Data section alignment
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	valueSize       = 8    // float64
)

// Flags for the fixed header.
const (
	FlagHasMetadata   uint32 = 1 << 0 // custom metadata included
	FlagHasCheckpoint uint32 = 1 << 1 // optimizer run summary included
)

// Control kinds.
const (
	KindField    = "field"
	KindConstant = "constant"
)

// Header is the JSON header of a snapshot file.
type Header struct {
	FormatVersion   int               `json:"format_version"`
	FormgradVersion string            `json:"formgrad_version"`
	CreatedAt       time.Time         `json:"created_at"`
	Controls        []ControlMeta     `json:"controls"`
	Metadata        map[string]string `json:"metadata"`
	Checkpoint      *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta summarizes the optimization run that produced the snapshot.
type CheckpointMeta struct {
	Iterations      int            `json:"iterations"`
	Value           float64        `json:"value"`
	GradNorm        float64        `json:"grad_norm"`
	Converged       bool           `json:"converged"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config"`
}

// ControlMeta locates one control's values in the data section.
type ControlMeta struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`            // field, constant
	Space  string `json:"space,omitempty"` // DG0, P1, R for fields
	Offset int64  `json:"offset"`          // bytes from the start of the data section
	Size   int64  `json:"size"`            // bytes
}

// Entry is one control and its values.
type Entry struct {
	Name   string
	Kind   string
	Space  string
	Values []float64
}

// Snapshot is the in-memory form of a snapshot file.
type Snapshot struct {
	CreatedAt  time.Time
	Controls   []Entry
	Metadata   map[string]string
	Checkpoint *CheckpointMeta
}

// Entry returns the control named name.
func (s *Snapshot) Entry(name string) (Entry, bool) {
	for _, e := range s.Controls {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func padding(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}
