// Package logpath classifies _delta_log file names into structured
// descriptors. Parsing is pure: no I/O, and names outside the grammar are
// "not a log file" rather than errors so tolerant directory listings stay
// cheap.
package logpath

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"deltaglass.dev/deltaglass/storage"
)

type FileType int

const (
	Commit FileType = iota
	CompactedCommit
	SinglePartCheckpoint
	UUIDCheckpoint
	MultiPartCheckpoint
	CRC
	Unknown
)

func (t FileType) String() string {
	switch t {
	case Commit:
		return "commit"
	case CompactedCommit:
		return "compacted commit"
	case SinglePartCheckpoint:
		return "single-part checkpoint"
	case UUIDCheckpoint:
		return "uuid checkpoint"
	case MultiPartCheckpoint:
		return "multi-part checkpoint"
	case CRC:
		return "crc"
	default:
		return "unknown"
	}
}

// ParsedLogPath is one classified log file. Version is the file's version;
// for compacted commits it holds the low end of the range and CompactionHi
// the inclusive high end.
type ParsedLogPath struct {
	Location  storage.FileMeta
	Filename  string
	Extension string
	Version   uint64
	Type      FileType

	// CompactionHi is set for CompactedCommit.
	CompactionHi uint64

	// Part and NumParts are set for MultiPartCheckpoint. Parts are 1-based.
	Part     uint32
	NumParts uint32

	// UUID is set for UUIDCheckpoint.
	UUID string
}

func (p *ParsedLogPath) IsCheckpoint() bool {
	switch p.Type {
	case SinglePartCheckpoint, UUIDCheckpoint, MultiPartCheckpoint:
		return true
	default:
		return false
	}
}

func (p *ParsedLogPath) IsCommit() bool {
	return p.Type == Commit
}

// Parse classifies one listed file. The second return is false when the name
// is not a log file.
func Parse(meta storage.FileMeta) (*ParsedLogPath, bool) {
	filename := meta.Path
	if i := strings.LastIndexByte(filename, '/'); i >= 0 {
		filename = filename[i+1:]
	}
	if filename == "" {
		return nil, false
	}

	segments := strings.Split(filename, ".")
	version, ok := parseVersion(segments[0])
	if !ok {
		return nil, false
	}

	p := &ParsedLogPath{
		Location:  meta,
		Filename:  filename,
		Extension: segments[len(segments)-1],
		Version:   version,
	}

	switch {
	case len(segments) == 2 && segments[1] == "json":
		p.Type = Commit
	case len(segments) == 2 && segments[1] == "crc":
		p.Type = CRC
	case len(segments) == 3 && segments[1] == "checkpoint" && segments[2] == "parquet":
		p.Type = SinglePartCheckpoint
	case len(segments) == 4 && segments[1] == "checkpoint" && (segments[3] == "parquet" || segments[3] == "json"):
		if _, err := uuid.Parse(segments[2]); err != nil {
			return nil, false
		}
		p.Type = UUIDCheckpoint
		p.UUID = segments[2]
	case len(segments) == 5 && segments[1] == "checkpoint" && segments[4] == "parquet":
		part, okPart := parseCheckpointPart(segments[2])
		total, okTotal := parseCheckpointPart(segments[3])
		if !okPart || !okTotal || part == 0 || total == 0 || part > total {
			return nil, false
		}
		p.Type = MultiPartCheckpoint
		p.Part = part
		p.NumParts = total
	case len(segments) == 4 && segments[2] == "compacted" && segments[3] == "json":
		hi, ok := parseVersion(segments[1])
		if !ok || hi < version {
			return nil, false
		}
		p.Type = CompactedCommit
		p.CompactionHi = hi
	default:
		return nil, false
	}
	return p, true
}

// Compare orders paths by version ascending with a fixed tie-break rank among
// types at the same version. Used for grouping only; commit cover selection
// has its own range-aware logic.
func Compare(a, b *ParsedLogPath) int {
	if c := cmp.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(typeRank(a.Type), typeRank(b.Type)); c != 0 {
		return c
	}
	return strings.Compare(a.Filename, b.Filename)
}

func typeRank(t FileType) int {
	switch t {
	case CompactedCommit:
		return 0
	case Commit:
		return 1
	case SinglePartCheckpoint, UUIDCheckpoint, MultiPartCheckpoint:
		return 2
	case CRC:
		return 3
	default:
		return 4
	}
}

// parseVersion accepts exactly 20 decimal digits.
func parseVersion(s string) (uint64, bool) {
	if len(s) != 20 || !allDigits(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseCheckpointPart accepts exactly 10 decimal digits.
func parseCheckpointPart(s string) (uint32, bool) {
	if len(s) != 10 || !allDigits(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
