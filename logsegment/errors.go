package logsegment

import (
	"errors"
	"fmt"
)

// ErrNoLogFiles means the log directory holds nothing usable for the
// requested version: either the table does not exist or the listing window
// was empty.
var ErrNoLogFiles = errors.New("no log files found")

// ErrMissingProtocol and ErrMissingMetadata mean a full replay finished
// without finding the corresponding action. A readable table always carries
// both, so this indicates a corrupt or truncated log.
var (
	ErrMissingProtocol = errors.New("no protocol action found in log")
	ErrMissingMetadata = errors.New("no metadata action found in log")
)

// ErrMissingSidecarColumn is a caller contract violation: a checkpoint read
// schema that includes file actions must include the sidecar column, since
// without it there is no way to know whether sidecar indirection applies.
var ErrMissingSidecarColumn = errors.New("checkpoint read schema requests file actions without the sidecar column")

// NonContiguousLogError reports a gap in the commit sequence.
type NonContiguousLogError struct {
	Versions []uint64
}

func (e *NonContiguousLogError) Error() string {
	return fmt.Sprintf("gap in commit log: versions %v are not contiguous", e.Versions)
}

// InvalidCheckpointHintError reports a _last_checkpoint file whose declared
// part count disagrees with the checkpoint files present at that version.
// Distinguished from the checkpoint being absent entirely, which falls back
// to a full listing.
type InvalidCheckpointHintError struct {
	HintVersion uint64
	HintParts   uint32
	FoundParts  int
}

func (e *InvalidCheckpointHintError) Error() string {
	return fmt.Sprintf(
		"_last_checkpoint names a checkpoint at version %d with %d parts but %d parts were found",
		e.HintVersion, e.HintParts, e.FoundParts)
}

// VersionNotFoundError reports that a requested target version could not be
// reached with the files present in the log.
type VersionNotFoundError struct {
	Requested uint64
	Resolved  uint64
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("requested version %d but log only resolves to version %d", e.Requested, e.Resolved)
}

// StartVersionMismatchError reports that a table-changes request could not
// start at the requested version.
type StartVersionMismatchError struct {
	Requested uint64
	First     *uint64
}

func (e *StartVersionMismatchError) Error() string {
	if e.First == nil {
		return fmt.Sprintf("no commit file found at start version %d", e.Requested)
	}
	return fmt.Sprintf("first available commit is version %d, not requested start version %d", *e.First, e.Requested)
}
