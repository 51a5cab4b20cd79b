package logpath

import (
	"fmt"

	"github.com/google/uuid"
)

// LastCheckpointFilename is the checkpoint hint file at the log root.
const LastCheckpointFilename = "_last_checkpoint"

// SidecarDirname is the directory under the log root holding sidecar files.
const SidecarDirname = "_sidecars"

func CommitFilename(version uint64) string {
	return fmt.Sprintf("%020d.json", version)
}

func SinglePartCheckpointFilename(version uint64) string {
	return fmt.Sprintf("%020d.checkpoint.parquet", version)
}

func UUIDCheckpointFilename(version uint64, id uuid.UUID, extension string) string {
	return fmt.Sprintf("%020d.checkpoint.%s.%s", version, id, extension)
}

func MultiPartCheckpointFilename(version uint64, part, numParts uint32) string {
	return fmt.Sprintf("%020d.checkpoint.%010d.%010d.parquet", version, part, numParts)
}

func CompactionFilename(lo, hi uint64) string {
	return fmt.Sprintf("%020d.%020d.compacted.json", lo, hi)
}

func CRCFilename(version uint64) string {
	return fmt.Sprintf("%020d.crc", version)
}
