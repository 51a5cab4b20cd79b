package logsegment

import (
	"fmt"
	"sort"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/storage"
)

// ListedLogFiles is a validated, partitioned view of one log directory
// listing: ascending commits, ascending compactions, the parts of the most
// recent complete checkpoint, and the most recent checksum summary file.
// Built once per listing call and immutable afterward.
type ListedLogFiles struct {
	AscendingCommitFiles     []*logpath.ParsedLogPath
	AscendingCompactionFiles []*logpath.ParsedLogPath
	CheckpointParts          []*logpath.ParsedLogPath
	LatestCRCFile            *logpath.ParsedLogPath
}

// NewListedLogFiles builds a ListedLogFiles from pre-partitioned slices.
// Callers must hand over sorted collections; ordering violations are
// programming errors and panic. Commit contiguity is a storage-level concern
// checked later at segment construction.
func NewListedLogFiles(
	commitFiles []*logpath.ParsedLogPath,
	compactionFiles []*logpath.ParsedLogPath,
	checkpointParts []*logpath.ParsedLogPath,
	crcFile *logpath.ParsedLogPath,
) *ListedLogFiles {
	for i := 1; i < len(commitFiles); i++ {
		if commitFiles[i].Version <= commitFiles[i-1].Version {
			panic(fmt.Sprintf("commit files not strictly ascending: %d then %d",
				commitFiles[i-1].Version, commitFiles[i].Version))
		}
	}
	for i := 1; i < len(compactionFiles); i++ {
		prev, cur := compactionFiles[i-1], compactionFiles[i]
		if cur.Version < prev.Version ||
			(cur.Version == prev.Version && cur.CompactionHi < prev.CompactionHi) {
			panic(fmt.Sprintf("compaction files not sorted by range: (%d,%d) then (%d,%d)",
				prev.Version, prev.CompactionHi, cur.Version, cur.CompactionHi))
		}
	}
	for _, part := range checkpointParts {
		if part.Version != checkpointParts[0].Version {
			panic(fmt.Sprintf("checkpoint parts span versions %d and %d",
				checkpointParts[0].Version, part.Version))
		}
	}

	return &ListedLogFiles{
		AscendingCommitFiles:     commitFiles,
		AscendingCompactionFiles: compactionFiles,
		CheckpointParts:          checkpointParts,
		LatestCRCFile:            crcFile,
	}
}

// rawListing is the unvalidated partition of one storage listing, keeping
// every checkpoint part grouped by version so hint validation can inspect
// incomplete groups.
type rawListing struct {
	commits           []*logpath.ParsedLogPath
	compactions       []*logpath.ParsedLogPath
	checkpointsByVer  map[uint64][]*logpath.ParsedLogPath
	checkpointVersions []uint64 // ascending
	latestCRC         *logpath.ParsedLogPath
}

// listLogFiles performs one prefix listing of logRoot and classifies every
// entry, keeping versions within [startVersion, endVersion]. Either bound may
// be nil for unbounded.
func listLogFiles(store storage.ObjectStore, logRoot string, startVersion, endVersion *uint64) (*rawListing, error) {
	listing := &rawListing{checkpointsByVer: make(map[uint64][]*logpath.ParsedLogPath)}

	for meta, err := range store.List(logRoot + "/") {
		if err != nil {
			return nil, fmt.Errorf("listing log files under %s: %w", logRoot, err)
		}
		parsed, ok := logpath.Parse(meta)
		if !ok {
			continue
		}
		if startVersion != nil && parsed.Version < *startVersion {
			continue
		}
		if endVersion != nil && parsed.Version > *endVersion {
			continue
		}

		switch parsed.Type {
		case logpath.Commit:
			listing.commits = append(listing.commits, parsed)
		case logpath.CompactedCommit:
			if endVersion == nil || parsed.CompactionHi <= *endVersion {
				listing.compactions = append(listing.compactions, parsed)
			}
		case logpath.SinglePartCheckpoint, logpath.UUIDCheckpoint, logpath.MultiPartCheckpoint:
			if _, ok := listing.checkpointsByVer[parsed.Version]; !ok {
				listing.checkpointVersions = append(listing.checkpointVersions, parsed.Version)
			}
			listing.checkpointsByVer[parsed.Version] = append(listing.checkpointsByVer[parsed.Version], parsed)
		case logpath.CRC:
			if listing.latestCRC == nil || parsed.Version > listing.latestCRC.Version {
				listing.latestCRC = parsed
			}
		}
	}

	// The listing contract is ascending path order which makes commits and
	// compactions arrive sorted, but sort defensively cheap slices anyway
	// since segment construction depends on it.
	sort.Slice(listing.commits, func(i, j int) bool {
		return listing.commits[i].Version < listing.commits[j].Version
	})
	sort.Slice(listing.compactions, func(i, j int) bool {
		a, b := listing.compactions[i], listing.compactions[j]
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.CompactionHi < b.CompactionHi
	})
	sort.Slice(listing.checkpointVersions, func(i, j int) bool {
		return listing.checkpointVersions[i] < listing.checkpointVersions[j]
	})

	return listing, nil
}

// completeCheckpointAt returns the parts of a complete checkpoint at the
// given version, or nil. A single-part or uuid checkpoint stands alone; a
// multi-part checkpoint is complete when all declared parts with a consistent
// total are present.
func (l *rawListing) completeCheckpointAt(version uint64) []*logpath.ParsedLogPath {
	parts := l.checkpointsByVer[version]

	for _, p := range parts {
		if p.Type == logpath.SinglePartCheckpoint || p.Type == logpath.UUIDCheckpoint {
			return []*logpath.ParsedLogPath{p}
		}
	}

	byTotal := make(map[uint32][]*logpath.ParsedLogPath)
	for _, p := range parts {
		if p.Type == logpath.MultiPartCheckpoint {
			byTotal[p.NumParts] = append(byTotal[p.NumParts], p)
		}
	}
	for total, group := range byTotal {
		if len(group) != int(total) {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Part < group[j].Part })
		distinct := true
		for i, p := range group {
			if p.Part != uint32(i+1) {
				distinct = false
				break
			}
		}
		if distinct {
			return group
		}
	}
	return nil
}

// latestCompleteCheckpoint scans checkpoint versions newest first and returns
// the parts of the most recent complete checkpoint. Incomplete checkpoints at
// newer versions are ignored, never used partially.
func (l *rawListing) latestCompleteCheckpoint() []*logpath.ParsedLogPath {
	for i := len(l.checkpointVersions) - 1; i >= 0; i-- {
		if parts := l.completeCheckpointAt(l.checkpointVersions[i]); parts != nil {
			return parts
		}
	}
	return nil
}

// List performs one prefix listing and partitions it into a ListedLogFiles,
// selecting the most recent complete checkpoint within the version bounds.
func List(store storage.ObjectStore, logRoot string, startVersion, endVersion *uint64) (*ListedLogFiles, error) {
	listing, err := listLogFiles(store, logRoot, startVersion, endVersion)
	if err != nil {
		return nil, err
	}
	return NewListedLogFiles(
		listing.commits,
		listing.compactions,
		listing.latestCompleteCheckpoint(),
		listing.latestCRC,
	), nil
}

// listForSnapshot lists with an optional _last_checkpoint hint. When the hint
// names a version within bounds, the listing starts there instead of at zero.
// A hint pointing at a version with no checkpoint files falls back to a full
// listing; a hint whose part count disagrees with the files actually present
// is an error.
func listForSnapshot(store storage.ObjectStore, logRoot string, hint *actions.LastCheckpointHint, endVersion *uint64) (*ListedLogFiles, error) {
	if hint == nil || (endVersion != nil && hint.Version > *endVersion) {
		return List(store, logRoot, nil, endVersion)
	}

	listing, err := listLogFiles(store, logRoot, &hint.Version, endVersion)
	if err != nil {
		return nil, err
	}

	rawParts := listing.checkpointsByVer[hint.Version]
	if len(rawParts) == 0 {
		// Checkpoint named by the hint is gone, likely cleaned up. Scan the
		// whole directory instead.
		return List(store, logRoot, nil, endVersion)
	}
	if parts := listing.completeCheckpointAt(hint.Version); parts == nil || len(parts) != int(hint.PartCount()) {
		return nil, &InvalidCheckpointHintError{
			HintVersion: hint.Version,
			HintParts:   hint.PartCount(),
			FoundParts:  len(rawParts),
		}
	}

	return NewListedLogFiles(
		listing.commits,
		listing.compactions,
		listing.latestCompleteCheckpoint(),
		listing.latestCRC,
	), nil
}
