// Package logsegment resolves which log files must be read to materialize a
// table version: the most recent complete checkpoint at or before the target,
// any usable log compactions, and the commits after the checkpoint. The
// resulting LogSegment is immutable and drives log replay.
package logsegment

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/storage"
)

type LogSegment struct {
	LogRoot                  string
	CheckpointVersion        *uint64
	CheckpointParts          []*logpath.ParsedLogPath
	LatestCRCFile            *logpath.ParsedLogPath
	AscendingCommitFiles     []*logpath.ParsedLogPath
	AscendingCompactionFiles []*logpath.ParsedLogPath
	EndVersion               uint64
}

// newLogSegment is the single validating constructor all entry points funnel
// through. It enforces commit contiguity, commit-after-checkpoint placement,
// and target version reachability.
func newLogSegment(logRoot string, listed *ListedLogFiles, targetVersion *uint64) (*LogSegment, error) {
	commits := listed.AscendingCommitFiles
	checkpointParts := listed.CheckpointParts

	var checkpointVersion *uint64
	if len(checkpointParts) > 0 {
		v := checkpointParts[0].Version
		checkpointVersion = &v
		// Commits at or before the checkpoint are subsumed by it.
		commits = slices.DeleteFunc(slices.Clone(commits), func(p *logpath.ParsedLogPath) bool {
			return p.Version <= v
		})
	}

	if len(commits) == 0 && checkpointVersion == nil {
		return nil, ErrNoLogFiles
	}

	for i := 1; i < len(commits); i++ {
		if commits[i].Version != commits[i-1].Version+1 {
			return nil, &NonContiguousLogError{
				Versions: []uint64{commits[i-1].Version, commits[i].Version},
			}
		}
	}
	if checkpointVersion != nil && len(commits) > 0 && commits[0].Version != *checkpointVersion+1 {
		return nil, &NonContiguousLogError{
			Versions: []uint64{*checkpointVersion, commits[0].Version},
		}
	}

	endVersion := uint64(0)
	switch {
	case len(commits) > 0:
		endVersion = commits[len(commits)-1].Version
	case checkpointVersion != nil:
		endVersion = *checkpointVersion
	}
	if targetVersion != nil && *targetVersion != endVersion {
		return nil, &VersionNotFoundError{Requested: *targetVersion, Resolved: endVersion}
	}

	// Compactions are only usable when fully inside the commit range.
	var compactions []*logpath.ParsedLogPath
	if len(commits) > 0 {
		lo, hi := commits[0].Version, commits[len(commits)-1].Version
		for _, c := range listed.AscendingCompactionFiles {
			if c.Version >= lo && c.CompactionHi <= hi {
				compactions = append(compactions, c)
			}
		}
	}

	var crc *logpath.ParsedLogPath
	if listed.LatestCRCFile != nil && listed.LatestCRCFile.Version <= endVersion {
		crc = listed.LatestCRCFile
	}

	return &LogSegment{
		LogRoot:                  logRoot,
		CheckpointVersion:        checkpointVersion,
		CheckpointParts:          checkpointParts,
		LatestCRCFile:            crc,
		AscendingCommitFiles:     commits,
		AscendingCompactionFiles: compactions,
		EndVersion:               endVersion,
	}, nil
}

// ForSnapshot resolves the segment for a full snapshot of the table at
// targetVersion (nil for latest). logTail holds recent commits the caller
// already knows about, typically from a catalog cache; they are trusted over
// a second listing of the same versions.
func ForSnapshot(eng engine.Engine, logRoot string, logTail []*logpath.ParsedLogPath, targetVersion *uint64) (*LogSegment, error) {
	hint := readLastCheckpointHint(eng.Store(), logRoot)

	listed, err := listForSnapshot(eng.Store(), logRoot, hint, targetVersion)
	if err != nil {
		return nil, err
	}
	listed = mergeLogTail(listed, logTail, targetVersion)

	return newLogSegment(logRoot, listed, targetVersion)
}

// FromListed builds the segment for targetVersion directly from a
// caller-supplied listing, skipping all I/O.
func FromListed(logRoot string, listed *ListedLogFiles, targetVersion *uint64) (*LogSegment, error) {
	return newLogSegment(logRoot, listed, targetVersion)
}

// ForTableChanges resolves a commits-only segment for a Change Data Feed
// query over [startVersion, endVersion]. Checkpoints and compactions are
// omitted: CDF must see every raw commit. The segment must start exactly at
// startVersion and be contiguous through the resolved end.
func ForTableChanges(eng engine.Engine, logRoot string, startVersion uint64, endVersion *uint64) (*LogSegment, error) {
	if endVersion != nil && startVersion > *endVersion {
		return nil, fmt.Errorf("invalid version range: start %d is greater than end %d", startVersion, *endVersion)
	}

	listing, err := listLogFiles(eng.Store(), logRoot, &startVersion, endVersion)
	if err != nil {
		return nil, err
	}
	if len(listing.commits) == 0 {
		return nil, &StartVersionMismatchError{Requested: startVersion}
	}
	if first := listing.commits[0].Version; first != startVersion {
		return nil, &StartVersionMismatchError{Requested: startVersion, First: &first}
	}

	listed := NewListedLogFiles(listing.commits, nil, nil, nil)
	return newLogSegment(logRoot, listed, endVersion)
}

// ForTimestampConversion resolves a commits-only segment used to answer
// "which version was current at timestamp T" queries. Only the trailing
// contiguous run of commits ending at or before endVersion is kept; a gap
// truncates the window. limit caps the run to the most recent N commits.
func ForTimestampConversion(eng engine.Engine, logRoot string, endVersion uint64, limit *uint64) (*LogSegment, error) {
	listing, err := listLogFiles(eng.Store(), logRoot, nil, &endVersion)
	if err != nil {
		return nil, err
	}
	commits := listing.commits
	if len(commits) == 0 {
		return nil, ErrNoLogFiles
	}

	// Walk backward from the newest commit while versions stay contiguous.
	start := len(commits) - 1
	for start > 0 && commits[start-1].Version+1 == commits[start].Version {
		start--
	}
	commits = commits[start:]
	if limit != nil && uint64(len(commits)) > *limit {
		commits = commits[uint64(len(commits))-*limit:]
	}

	listed := NewListedLogFiles(commits, nil, nil, nil)
	return newLogSegment(logRoot, listed, nil)
}

// pruneForCRC returns a copy of the segment containing only commits newer
// than crcVersion, with checkpoint and compaction fields cleared. Used
// internally when CRC resolution supersedes the checkpoint; never exposed as
// a concurrent mutation point.
func (s *LogSegment) pruneForCRC(crcVersion uint64) *LogSegment {
	var commits []*logpath.ParsedLogPath
	for _, c := range s.AscendingCommitFiles {
		if c.Version > crcVersion {
			commits = append(commits, c)
		}
	}
	return &LogSegment{
		LogRoot:              s.LogRoot,
		LatestCRCFile:        s.LatestCRCFile,
		AscendingCommitFiles: commits,
		EndVersion:           s.EndVersion,
	}
}

// CommitsSinceCheckpoint counts the commits replay must read beyond the
// checkpoint. Callers use it to decide whether to write a new checkpoint.
func (s *LogSegment) CommitsSinceCheckpoint() uint64 {
	return uint64(len(s.AscendingCommitFiles))
}

// CommitsSinceLogCompactionOrCheckpoint counts the commits past the most
// recent covering compaction, or past the checkpoint if no compaction
// applies. Callers use it to decide whether to trigger a compaction.
func (s *LogSegment) CommitsSinceLogCompactionOrCheckpoint() uint64 {
	horizon := uint64(0)
	hasHorizon := false
	for _, c := range s.AscendingCompactionFiles {
		if c.CompactionHi > horizon || !hasHorizon {
			horizon = c.CompactionHi
			hasHorizon = true
		}
	}
	if !hasHorizon {
		return s.CommitsSinceCheckpoint()
	}
	count := uint64(0)
	for _, c := range s.AscendingCommitFiles {
		if c.Version > horizon {
			count++
		}
	}
	return count
}

// mergeLogTail overlays caller-provided commits onto a listing. Tail commits
// win over listed commits at the same versions.
func mergeLogTail(listed *ListedLogFiles, logTail []*logpath.ParsedLogPath, targetVersion *uint64) *ListedLogFiles {
	if len(logTail) == 0 {
		return listed
	}
	tail := make([]*logpath.ParsedLogPath, 0, len(logTail))
	for _, p := range logTail {
		if p.Type != logpath.Commit {
			panic(fmt.Sprintf("log tail contains non-commit file %s", p.Filename))
		}
		if targetVersion == nil || p.Version <= *targetVersion {
			tail = append(tail, p)
		}
	}
	if len(tail) == 0 {
		return listed
	}
	slices.SortFunc(tail, logpath.Compare)

	commits := make([]*logpath.ParsedLogPath, 0, len(listed.AscendingCommitFiles)+len(tail))
	for _, c := range listed.AscendingCommitFiles {
		if c.Version < tail[0].Version {
			commits = append(commits, c)
		}
	}
	commits = append(commits, tail...)

	return NewListedLogFiles(
		commits,
		listed.AscendingCompactionFiles,
		listed.CheckpointParts,
		listed.LatestCRCFile,
	)
}

// readLastCheckpointHint reads and decodes _last_checkpoint. Absence and
// decode failure both resolve to "no hint": the hint is an optimization and
// a full listing remains correct without it.
func readLastCheckpointHint(store storage.ObjectStore, logRoot string) *actions.LastCheckpointHint {
	data, err := store.Read(logRoot + "/" + logpath.LastCheckpointFilename)
	if errors.Is(err, storage.ErrNotExist) {
		return nil
	}
	if err != nil {
		slog.With("component", "segment").Warn("reading _last_checkpoint", "err", err)
		return nil
	}
	hint, err := actions.ParseLastCheckpointHint(data)
	if err != nil {
		slog.With("component", "segment").Warn("decoding _last_checkpoint", "err", err)
		return nil
	}
	return hint
}
