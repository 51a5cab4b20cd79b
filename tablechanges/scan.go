package tablechanges

import (
	"iter"
	"path"

	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logreplay"
	"deltaglass.dev/deltaglass/logsegment"
	"deltaglass.dev/deltaglass/snapshot"
)

// Scan resolves a change feed over [startVersion, endVersion] for the table
// at tableRoot. The table's schema and CDF support are validated at the
// range's end version before any commit is processed.
func Scan(
	eng engine.Engine,
	tableRoot string,
	startVersion uint64,
	endVersion *uint64,
	filter logreplay.BatchFilter,
) (iter.Seq2[ScanMetadata, error], error) {
	logRoot := path.Join(tableRoot, snapshot.LogDirName)
	segment, err := logsegment.ForTableChanges(eng, logRoot, startVersion, endVersion)
	if err != nil {
		return nil, err
	}

	end := segment.EndVersion
	unresolved := &snapshot.UnresolvedTable{Root: tableRoot, TargetVersion: &end}
	snap, err := unresolved.Resolve(eng)
	if err != nil {
		return nil, err
	}
	if err := ensureCdfReadSupported(end, snap.Protocol()); err != nil {
		return nil, err
	}
	if !snap.TableProperties().EnableChangeDataFeed {
		return nil, &UnsupportedError{Version: end, Feature: "delta.enableChangeDataFeed is not enabled"}
	}

	return ActionIter(eng, segment.AscendingCommitFiles, snap.Schema(), filter), nil
}
