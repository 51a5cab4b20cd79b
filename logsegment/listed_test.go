package logsegment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/logsegment"
	"deltaglass.dev/deltaglass/logtest"
	"deltaglass.dev/deltaglass/storage/memstore"
)

const logRoot = "table/_delta_log"

func TestListSelectsLatestCompleteCheckpoint(t *testing.T) {
	store := memstore.NewStore()
	for v := uint64(0); v <= 8; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}
	logtest.PutCheckpoint(t, store, logRoot, 3, logtest.ProtocolEntry())
	// Incomplete multi-part checkpoint at 6: parts 1 and 3 of 3.
	logtest.PutCheckpointPart(t, store, logRoot, 6, 1, 3, logtest.ProtocolEntry())
	logtest.PutCheckpointPart(t, store, logRoot, 6, 3, 3, logtest.AddEntry("f.parquet"))

	listed, err := logsegment.List(store, logRoot, nil, nil)
	require.NoError(t, err)

	require.Len(t, listed.CheckpointParts, 1)
	assert.Equal(t, uint64(3), listed.CheckpointParts[0].Version)
}

func TestListAcceptsCompleteMultiPartCheckpoint(t *testing.T) {
	store := memstore.NewStore()
	for v := uint64(0); v <= 6; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}
	logtest.PutCheckpointPart(t, store, logRoot, 5, 1, 2, logtest.ProtocolEntry())
	logtest.PutCheckpointPart(t, store, logRoot, 5, 2, 2, logtest.AddEntry("f.parquet"))

	listed, err := logsegment.List(store, logRoot, nil, nil)
	require.NoError(t, err)

	require.Len(t, listed.CheckpointParts, 2)
	assert.Equal(t, uint32(1), listed.CheckpointParts[0].Part)
	assert.Equal(t, uint32(2), listed.CheckpointParts[1].Part)
}

func TestListBoundsVersions(t *testing.T) {
	store := memstore.NewStore()
	for v := uint64(0); v <= 9; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}

	lo, hi := uint64(3), uint64(6)
	listed, err := logsegment.List(store, logRoot, &lo, &hi)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5", "6"}, logtest.Versions(listed.AscendingCommitFiles))
}

func TestForSnapshotUsesCheckpointHint(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 7; v++ {
		logtest.PutCommit(t, store, logRoot, v,
			logtest.ProtocolEntry(),
			logtest.MetadataEntry("m1", nil),
			logtest.AddEntry("f.parquet"),
		)
	}
	logtest.PutCheckpoint(t, store, logRoot, 5,
		logtest.ProtocolEntry(),
		logtest.MetadataEntry("m1", nil),
	)
	logtest.PutLastCheckpoint(t, store, logRoot, 5, nil)

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, seg.CheckpointVersion)
	assert.Equal(t, uint64(5), *seg.CheckpointVersion)
	assert.Equal(t, []string{"6", "7"}, logtest.Versions(seg.AscendingCommitFiles))
	assert.Equal(t, uint64(7), seg.EndVersion)
}

func TestForSnapshotFallsBackWhenHintedCheckpointIsGone(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 4; v++ {
		logtest.PutCommit(t, store, logRoot, v,
			logtest.ProtocolEntry(),
			logtest.MetadataEntry("m1", nil),
		)
	}
	logtest.PutCheckpoint(t, store, logRoot, 2, logtest.ProtocolEntry(), logtest.MetadataEntry("m1", nil))
	// Hint names version 3 but no checkpoint files exist there.
	logtest.PutLastCheckpoint(t, store, logRoot, 3, nil)

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, seg.CheckpointVersion)
	assert.Equal(t, uint64(2), *seg.CheckpointVersion)
	assert.Equal(t, uint64(4), seg.EndVersion)
}

func TestForSnapshotRejectsHintPartCountMismatch(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 6; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.ProtocolEntry(), logtest.MetadataEntry("m1", nil))
	}
	// Complete 2-part checkpoint at 5, but the hint claims 3 parts.
	logtest.PutCheckpointPart(t, store, logRoot, 5, 1, 2, logtest.ProtocolEntry())
	logtest.PutCheckpointPart(t, store, logRoot, 5, 2, 2, logtest.MetadataEntry("m1", nil))
	parts := uint32(3)
	logtest.PutLastCheckpoint(t, store, logRoot, 5, &parts)

	_, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	var hintErr *logsegment.InvalidCheckpointHintError
	require.ErrorAs(t, err, &hintErr)
	assert.Equal(t, uint64(5), hintErr.HintVersion)
	assert.Equal(t, uint32(3), hintErr.HintParts)
	assert.Equal(t, 2, hintErr.FoundParts)
}

func TestForSnapshotIgnoresHintBeyondTargetVersion(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 7; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.ProtocolEntry(), logtest.MetadataEntry("m1", nil))
	}
	logtest.PutCheckpoint(t, store, logRoot, 6, logtest.ProtocolEntry(), logtest.MetadataEntry("m1", nil))
	logtest.PutLastCheckpoint(t, store, logRoot, 6, nil)

	target := uint64(4)
	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, &target)
	require.NoError(t, err)
	assert.Nil(t, seg.CheckpointVersion)
	assert.Equal(t, uint64(4), seg.EndVersion)
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, logtest.Versions(seg.AscendingCommitFiles))
}

func TestForSnapshotMergesLogTail(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 3; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.ProtocolEntry(), logtest.MetadataEntry("m1", nil))
	}
	// The caller knows about commits 3 and 4; 4 is not listed yet.
	logtest.PutCommit(t, store, logRoot, 4, logtest.AddEntry("f.parquet"))
	tail := []*logpath.ParsedLogPath{
		logtest.ParsedPath(t, logRoot, logpath.CommitFilename(3)),
		logtest.ParsedPath(t, logRoot, logpath.CommitFilename(4)),
	}

	seg, err := logsegment.ForSnapshot(eng, logRoot, tail, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seg.EndVersion)
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, logtest.Versions(seg.AscendingCommitFiles))
}

func TestForTableChanges(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 7; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}
	// Checkpoints are irrelevant to a change feed segment.
	logtest.PutCheckpoint(t, store, logRoot, 5, logtest.ProtocolEntry())

	end := uint64(6)
	seg, err := logsegment.ForTableChanges(eng, logRoot, 2, &end)
	require.NoError(t, err)
	assert.Nil(t, seg.CheckpointVersion)
	assert.Equal(t, []string{"2", "3", "4", "5", "6"}, logtest.Versions(seg.AscendingCommitFiles))
	assert.Equal(t, uint64(6), seg.EndVersion)
}

func TestForTableChangesStartMustExist(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(3); v <= 7; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}

	_, err := logsegment.ForTableChanges(eng, logRoot, 1, nil)
	var mismatch *logsegment.StartVersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint64(1), mismatch.Requested)
	require.NotNil(t, mismatch.First)
	assert.Equal(t, uint64(3), *mismatch.First)

	_, err = logsegment.ForTableChanges(eng, logRoot, 9, nil)
	require.ErrorAs(t, err, &mismatch)
	assert.Nil(t, mismatch.First)
}

func TestForTableChangesRejectsInvertedRange(t *testing.T) {
	eng := engine.NewDefault(memstore.NewStore())
	end := uint64(2)
	_, err := logsegment.ForTableChanges(eng, logRoot, 5, &end)
	assert.Error(t, err)
}

func TestForTimestampConversionTruncatesAtGap(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for _, v := range []uint64{0, 1, 4, 5, 6} {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}

	seg, err := logsegment.ForTimestampConversion(eng, logRoot, 6, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5", "6"}, logtest.Versions(seg.AscendingCommitFiles))
}

func TestForTimestampConversionAppliesLimit(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 6; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}

	limit := uint64(2)
	seg, err := logsegment.ForTimestampConversion(eng, logRoot, 5, &limit)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, logtest.Versions(seg.AscendingCommitFiles))
}
