package logsegment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/logsegment"
	"deltaglass.dev/deltaglass/logtest"
)

func TestSegmentDropsCommitsAtOrBeforeCheckpoint(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		commitRange(t, 3, 7),
		nil,
		[]*logpath.ParsedLogPath{logtest.ParsedCheckpoint(t, 5)},
		nil,
	)
	seg, err := logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)

	require.NotNil(t, seg.CheckpointVersion)
	assert.Equal(t, uint64(5), *seg.CheckpointVersion)
	assert.Equal(t, []string{"6", "7"}, logtest.Versions(seg.AscendingCommitFiles))
	assert.Equal(t, uint64(7), seg.EndVersion)
}

func TestSegmentCheckpointOnly(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		nil, nil,
		[]*logpath.ParsedLogPath{logtest.ParsedCheckpoint(t, 5)},
		nil,
	)
	seg, err := logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), seg.EndVersion)
	assert.Empty(t, seg.AscendingCommitFiles)
}

func TestSegmentRequiresContiguousCommits(t *testing.T) {
	commits := []*logpath.ParsedLogPath{
		logtest.ParsedCommit(t, 0),
		logtest.ParsedCommit(t, 1),
		logtest.ParsedCommit(t, 3),
	}
	listed := logsegment.NewListedLogFiles(commits, nil, nil, nil)
	_, err := logsegment.FromListed("_delta_log", listed, nil)

	var gapErr *logsegment.NonContiguousLogError
	require.ErrorAs(t, err, &gapErr)
	assert.Equal(t, []uint64{1, 3}, gapErr.Versions)
}

func TestSegmentRequiresCommitRightAfterCheckpoint(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		commitRange(t, 7, 8),
		nil,
		[]*logpath.ParsedLogPath{logtest.ParsedCheckpoint(t, 5)},
		nil,
	)
	_, err := logsegment.FromListed("_delta_log", listed, nil)

	var gapErr *logsegment.NonContiguousLogError
	require.ErrorAs(t, err, &gapErr)
	assert.Equal(t, []uint64{5, 7}, gapErr.Versions)
}

func TestSegmentEmptyListing(t *testing.T) {
	listed := logsegment.NewListedLogFiles(nil, nil, nil, nil)
	_, err := logsegment.FromListed("_delta_log", listed, nil)
	assert.ErrorIs(t, err, logsegment.ErrNoLogFiles)
}

func TestSegmentTargetVersionMustResolve(t *testing.T) {
	listed := logsegment.NewListedLogFiles(commitRange(t, 0, 3), nil, nil, nil)
	target := uint64(5)
	_, err := logsegment.FromListed("_delta_log", listed, &target)

	var notFound *logsegment.VersionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, uint64(5), notFound.Requested)
	assert.Equal(t, uint64(3), notFound.Resolved)
}

func TestSegmentIgnoresCRCBeyondEndVersion(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		commitRange(t, 0, 3), nil, nil,
		logtest.ParsedCRC(t, 9),
	)
	seg, err := logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)
	assert.Nil(t, seg.LatestCRCFile)
}

func TestSegmentKeepsCRCAtOrBelowEndVersion(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		commitRange(t, 0, 3), nil, nil,
		logtest.ParsedCRC(t, 2),
	)
	seg, err := logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)
	require.NotNil(t, seg.LatestCRCFile)
	assert.Equal(t, uint64(2), seg.LatestCRCFile.Version)
}

func TestSegmentFiltersCompactionsOutsideCommitRange(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		commitRange(t, 3, 8),
		[]*logpath.ParsedLogPath{
			logtest.ParsedCompaction(t, 1, 4), // reaches below the range
			logtest.ParsedCompaction(t, 4, 6),
			logtest.ParsedCompaction(t, 6, 9), // reaches past the range
		},
		[]*logpath.ParsedLogPath{logtest.ParsedCheckpoint(t, 2)},
		nil,
	)
	seg, err := logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"4-6"}, logtest.Versions(seg.AscendingCompactionFiles))
}

func TestCommitsSinceCheckpoint(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		commitRange(t, 0, 7),
		nil,
		[]*logpath.ParsedLogPath{logtest.ParsedCheckpoint(t, 5)},
		nil,
	)
	seg, err := logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seg.CommitsSinceCheckpoint())
}

func TestCommitsSinceLogCompactionOrCheckpoint(t *testing.T) {
	listed := logsegment.NewListedLogFiles(
		commitRange(t, 0, 7),
		[]*logpath.ParsedLogPath{logtest.ParsedCompaction(t, 1, 4)},
		nil, nil,
	)
	seg, err := logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seg.CommitsSinceLogCompactionOrCheckpoint())

	// Without a compaction the count falls back to commits since checkpoint.
	listed = logsegment.NewListedLogFiles(
		commitRange(t, 4, 7),
		nil,
		[]*logpath.ParsedLogPath{logtest.ParsedCheckpoint(t, 3)},
		nil,
	)
	seg, err = logsegment.FromListed("_delta_log", listed, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seg.CommitsSinceLogCompactionOrCheckpoint())
}

func TestNewListedLogFilesPanicsOnUnsortedInput(t *testing.T) {
	assert.Panics(t, func() {
		logsegment.NewListedLogFiles([]*logpath.ParsedLogPath{
			logtest.ParsedCommit(t, 2),
			logtest.ParsedCommit(t, 1),
		}, nil, nil, nil)
	})
	assert.Panics(t, func() {
		logsegment.NewListedLogFiles(nil, nil, []*logpath.ParsedLogPath{
			logtest.ParsedCheckpointPart(t, 2, 1, 2),
			logtest.ParsedCheckpointPart(t, 3, 2, 2),
		}, nil)
	})
}
