package logpath_test

import (
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/storage"
)

func parse(name string) (*logpath.ParsedLogPath, bool) {
	return logpath.Parse(storage.FileMeta{Path: "table/_delta_log/" + name, Size: 1})
}

func TestParseCommit(t *testing.T) {
	p, ok := parse("00000000000000000042.json")
	require.True(t, ok)
	assert.Equal(t, logpath.Commit, p.Type)
	assert.Equal(t, uint64(42), p.Version)
	assert.Equal(t, "00000000000000000042.json", p.Filename)
	assert.Equal(t, "json", p.Extension)
	assert.True(t, p.IsCommit())
	assert.False(t, p.IsCheckpoint())
}

func TestParseCRC(t *testing.T) {
	p, ok := parse("00000000000000000007.crc")
	require.True(t, ok)
	assert.Equal(t, logpath.CRC, p.Type)
	assert.Equal(t, uint64(7), p.Version)
}

func TestParseSinglePartCheckpoint(t *testing.T) {
	p, ok := parse("00000000000000000010.checkpoint.parquet")
	require.True(t, ok)
	assert.Equal(t, logpath.SinglePartCheckpoint, p.Type)
	assert.Equal(t, uint64(10), p.Version)
	assert.True(t, p.IsCheckpoint())
}

func TestParseUUIDCheckpoint(t *testing.T) {
	id := "3a0d65cd-4056-49b8-937b-95f9e3ee90e5"

	p, ok := parse("00000000000000000010.checkpoint." + id + ".parquet")
	require.True(t, ok)
	assert.Equal(t, logpath.UUIDCheckpoint, p.Type)
	assert.Equal(t, id, p.UUID)

	p, ok = parse("00000000000000000010.checkpoint." + id + ".json")
	require.True(t, ok)
	assert.Equal(t, logpath.UUIDCheckpoint, p.Type)

	_, ok = parse("00000000000000000010.checkpoint.not-a-uuid.parquet")
	assert.False(t, ok)
}

func TestParseMultiPartCheckpoint(t *testing.T) {
	p, ok := parse("00000000000000000010.checkpoint.0000000002.0000000003.parquet")
	require.True(t, ok)
	assert.Equal(t, logpath.MultiPartCheckpoint, p.Type)
	assert.Equal(t, uint32(2), p.Part)
	assert.Equal(t, uint32(3), p.NumParts)

	// Parts are 1-based and bounded by the total.
	_, ok = parse("00000000000000000010.checkpoint.0000000000.0000000003.parquet")
	assert.False(t, ok)
	_, ok = parse("00000000000000000010.checkpoint.0000000004.0000000003.parquet")
	assert.False(t, ok)

	// Part numbers must be exactly 10 digits.
	_, ok = parse("00000000000000000010.checkpoint.02.03.parquet")
	assert.False(t, ok)
}

func TestParseCompaction(t *testing.T) {
	p, ok := parse("00000000000000000003.00000000000000000005.compacted.json")
	require.True(t, ok)
	assert.Equal(t, logpath.CompactedCommit, p.Type)
	assert.Equal(t, uint64(3), p.Version)
	assert.Equal(t, uint64(5), p.CompactionHi)

	// An inverted range is not a log file.
	_, ok = parse("00000000000000000005.00000000000000000003.compacted.json")
	assert.False(t, ok)
}

func TestParseRejectsNonLogFiles(t *testing.T) {
	for _, name := range []string{
		"_last_checkpoint",
		"00000000000000000042",
		"0000000000000000042.json",   // 19 digits
		"000000000000000000042.json", // 21 digits
		"0000000000000000004x.json",
		"00000000000000000042.txt",
		"00000000000000000042.checkpoint.json",
		".json",
		"",
	} {
		_, ok := parse(name)
		assert.False(t, ok, "expected %q to be rejected", name)
	}
}

func TestParseStripsDirectories(t *testing.T) {
	p, ok := logpath.Parse(storage.FileMeta{Path: "a/b/_delta_log/00000000000000000001.json"})
	require.True(t, ok)
	assert.Equal(t, "00000000000000000001.json", p.Filename)
	assert.Equal(t, "a/b/_delta_log/00000000000000000001.json", p.Location.Path)
}

func TestFilenameGeneratorsRoundTrip(t *testing.T) {
	id := uuid.MustParse("3a0d65cd-4056-49b8-937b-95f9e3ee90e5")

	cases := []struct {
		filename string
		wantType logpath.FileType
	}{
		{logpath.CommitFilename(9), logpath.Commit},
		{logpath.SinglePartCheckpointFilename(9), logpath.SinglePartCheckpoint},
		{logpath.UUIDCheckpointFilename(9, id, "parquet"), logpath.UUIDCheckpoint},
		{logpath.MultiPartCheckpointFilename(9, 1, 2), logpath.MultiPartCheckpoint},
		{logpath.CompactionFilename(9, 12), logpath.CompactedCommit},
		{logpath.CRCFilename(9), logpath.CRC},
	}
	for _, tc := range cases {
		p, ok := parse(tc.filename)
		require.True(t, ok, "generated filename %q must parse", tc.filename)
		assert.Equal(t, tc.wantType, p.Type, tc.filename)
		assert.Equal(t, uint64(9), p.Version, tc.filename)
	}
}

func TestCompareOrdersByVersionThenType(t *testing.T) {
	mustParse := func(name string) *logpath.ParsedLogPath {
		p, ok := parse(name)
		require.True(t, ok)
		return p
	}

	paths := []*logpath.ParsedLogPath{
		mustParse("00000000000000000002.json"),
		mustParse("00000000000000000001.crc"),
		mustParse("00000000000000000001.checkpoint.parquet"),
		mustParse("00000000000000000001.json"),
		mustParse("00000000000000000001.00000000000000000003.compacted.json"),
	}
	slices.SortFunc(paths, logpath.Compare)

	got := make([]logpath.FileType, len(paths))
	for i, p := range paths {
		got[i] = p.Type
	}
	assert.Equal(t, []logpath.FileType{
		logpath.CompactedCommit,
		logpath.Commit,
		logpath.SinglePartCheckpoint,
		logpath.CRC,
		logpath.Commit,
	}, got)
}
