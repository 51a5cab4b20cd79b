package logsegment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logsegment"
	"deltaglass.dev/deltaglass/logtest"
	"deltaglass.dev/deltaglass/storage/memstore"
)

func crcProtocol() *actions.Protocol {
	return &actions.Protocol{MinReaderVersion: 1, MinWriterVersion: 2}
}

func crcMetadata(id string) *actions.Metadata {
	return &actions.Metadata{
		ID:           id,
		Format:       actions.Format{Provider: "parquet"},
		SchemaString: logtest.SchemaString,
	}
}

func TestCRCAtEndVersionAnswersWithoutLogReads(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 5; v++ {
		logtest.PutCommit(t, store, logRoot, v,
			logtest.ProtocolEntry(),
			logtest.MetadataEntry("from-log", nil),
		)
	}
	logtest.PutCRC(t, store, logRoot, 5, crcProtocol(), crcMetadata("from-crc"))

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)

	before := store.ReadCalls.Load()
	protocol, metadata, err := seg.ProtocolAndMetadata(eng)
	require.NoError(t, err)

	assert.Equal(t, "from-crc", metadata.ID)
	assert.Equal(t, int32(1), protocol.MinReaderVersion)
	// One read for the crc file itself and none for commits or checkpoints.
	assert.Equal(t, int64(1), store.ReadCalls.Load()-before)
}

func TestCRCNewerThanCheckpointBoundsReplay(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	logtest.PutCheckpoint(t, store, logRoot, 3,
		logtest.ProtocolEntry(),
		logtest.MetadataEntry("from-checkpoint", nil),
	)
	// Commits 4 through 8 carry no protocol or metadata.
	for v := uint64(4); v <= 8; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}
	logtest.PutCRC(t, store, logRoot, 5, crcProtocol(), crcMetadata("from-crc"))

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)

	protocol, metadata, err := seg.ProtocolAndMetadata(eng)
	require.NoError(t, err)
	assert.Equal(t, "from-crc", metadata.ID)
	assert.Equal(t, int32(1), protocol.MinReaderVersion)
}

func TestCommitNewerThanCRCWinsOverIt(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 4; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}
	logtest.PutCommit(t, store, logRoot, 5, logtest.AddEntry("f.parquet"))
	logtest.PutCRC(t, store, logRoot, 4, crcProtocol(), crcMetadata("from-crc"))
	// Version 6 changes the metadata after the crc was written.
	logtest.PutCommit(t, store, logRoot, 6, logtest.MetadataEntry("from-commit-6", nil))

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)

	protocol, metadata, err := seg.ProtocolAndMetadata(eng)
	require.NoError(t, err)
	// Metadata comes from the newer commit, protocol falls back to the crc.
	assert.Equal(t, "from-commit-6", metadata.ID)
	assert.Equal(t, int32(1), protocol.MinReaderVersion)
}

func TestCRCAtCheckpointVersionWinsOverCheckpoint(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	logtest.PutCRC(t, store, logRoot, 3, crcProtocol(), crcMetadata("from-crc"))
	logtest.PutCheckpoint(t, store, logRoot, 3,
		logtest.ProtocolEntry(),
		logtest.MetadataEntry("from-checkpoint", nil),
	)
	// Commit 4 carries no protocol or metadata, so the bounded tail replay
	// comes up empty and the crc answers instead of the checkpoint.
	logtest.PutCommit(t, store, logRoot, 4, logtest.AddEntry("f.parquet"))

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)

	protocol, metadata, err := seg.ProtocolAndMetadata(eng)
	require.NoError(t, err)
	assert.Equal(t, "from-crc", metadata.ID)
	assert.Equal(t, int32(1), protocol.MinReaderVersion)
}

func TestCRCOlderThanCheckpointIsIgnored(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	logtest.PutCommit(t, store, logRoot, 2, logtest.AddEntry("f.parquet"))
	logtest.PutCRC(t, store, logRoot, 2, crcProtocol(), crcMetadata("from-crc"))
	logtest.PutCheckpoint(t, store, logRoot, 3,
		logtest.ProtocolEntry(),
		logtest.MetadataEntry("from-checkpoint", nil),
	)
	for v := uint64(4); v <= 5; v++ {
		logtest.PutCommit(t, store, logRoot, v, logtest.AddEntry("f.parquet"))
	}

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)

	_, metadata, err := seg.ProtocolAndMetadata(eng)
	require.NoError(t, err)
	assert.Equal(t, "from-checkpoint", metadata.ID)
}

func TestMalformedCRCIsFatal(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	for v := uint64(0); v <= 2; v++ {
		logtest.PutCommit(t, store, logRoot, v,
			logtest.ProtocolEntry(),
			logtest.MetadataEntry("m1", nil),
		)
	}
	// A crc at the end version missing its protocol must not silently fall
	// back to replay.
	logtest.PutCRC(t, store, logRoot, 2, nil, crcMetadata("from-crc"))

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)

	_, _, err = seg.ProtocolAndMetadata(eng)
	assert.ErrorIs(t, err, actions.ErrMalformedCRC)
}

func TestFullReplayFindsFirstOccurrenceNewestFirst(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	logtest.PutCommit(t, store, logRoot, 0,
		logtest.ProtocolEntry(),
		logtest.MetadataEntry("old", nil),
	)
	logtest.PutCommit(t, store, logRoot, 1, logtest.AddEntry("f.parquet"))
	logtest.PutCommit(t, store, logRoot, 2, logtest.MetadataEntry("new", nil))

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)

	protocol, metadata, err := seg.ProtocolAndMetadata(eng)
	require.NoError(t, err)
	assert.Equal(t, "new", metadata.ID)
	assert.Equal(t, int32(1), protocol.MinReaderVersion)
}

func TestMissingProtocolOrMetadataIsCorruption(t *testing.T) {
	store := memstore.NewStore()
	eng := engine.NewDefault(store)
	logtest.PutCommit(t, store, logRoot, 0, logtest.MetadataEntry("m1", nil))

	seg, err := logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)
	_, _, err = seg.ProtocolAndMetadata(eng)
	assert.ErrorIs(t, err, logsegment.ErrMissingProtocol)

	store = memstore.NewStore()
	eng = engine.NewDefault(store)
	logtest.PutCommit(t, store, logRoot, 0, logtest.ProtocolEntry())

	seg, err = logsegment.ForSnapshot(eng, logRoot, nil, nil)
	require.NoError(t, err)
	_, _, err = seg.ProtocolAndMetadata(eng)
	assert.ErrorIs(t, err, logsegment.ErrMissingMetadata)
}
