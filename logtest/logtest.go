// A package of test helpers for building Delta log fixtures in memory.
package logtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/storage"
	"deltaglass.dev/deltaglass/storage/memstore"
)

// SchemaString is the schema most fixtures use: two nullable columns.
const SchemaString = `{"type":"struct","fields":[` +
	`{"name":"id","type":"long","nullable":true,"metadata":{}},` +
	`{"name":"value","type":"string","nullable":true,"metadata":{}}]}`

// Timestamp is the deterministic modification time for a log file at the
// given version. One minute apart so timestamp ordering matches version
// ordering.
func Timestamp(version uint64) time.Time {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(version) * time.Minute)
}

// EncodeJSON renders entries as line-delimited JSON, one action per line.
func EncodeJSON(t testing.TB, entries []actions.LogEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := json.Marshal(e)
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// EncodeParquet renders entries as a parquet file in the log entry schema.
func EncodeParquet(t testing.TB, entries []actions.LogEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[actions.LogEntry](&buf)
	_, err := w.Write(entries)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func PutCommit(t testing.TB, store *memstore.Store, logRoot string, version uint64, entries ...actions.LogEntry) {
	t.Helper()
	key := logRoot + "/" + logpath.CommitFilename(version)
	store.Put(key, EncodeJSON(t, entries), Timestamp(version))
}

func PutCompaction(t testing.TB, store *memstore.Store, logRoot string, lo, hi uint64, entries ...actions.LogEntry) {
	t.Helper()
	key := logRoot + "/" + logpath.CompactionFilename(lo, hi)
	store.Put(key, EncodeJSON(t, entries), Timestamp(hi))
}

// PutCheckpoint writes a single-part parquet checkpoint.
func PutCheckpoint(t testing.TB, store *memstore.Store, logRoot string, version uint64, entries ...actions.LogEntry) {
	t.Helper()
	key := logRoot + "/" + logpath.SinglePartCheckpointFilename(version)
	store.Put(key, EncodeParquet(t, entries), Timestamp(version))
}

// PutCheckpointPart writes one part of a multi-part parquet checkpoint.
func PutCheckpointPart(t testing.TB, store *memstore.Store, logRoot string, version uint64, part, numParts uint32, entries ...actions.LogEntry) {
	t.Helper()
	key := logRoot + "/" + logpath.MultiPartCheckpointFilename(version, part, numParts)
	store.Put(key, EncodeParquet(t, entries), Timestamp(version))
}

// PutSidecar writes a parquet sidecar file under the log's _sidecars
// directory and returns the file name a checkpoint should reference.
func PutSidecar(t testing.TB, store *memstore.Store, logRoot string, name string, entries ...actions.LogEntry) string {
	t.Helper()
	key := logRoot + "/" + logpath.SidecarDirname + "/" + name
	store.Put(key, EncodeParquet(t, entries), Timestamp(0))
	return name
}

// PutCRC writes a {version}.crc summary file carrying the given protocol and
// metadata.
func PutCRC(t testing.TB, store *memstore.Store, logRoot string, version uint64, protocol *actions.Protocol, metadata *actions.Metadata) {
	t.Helper()
	data, err := json.Marshal(actions.CRCInfo{
		Protocol: protocol,
		Metadata: metadata,
	})
	require.NoError(t, err)
	store.Put(logRoot+"/"+logpath.CRCFilename(version), data, Timestamp(version))
}

// PutLastCheckpoint writes the _last_checkpoint hint. parts is nil for a
// single-part checkpoint.
func PutLastCheckpoint(t testing.TB, store *memstore.Store, logRoot string, version uint64, parts *uint32) {
	t.Helper()
	data, err := json.Marshal(actions.LastCheckpointHint{Version: version, Parts: parts})
	require.NoError(t, err)
	store.Put(logRoot+"/"+logpath.LastCheckpointFilename, data, Timestamp(version))
}

// AddEntry builds an add action with dataChange=true.
func AddEntry(path string) actions.LogEntry {
	return actions.LogEntry{Add: &actions.Add{
		Path:             path,
		PartitionValues:  map[string]string{},
		Size:             1024,
		ModificationTime: Timestamp(0).UnixMilli(),
		DataChange:       true,
	}}
}

// AddEntryDV is AddEntry with a deletion vector attached.
func AddEntryDV(path string, dv *actions.DeletionVectorDescriptor) actions.LogEntry {
	e := AddEntry(path)
	e.Add.DeletionVector = dv
	return e
}

// RemoveEntry builds a remove action with dataChange=true.
func RemoveEntry(path string) actions.LogEntry {
	return actions.LogEntry{Remove: &actions.Remove{
		Path:       path,
		DataChange: true,
	}}
}

// RemoveEntryDV is RemoveEntry with a deletion vector attached.
func RemoveEntryDV(path string, dv *actions.DeletionVectorDescriptor) actions.LogEntry {
	e := RemoveEntry(path)
	e.Remove.DeletionVector = dv
	return e
}

// CdcEntry builds a cdc action.
func CdcEntry(path string) actions.LogEntry {
	return actions.LogEntry{Cdc: &actions.Cdc{
		Path:            path,
		PartitionValues: map[string]string{},
		Size:            512,
		DataChange:      true,
	}}
}

// ProtocolEntry builds a protocol action at reader 1, writer 2.
func ProtocolEntry() actions.LogEntry {
	return actions.LogEntry{Protocol: &actions.Protocol{
		MinReaderVersion: 1,
		MinWriterVersion: 2,
	}}
}

// MetadataEntry builds a metaData action with the given id, the fixture
// schema, and configuration.
func MetadataEntry(id string, configuration map[string]string) actions.LogEntry {
	return actions.LogEntry{Metadata: &actions.Metadata{
		ID:               id,
		Format:           actions.Format{Provider: "parquet"},
		SchemaString:     SchemaString,
		PartitionColumns: []string{},
		Configuration:    configuration,
	}}
}

// SidecarEntry builds a sidecar reference action.
func SidecarEntry(name string, sizeInBytes int64) actions.LogEntry {
	return actions.LogEntry{Sidecar: &actions.Sidecar{
		Path:             name,
		SizeInBytes:      sizeInBytes,
		ModificationTime: Timestamp(0).UnixMilli(),
	}}
}

// ParsedPath parses a synthetic listing entry for the given log file name,
// failing the test when the name is outside the log grammar.
func ParsedPath(t testing.TB, logRoot, filename string) *logpath.ParsedLogPath {
	t.Helper()
	meta := storage.FileMeta{Path: logRoot + "/" + filename, Size: 1}
	p, ok := logpath.Parse(meta)
	require.True(t, ok, "expected %s to parse as a log file", filename)
	return p
}

// ParsedCommit, ParsedCompaction, ParsedCheckpoint, and ParsedCRC build
// listing entries for pure segment tests that never touch storage.
func ParsedCommit(t testing.TB, version uint64) *logpath.ParsedLogPath {
	return ParsedPath(t, "_delta_log", logpath.CommitFilename(version))
}

func ParsedCompaction(t testing.TB, lo, hi uint64) *logpath.ParsedLogPath {
	return ParsedPath(t, "_delta_log", logpath.CompactionFilename(lo, hi))
}

func ParsedCheckpoint(t testing.TB, version uint64) *logpath.ParsedLogPath {
	return ParsedPath(t, "_delta_log", logpath.SinglePartCheckpointFilename(version))
}

func ParsedCheckpointPart(t testing.TB, version uint64, part, numParts uint32) *logpath.ParsedLogPath {
	return ParsedPath(t, "_delta_log", logpath.MultiPartCheckpointFilename(version, part, numParts))
}

func ParsedCRC(t testing.TB, version uint64) *logpath.ParsedLogPath {
	return ParsedPath(t, "_delta_log", logpath.CRCFilename(version))
}

// Versions extracts the version of each path, with compactions rendered as
// "lo-hi", for compact cover assertions.
func Versions(paths []*logpath.ParsedLogPath) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if p.Type == logpath.CompactedCommit {
			out[i] = fmt.Sprintf("%d-%d", p.Version, p.CompactionHi)
		} else {
			out[i] = fmt.Sprintf("%d", p.Version)
		}
	}
	return out
}
