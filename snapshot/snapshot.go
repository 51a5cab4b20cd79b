// Package snapshot resolves a table root into a point-in-time view: the
// table's version, protocol, metadata, and the log segment that materializes
// it. Resolution is a one-way transition from an UnresolvedTable request to
// an immutable Snapshot.
package snapshot

import (
	"fmt"
	"iter"
	"path"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/logreplay"
	"deltaglass.dev/deltaglass/logsegment"
	"deltaglass.dev/deltaglass/schema"
)

// LogDirName is the log directory under every table root.
const LogDirName = "_delta_log"

// maxSupportedReaderVersion is the highest protocol reader version this
// module understands.
const maxSupportedReaderVersion = 3

// UnresolvedTable is a request to resolve a table state: the table root, an
// optional target version (nil for latest), and an optional log tail of
// recent commits the caller already knows, e.g. from a catalog cache.
type UnresolvedTable struct {
	Root          string
	TargetVersion *uint64
	LogTail       []*logpath.ParsedLogPath
}

// Resolve lists the log, builds the segment, and resolves protocol and
// metadata. Each call performs fresh I/O; the returned Snapshot is immutable.
func (u *UnresolvedTable) Resolve(eng engine.Engine) (*Snapshot, error) {
	logRoot := path.Join(u.Root, LogDirName)
	segment, err := logsegment.ForSnapshot(eng, logRoot, u.LogTail, u.TargetVersion)
	if err != nil {
		return nil, fmt.Errorf("resolving log segment for %s: %w", u.Root, err)
	}

	protocol, metadata, err := segment.ProtocolAndMetadata(eng)
	if err != nil {
		return nil, fmt.Errorf("resolving protocol and metadata for %s: %w", u.Root, err)
	}

	return newSnapshot(u.Root, segment.EndVersion, protocol, metadata, segment)
}

// NewWithResolvedState is the catalog fast path: the caller supplies an
// already-resolved protocol, metadata, and version, and no listing or replay
// happens. The returned snapshot carries no log segment, so operations that
// need one, like ScanFiles, fail.
func NewWithResolvedState(root string, version uint64, protocol *actions.Protocol, metadata *actions.Metadata) (*Snapshot, error) {
	return newSnapshot(root, version, protocol, metadata, nil)
}

func newSnapshot(root string, version uint64, protocol *actions.Protocol, metadata *actions.Metadata, segment *logsegment.LogSegment) (*Snapshot, error) {
	if protocol.MinReaderVersion > maxSupportedReaderVersion {
		return nil, fmt.Errorf("table %s requires reader version %d, max supported is %d",
			root, protocol.MinReaderVersion, maxSupportedReaderVersion)
	}
	tableSchema, err := schema.Parse(metadata.SchemaString)
	if err != nil {
		return nil, fmt.Errorf("parsing schema of %s: %w", root, err)
	}
	return &Snapshot{
		root:       root,
		version:    version,
		protocol:   protocol,
		metadata:   metadata,
		properties: actions.ParseTableProperties(metadata.Configuration),
		schema:     tableSchema,
		segment:    segment,
	}, nil
}

// Snapshot is one resolved table state. Immutable after construction.
type Snapshot struct {
	root       string
	version    uint64
	protocol   *actions.Protocol
	metadata   *actions.Metadata
	properties actions.TableProperties
	schema     *schema.StructType
	segment    *logsegment.LogSegment
}

func (s *Snapshot) Root() string                           { return s.root }
func (s *Snapshot) Version() uint64                        { return s.version }
func (s *Snapshot) Protocol() *actions.Protocol            { return s.protocol }
func (s *Snapshot) Metadata() *actions.Metadata            { return s.metadata }
func (s *Snapshot) Schema() *schema.StructType             { return s.schema }
func (s *Snapshot) TableProperties() actions.TableProperties { return s.properties }
func (s *Snapshot) LogSegment() *logsegment.LogSegment     { return s.segment }

// ScanFiles replays the log segment and yields the live file set newest
// first, one selected batch at a time. filter is the optional data-skipping
// hook.
func (s *Snapshot) ScanFiles(eng engine.Engine, filter logreplay.BatchFilter) (iter.Seq2[logreplay.ScanBatch, error], error) {
	if s.segment == nil {
		return nil, fmt.Errorf("snapshot of %s was built from resolved state and has no log segment", s.root)
	}
	batches, err := s.segment.Replay(eng, actions.FileActionProjection(), nil)
	if err != nil {
		return nil, err
	}
	return logreplay.Scan(batches, filter), nil
}
