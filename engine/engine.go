// Package engine provides the file format handlers log replay reads through:
// a line-delimited JSON reader for commit and compaction files and a parquet
// reader for checkpoint and sidecar files. Both return lazy single-use batch
// sequences so memory is bounded by one file at a time.
package engine

import (
	"iter"

	"deltaglass.dev/deltaglass/rowbatch"
	"deltaglass.dev/deltaglass/storage"
)

// Predicate is an opaque pushdown hint handed to handlers. Handlers may use
// it to skip whole batches but are free to over-approximate: exact filtering
// is the replay processor's job.
type Predicate interface {
	String() string
}

type JSONHandler interface {
	// ReadJSONFiles reads each file in order and yields one batch per file,
	// projected to the given top-level action columns.
	ReadJSONFiles(files []storage.FileMeta, projection []string, predicate Predicate) iter.Seq2[rowbatch.Batch, error]
}

type ParquetHandler interface {
	// ReadParquetFiles reads each file in order and yields one batch per
	// file, projected to the given top-level action columns.
	ReadParquetFiles(files []storage.FileMeta, projection []string, predicate Predicate) iter.Seq2[rowbatch.Batch, error]
}

// Engine bundles the storage and format capabilities the log reader consumes.
type Engine interface {
	Store() storage.ObjectStore
	JSONHandler() JSONHandler
	ParquetHandler() ParquetHandler
}
