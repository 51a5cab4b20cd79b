package engine

import (
	"log/slog"

	"github.com/VictoriaMetrics/metrics"

	"deltaglass.dev/deltaglass/storage"
)

var (
	jsonFileReads    = metrics.NewCounter("deltaglass_json_file_reads")
	parquetFileReads = metrics.NewCounter("deltaglass_parquet_file_reads")
)

// Default is the built-in Engine over an ObjectStore.
type Default struct {
	store   storage.ObjectStore
	json    *jsonHandler
	parquet *parquetHandler
}

func NewDefault(store storage.ObjectStore) *Default {
	log := slog.With("component", "engine")
	return &Default{
		store:   store,
		json:    &jsonHandler{store: store, log: log},
		parquet: &parquetHandler{store: store, log: log},
	}
}

func (e *Default) Store() storage.ObjectStore {
	return e.store
}

func (e *Default) JSONHandler() JSONHandler {
	return e.json
}

func (e *Default) ParquetHandler() ParquetHandler {
	return e.parquet
}

var _ Engine = (*Default)(nil)
