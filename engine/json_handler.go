package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"deltaglass.dev/deltaglass/rowbatch"
	"deltaglass.dev/deltaglass/storage"
)

// jsonHandler reads line-delimited JSON log files. Each file becomes one
// batch; a decode failure terminates the sequence.
type jsonHandler struct {
	store storage.ObjectStore
	log   *slog.Logger
}

func (h *jsonHandler) ReadJSONFiles(files []storage.FileMeta, projection []string, predicate Predicate) iter.Seq2[rowbatch.Batch, error] {
	return func(yield func(rowbatch.Batch, error) bool) {
		for _, file := range files {
			batch, err := h.readFile(file, projection)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (h *jsonHandler) readFile(file storage.FileMeta, projection []string) (*rowbatch.MapBatch, error) {
	data, err := h.store.Read(file.Path)
	if err != nil {
		return nil, fmt.Errorf("reading json log file %s: %w", file.Path, err)
	}
	jsonFileReads.Inc()
	h.log.Debug("read json file", "path", file.Path, "bytes", len(data))

	var rows []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("decoding %s line %d: %w", file.Path, lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", file.Path, err)
	}

	batch := rowbatch.NewMapBatch(rows)
	if projection != nil {
		return batch.Project(projection), nil
	}
	return batch, nil
}

var _ JSONHandler = (*jsonHandler)(nil)
