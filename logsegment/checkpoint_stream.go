package logsegment

import (
	"iter"
	"slices"
	"strings"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/logreplay"
	"deltaglass.dev/deltaglass/rowbatch"
	"deltaglass.dev/deltaglass/storage"
)

// CreateCheckpointStream turns the segment's checkpoint into the flat batch
// sequence replay consumes. Single-part checkpoints may reference sidecar
// files instead of inlining file actions; those are read and spliced into the
// stream immediately after the batch referencing them. Multi-part checkpoints
// never contain sidecars and are returned as-is.
//
// A projection that requests file actions without the sidecar column is a
// caller contract violation: whether sidecar indirection applies cannot be
// known without it.
func (s *LogSegment) CreateCheckpointStream(eng engine.Engine, projection []string, predicate engine.Predicate) (iter.Seq2[logreplay.ActionsBatch, error], error) {
	needsFileActions := slices.Contains(projection, actions.AddName) ||
		slices.Contains(projection, actions.RemoveName)
	hasSidecarColumn := slices.Contains(projection, actions.SidecarName)
	if needsFileActions && !hasSidecarColumn {
		return nil, ErrMissingSidecarColumn
	}

	if len(s.CheckpointParts) == 0 {
		return emptyBatchSeq(), nil
	}

	metas := fileMetas(s.CheckpointParts)
	multiPart := len(s.CheckpointParts) > 1
	inner := s.readCheckpointFiles(eng, metas, s.CheckpointParts[0].Extension, projection, predicate)

	return func(yield func(logreplay.ActionsBatch, error) bool) {
		for batch, err := range inner {
			if err != nil {
				yield(logreplay.ActionsBatch{}, err)
				return
			}
			if !yield(logreplay.ActionsBatch{Actions: batch}, nil) {
				return
			}
			if multiPart || !needsFileActions {
				continue
			}

			sidecars, err := extractSidecarRefs(batch)
			if err != nil {
				yield(logreplay.ActionsBatch{}, err)
				return
			}
			if len(sidecars) == 0 {
				continue
			}
			sidecarMetas := make([]storage.FileMeta, len(sidecars))
			for i, sc := range sidecars {
				sidecarMetas[i] = s.sidecarFileMeta(sc)
			}
			for scBatch, err := range eng.ParquetHandler().ReadParquetFiles(sidecarMetas, projection, predicate) {
				if err != nil {
					yield(logreplay.ActionsBatch{}, err)
					return
				}
				if !yield(logreplay.ActionsBatch{Actions: scBatch}, nil) {
					return
				}
			}
		}
	}, nil
}

// readCheckpointFiles dispatches to the right format handler; uuid
// checkpoints may be encoded as JSON.
func (s *LogSegment) readCheckpointFiles(eng engine.Engine, metas []storage.FileMeta, extension string, projection []string, predicate engine.Predicate) iter.Seq2[rowbatch.Batch, error] {
	if extension == "json" {
		return eng.JSONHandler().ReadJSONFiles(metas, projection, predicate)
	}
	return eng.ParquetHandler().ReadParquetFiles(metas, projection, predicate)
}

// sidecarFileMeta resolves a sidecar reference to a file handle. Relative
// references live under the log root's _sidecars directory; absolute ones
// are used as-is.
func (s *LogSegment) sidecarFileMeta(sc *actions.Sidecar) storage.FileMeta {
	path := sc.Path
	if !strings.Contains(path, "://") && !strings.HasPrefix(path, "/") {
		path = s.LogRoot + "/" + logpath.SidecarDirname + "/" + path
	}
	return storage.FileMeta{
		Path:         path,
		Size:         sc.SizeInBytes,
		LastModified: modTime(sc.ModificationTime),
	}
}

// extractSidecarRefs collects the sidecar actions of one checkpoint batch.
func extractSidecarRefs(batch rowbatch.Batch) ([]*actions.Sidecar, error) {
	var refs []*actions.Sidecar
	for i := 0; i < batch.NumRows(); i++ {
		path, ok, err := batch.GetString(i, "sidecar.path")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		size, _, err := batch.GetLong(i, "sidecar.sizeInBytes")
		if err != nil {
			return nil, err
		}
		modificationTime, _, err := batch.GetLong(i, "sidecar.modificationTime")
		if err != nil {
			return nil, err
		}
		refs = append(refs, &actions.Sidecar{
			Path:             path,
			SizeInBytes:      size,
			ModificationTime: modificationTime,
		})
	}
	return refs, nil
}

func emptyBatchSeq() iter.Seq2[logreplay.ActionsBatch, error] {
	return func(yield func(logreplay.ActionsBatch, error) bool) {}
}
