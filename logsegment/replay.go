package logsegment

import (
	"iter"
	"time"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/logreplay"
	"deltaglass.dev/deltaglass/storage"
)

// Replay streams the segment's action batches in replay order: the commit
// cover newest first, then the checkpoint stream. The result is lazy and
// single-use; file reads happen as batches are pulled.
func (s *LogSegment) Replay(eng engine.Engine, projection []string, predicate engine.Predicate) (iter.Seq2[logreplay.ActionsBatch, error], error) {
	checkpointStream, err := s.CreateCheckpointStream(eng, projection, predicate)
	if err != nil {
		return nil, err
	}

	commitMetas := fileMetas(s.FindCommitCover())
	commitStream := eng.JSONHandler().ReadJSONFiles(commitMetas, projection, predicate)

	return func(yield func(logreplay.ActionsBatch, error) bool) {
		for batch, err := range commitStream {
			if err != nil {
				yield(logreplay.ActionsBatch{}, err)
				return
			}
			if !yield(logreplay.ActionsBatch{Actions: batch, IsLogBatch: true}, nil) {
				return
			}
		}
		for batch, err := range checkpointStream {
			if !yield(batch, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}, nil
}

// ReplayForMetadata streams batches projected to the narrow
// protocol/metadata/txn schema. The narrow projection lets the parquet
// handler's statistics skip whole checkpoint parts that cannot contain the
// sought actions.
func (s *LogSegment) ReplayForMetadata(eng engine.Engine) (iter.Seq2[logreplay.ActionsBatch, error], error) {
	return s.Replay(eng, actions.MetadataProjection(), nil)
}

func fileMetas(paths []*logpath.ParsedLogPath) []storage.FileMeta {
	metas := make([]storage.FileMeta, len(paths))
	for i, p := range paths {
		metas[i] = p.Location
	}
	return metas
}

func modTime(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}
