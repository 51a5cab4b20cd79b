// Package logreplay implements the generic newest-to-oldest replay engine
// over action batches. The ordering contract is load-bearing: batches must
// arrive strictly newest first (commits descending, then the checkpoint) so
// that first-seen-wins dedup produces the correct live file set.
package logreplay

import (
	"iter"

	"deltaglass.dev/deltaglass/rowbatch"
)

// ActionsBatch is one unit of replay input. IsLogBatch distinguishes batches
// from JSON commit files, which need tombstone tracking at file granularity,
// from checkpoint batches which are already internally deduplicated.
type ActionsBatch struct {
	Actions    rowbatch.Batch
	IsLogBatch bool
}

// BatchFilter is the opaque data-skipping hook. It computes an initial
// selection for a batch from file statistics; rows it deselects are
// guaranteed irrelevant to the query.
type BatchFilter interface {
	Apply(b rowbatch.Batch) (rowbatch.Selection, error)
}

// Output is what a processor produces per batch. Batches with no selected
// rows are suppressed by the driver so consumers never see them.
type Output interface {
	HasSelectedRows() bool
}

// Processor is the pluggable per-batch step of replay.
type Processor[O Output] interface {
	// ProcessBatch consumes one batch with its initial selection and
	// produces consumer-specific output. Called in strict input order.
	ProcessBatch(b ActionsBatch, sel rowbatch.Selection) (O, error)

	// Filter returns the data-skipping filter, or nil when unconfigured.
	Filter() BatchFilter
}

// Process drives a processor over a batch sequence. The result is a lazy,
// single-use sequence; an error from the source or the processor terminates
// it immediately.
func Process[O Output](batches iter.Seq2[ActionsBatch, error], p Processor[O]) iter.Seq2[O, error] {
	return func(yield func(O, error) bool) {
		var zero O
		for batch, err := range batches {
			if err != nil {
				yield(zero, err)
				return
			}

			sel := rowbatch.NewSelection(batch.Actions.NumRows(), true)
			if f := p.Filter(); f != nil {
				sel, err = f.Apply(batch.Actions)
				if err != nil {
					yield(zero, err)
					return
				}
				if !sel.Any() {
					continue
				}
			}

			out, err := p.ProcessBatch(batch, sel)
			if err != nil {
				yield(zero, err)
				return
			}
			if !out.HasSelectedRows() {
				continue
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
