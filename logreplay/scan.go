package logreplay

import (
	"fmt"
	"iter"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/rowbatch"
)

// ScanBatch is the snapshot-scan output for one batch: the actions with a
// selection vector marking the rows that are live adds.
type ScanBatch struct {
	Actions    rowbatch.Batch
	Selection  rowbatch.Selection
	IsLogBatch bool
}

func (s ScanBatch) HasSelectedRows() bool {
	return s.Selection.Any()
}

// ScanProcessor reconciles file actions into the live file set. Adds are
// selected on first occurrence; removes act as tombstones suppressing older
// adds of the same file version. Remove rows themselves are never selected.
type ScanProcessor struct {
	tracker *Tracker
	filter  BatchFilter
}

func NewScanProcessor(filter BatchFilter) *ScanProcessor {
	return &ScanProcessor{
		tracker: NewTracker(),
		filter:  filter,
	}
}

func (p *ScanProcessor) Filter() BatchFilter {
	return p.filter
}

func (p *ScanProcessor) ProcessBatch(b ActionsBatch, sel rowbatch.Selection) (ScanBatch, error) {
	visitor := &addRemoveDedupVisitor{
		tracker:    p.tracker,
		selection:  sel,
		isLogBatch: b.IsLogBatch,
	}
	if err := rowbatch.VisitRows(b.Actions, visitor); err != nil {
		return ScanBatch{}, err
	}
	return ScanBatch{
		Actions:    b.Actions,
		Selection:  visitor.selection,
		IsLogBatch: b.IsLogBatch,
	}, nil
}

var _ Processor[ScanBatch] = (*ScanProcessor)(nil)

// addRemoveDedupVisitor applies dedup to one batch. Removes are tracked even
// when data skipping deselected their row: a remove carries no stats, so the
// filter cannot be trusted to keep it, and dropping the tombstone would let
// an older add resurrect the file.
type addRemoveDedupVisitor struct {
	tracker    *Tracker
	selection  rowbatch.Selection
	isLogBatch bool
}

func (v *addRemoveDedupVisitor) Columns() []rowbatch.Column {
	return []rowbatch.Column{
		rowbatch.Col("add.path", rowbatch.String),
		rowbatch.Col("add.deletionVector.storageType", rowbatch.String),
		rowbatch.Col("add.deletionVector.pathOrInlineDv", rowbatch.String),
		rowbatch.Col("add.deletionVector.offset", rowbatch.Int),
		rowbatch.Col("remove.path", rowbatch.String),
		rowbatch.Col("remove.deletionVector.storageType", rowbatch.String),
		rowbatch.Col("remove.deletionVector.pathOrInlineDv", rowbatch.String),
		rowbatch.Col("remove.deletionVector.offset", rowbatch.Int),
	}
}

func (v *addRemoveDedupVisitor) Visit(rowCount int, g *rowbatch.Getters) error {
	for i := 0; i < rowCount; i++ {
		addPath, isAdd, err := g.String(i, 0)
		if err != nil {
			return err
		}
		if isAdd {
			key, err := v.keyAt(g, i, 1)
			if err != nil {
				return err
			}
			key.Path = addPath
			if v.tracker.CheckAndRecord(key) {
				v.selection[i] = false
			}
			continue
		}

		removePath, isRemove, err := g.String(i, 4)
		if err != nil {
			return err
		}
		if isRemove {
			// Checkpoint batches only hold expired tombstones; they never
			// suppress anything and are not recorded.
			if v.isLogBatch {
				key, err := v.keyAt(g, i, 5)
				if err != nil {
					return err
				}
				key.Path = removePath
				v.tracker.Record(key)
			}
			v.selection[i] = false
			continue
		}

		// Not a file action.
		v.selection[i] = false
	}
	return nil
}

// keyAt assembles the deletion vector part of a dedup key from the three DV
// getters starting at base.
func (v *addRemoveDedupVisitor) keyAt(g *rowbatch.Getters, row, base int) (FileActionKey, error) {
	storageType, ok, err := g.String(row, base)
	if err != nil || !ok {
		return FileActionKey{}, err
	}
	pathOrInline, ok, err := g.String(row, base+1)
	if err != nil {
		return FileActionKey{}, err
	}
	if !ok {
		return FileActionKey{}, fmt.Errorf("deletion vector missing pathOrInlineDv")
	}
	dv := actions.DeletionVectorDescriptor{
		StorageType:    storageType,
		PathOrInlineDV: pathOrInline,
	}
	if offset, ok, err := g.Int(row, base+2); err != nil {
		return FileActionKey{}, err
	} else if ok {
		dv.Offset = &offset
	}
	return FileActionKey{DVUniqueID: dv.UniqueID()}, nil
}

// Scan runs the scan processor over a batch stream, yielding the live-add
// batches newest first.
func Scan(batches iter.Seq2[ActionsBatch, error], filter BatchFilter) iter.Seq2[ScanBatch, error] {
	return Process(batches, NewScanProcessor(filter))
}
