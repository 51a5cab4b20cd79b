// Package tablechanges specializes log replay for Change Data Feed queries.
// Commits are processed one at a time, oldest first, each in two passes: a
// prepare phase that classifies the commit's file actions and validates CDF
// support, then a selection pass producing the change rows.
package tablechanges

import (
	"fmt"
	"iter"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logpath"
	"deltaglass.dev/deltaglass/logreplay"
	"deltaglass.dev/deltaglass/rowbatch"
	"deltaglass.dev/deltaglass/schema"
	"deltaglass.dev/deltaglass/storage"
)

// ScanMetadata is the change feed output for one batch of one commit. Rows
// marked by Selection must be processed; others must be ignored. RemoveDVs
// maps remove-action paths to their deletion vectors for removes that pair
// with an add in the same commit, meaning the pair is a deletion vector
// update rather than a true delete.
type ScanMetadata struct {
	Actions         rowbatch.Batch
	Selection       rowbatch.Selection
	RemoveDVs       map[string]*actions.DeletionVectorDescriptor
	CommitVersion   uint64
	CommitTimestamp int64
}

func (m ScanMetadata) HasSelectedRows() bool {
	return m.Selection.Any()
}

// ActionIter yields the change feed metadata for the given ordered,
// contiguous commit files. tableSchema is the schema of the table at the
// range's end version; any commit whose metadata declares a different schema
// fails the scan.
func ActionIter(
	eng engine.Engine,
	commitFiles []*logpath.ParsedLogPath,
	tableSchema *schema.StructType,
	filter logreplay.BatchFilter,
) iter.Seq2[ScanMetadata, error] {
	return func(yield func(ScanMetadata, error) bool) {
		for _, commit := range commitFiles {
			prep, err := preparePhase(eng, commit, tableSchema)
			if err != nil {
				yield(ScanMetadata{}, err)
				return
			}

			proc := &commitProcessor{
				prep:            prep,
				filter:          filter,
				commitVersion:   commit.Version,
				commitTimestamp: commit.Location.LastModified.UnixMilli(),
			}
			batches := commitBatches(eng, commit.Location)
			for out, err := range logreplay.Process(batches, proc) {
				if !yield(out, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}

func commitBatches(eng engine.Engine, location storage.FileMeta) iter.Seq2[logreplay.ActionsBatch, error] {
	projection := []string{actions.AddName, actions.RemoveName, actions.CdcName}
	inner := eng.JSONHandler().ReadJSONFiles([]storage.FileMeta{location}, projection, nil)
	return func(yield func(logreplay.ActionsBatch, error) bool) {
		for batch, err := range inner {
			if err != nil {
				yield(logreplay.ActionsBatch{}, err)
				return
			}
			if !yield(logreplay.ActionsBatch{Actions: batch, IsLogBatch: true}, nil) {
				return
			}
		}
	}
}

// prepared is the result of one commit's prepare phase.
type prepared struct {
	hasCdcAction bool
	removeDVs    map[string]*actions.DeletionVectorDescriptor
}

// preparePhase scans a whole commit before selection. Data skipping cannot
// run yet: an add may carry statistics while its paired remove does not, and
// skipping only the add would leave a remove that reads as a true delete.
// Deletion vector pairing is resolved only after the full commit is seen.
func preparePhase(eng engine.Engine, commit *logpath.ParsedLogPath, tableSchema *schema.StructType) (*prepared, error) {
	projection := []string{actions.AddName, actions.RemoveName, actions.CdcName, actions.MetadataName, actions.ProtocolName}
	batches := eng.JSONHandler().ReadJSONFiles([]storage.FileMeta{commit.Location}, projection, nil)

	addPaths := make(map[string]struct{})
	removeDVs := make(map[string]*actions.DeletionVectorDescriptor)
	hasCdcAction := false

	for batch, err := range batches {
		if err != nil {
			return nil, err
		}
		for i := 0; i < batch.NumRows(); i++ {
			if path, ok, err := batch.GetString(i, "add.path"); err != nil {
				return nil, err
			} else if ok {
				dataChange, _, err := batch.GetBool(i, "add.dataChange")
				if err != nil {
					return nil, err
				}
				if dataChange {
					addPaths[path] = struct{}{}
				}
				continue
			}

			if path, ok, err := batch.GetString(i, "remove.path"); err != nil {
				return nil, err
			} else if ok {
				dataChange, _, err := batch.GetBool(i, "remove.dataChange")
				if err != nil {
					return nil, err
				}
				if dataChange {
					dv, _, err := actions.DeletionVectorAt(batch, i, actions.RemoveName)
					if err != nil {
						return nil, err
					}
					removeDVs[path] = dv
				}
				continue
			}

			if _, ok, err := batch.GetString(i, "cdc.path"); err != nil {
				return nil, err
			} else if ok {
				hasCdcAction = true
				continue
			}

			if m, ok, err := actions.MetadataAt(batch, i); err != nil {
				return nil, err
			} else if ok {
				if err := checkCommitMetadata(commit.Version, m, tableSchema); err != nil {
					return nil, err
				}
				continue
			}

			if p, ok, err := actions.ProtocolAt(batch, i); err != nil {
				return nil, err
			} else if ok {
				if err := ensureCdfReadSupported(commit.Version, p); err != nil {
					return nil, err
				}
			}
		}
	}

	// CDC actions alone define the change set for the commit; add/remove
	// pairing becomes irrelevant. Otherwise only removes that pair with an
	// add in this commit mark deletion vector updates.
	if hasCdcAction {
		clear(removeDVs)
	} else {
		for path := range removeDVs {
			if _, ok := addPaths[path]; !ok {
				delete(removeDVs, path)
			}
		}
	}

	return &prepared{hasCdcAction: hasCdcAction, removeDVs: removeDVs}, nil
}

func checkCommitMetadata(version uint64, m *actions.Metadata, tableSchema *schema.StructType) error {
	commitSchema, err := schema.Parse(m.SchemaString)
	if err != nil {
		return fmt.Errorf("parsing schema of commit %d: %w", version, err)
	}
	// Schema compatibility is exact equality for now; permissive schema
	// evolution would relax this.
	if !tableSchema.Equal(commitSchema) {
		return &IncompatibleSchemaError{
			Version:      version,
			TableSchema:  tableSchema.String(),
			CommitSchema: m.SchemaString,
		}
	}

	props := actions.ParseTableProperties(m.Configuration)
	if !props.EnableChangeDataFeed {
		return &UnsupportedError{Version: version, Feature: "delta.enableChangeDataFeed is not enabled"}
	}
	if props.ColumnMappingMode != "none" {
		return &UnsupportedError{Version: version, Feature: "column mapping mode " + props.ColumnMappingMode}
	}
	return nil
}

// cdfAllowedReaderFeatures are the reader features a version 3 protocol may
// declare while still supporting change feed reads.
var cdfAllowedReaderFeatures = map[string]struct{}{
	"deletionVectors":     {},
	"timestampNtz":        {},
	"vacuumProtocolCheck": {},
	"v2Checkpoint":        {},
}

func ensureCdfReadSupported(version uint64, p *actions.Protocol) error {
	switch p.MinReaderVersion {
	case 1:
		return nil
	case 3:
		for _, f := range p.ReaderFeatures {
			if _, ok := cdfAllowedReaderFeatures[f]; !ok {
				return &UnsupportedError{Version: version, Feature: "reader feature " + f}
			}
		}
		return nil
	default:
		return &UnsupportedError{
			Version: version,
			Feature: fmt.Sprintf("reader version %d", p.MinReaderVersion),
		}
	}
}

// commitProcessor is the selection pass over one commit's batches.
type commitProcessor struct {
	prep            *prepared
	filter          logreplay.BatchFilter
	commitVersion   uint64
	commitTimestamp int64
}

func (p *commitProcessor) Filter() logreplay.BatchFilter {
	return p.filter
}

func (p *commitProcessor) ProcessBatch(b logreplay.ActionsBatch, sel rowbatch.Selection) (ScanMetadata, error) {
	batch := b.Actions
	for i := 0; i < batch.NumRows(); i++ {
		if !sel[i] {
			continue
		}
		selected, err := p.selectRow(batch, i)
		if err != nil {
			return ScanMetadata{}, err
		}
		sel[i] = selected
	}
	return ScanMetadata{
		Actions:         batch,
		Selection:       sel,
		RemoveDVs:       p.prep.removeDVs,
		CommitVersion:   p.commitVersion,
		CommitTimestamp: p.commitTimestamp,
	}, nil
}

func (p *commitProcessor) selectRow(batch rowbatch.Batch, row int) (bool, error) {
	if p.prep.hasCdcAction {
		_, ok, err := batch.GetString(row, "cdc.path")
		return ok, err
	}

	if _, ok, err := batch.GetString(row, "add.path"); err != nil {
		return false, err
	} else if ok {
		dataChange, _, err := batch.GetBool(row, "add.dataChange")
		return dataChange, err
	}

	if path, ok, err := batch.GetString(row, "remove.path"); err != nil {
		return false, err
	} else if ok {
		dataChange, _, err := batch.GetBool(row, "remove.dataChange")
		if err != nil {
			return false, err
		}
		// A remove paired with an add of the same path is a deletion vector
		// update, not a delete of remaining rows.
		_, isDvUpdate := p.prep.removeDVs[path]
		return dataChange && !isDvUpdate, nil
	}

	return false, nil
}

var _ logreplay.Processor[ScanMetadata] = (*commitProcessor)(nil)
