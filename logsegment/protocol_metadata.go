package logsegment

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/engine"
	"deltaglass.dev/deltaglass/logpath"
)

var crcShortcutHits = metrics.NewCounter("deltaglass_crc_shortcut_hits")

// ProtocolAndMetadata resolves the table's protocol and metadata at the
// segment's end version. Resolution order:
//
//  1. A CRC at exactly the end version answers directly with zero replay.
//  2. A CRC at or newer than the checkpoint bounds replay to the commits
//     after it, falling back to the CRC for whichever action the tail lacks.
//  3. Otherwise full replay: commits newest first, then the checkpoint,
//     stopping each search at its first occurrence.
//
// A CRC older than the checkpoint version is ignored entirely.
func (s *LogSegment) ProtocolAndMetadata(eng engine.Engine) (*actions.Protocol, *actions.Metadata, error) {
	crc := s.LatestCRCFile

	if crc != nil && crc.Version == s.EndVersion {
		info, err := s.readCRC(eng, crc)
		if err != nil {
			return nil, nil, err
		}
		crcShortcutHits.Inc()
		return info.Protocol, info.Metadata, nil
	}

	if crc != nil && (s.CheckpointVersion == nil || crc.Version >= *s.CheckpointVersion) {
		pruned := s.pruneForCRC(crc.Version)
		protocol, metadata, err := pruned.searchProtocolAndMetadata(eng)
		if err != nil {
			return nil, nil, err
		}
		if protocol != nil && metadata != nil {
			return protocol, metadata, nil
		}
		info, err := s.readCRC(eng, crc)
		if err != nil {
			return nil, nil, err
		}
		if protocol == nil {
			protocol = info.Protocol
		}
		if metadata == nil {
			metadata = info.Metadata
		}
		return protocol, metadata, nil
	}

	protocol, metadata, err := s.searchProtocolAndMetadata(eng)
	if err != nil {
		return nil, nil, err
	}
	if protocol == nil {
		return nil, nil, ErrMissingProtocol
	}
	if metadata == nil {
		return nil, nil, ErrMissingMetadata
	}
	return protocol, metadata, nil
}

// searchProtocolAndMetadata replays the segment newest first and returns the
// first protocol and first metadata encountered. Either may be nil when the
// replayed range carries none; callers decide whether that is fatal.
func (s *LogSegment) searchProtocolAndMetadata(eng engine.Engine) (*actions.Protocol, *actions.Metadata, error) {
	stream, err := s.ReplayForMetadata(eng)
	if err != nil {
		return nil, nil, err
	}

	var protocol *actions.Protocol
	var metadata *actions.Metadata
	for batch, err := range stream {
		if err != nil {
			return nil, nil, err
		}
		for i := 0; i < batch.Actions.NumRows(); i++ {
			if protocol == nil {
				p, ok, err := actions.ProtocolAt(batch.Actions, i)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					protocol = p
				}
			}
			if metadata == nil {
				m, ok, err := actions.MetadataAt(batch.Actions, i)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					metadata = m
				}
			}
			if protocol != nil && metadata != nil {
				return protocol, metadata, nil
			}
		}
	}
	return protocol, metadata, nil
}

func (s *LogSegment) readCRC(eng engine.Engine, crc *logpath.ParsedLogPath) (*actions.CRCInfo, error) {
	data, err := eng.Store().Read(crc.Location.Path)
	if err != nil {
		return nil, fmt.Errorf("reading crc file %s: %w", crc.Filename, err)
	}
	info, err := actions.ParseCRC(data)
	if err != nil {
		return nil, fmt.Errorf("crc file %s: %w", crc.Filename, err)
	}
	return info, nil
}
