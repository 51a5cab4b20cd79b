package actions

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedCRC marks a version summary (.crc) file missing its protocol or
// metadata. A present-but-incomplete summary is fatal: falling back silently
// would hide storage corruption.
var ErrMalformedCRC = errors.New("crc file missing protocol or metadata")

// CRCInfo is the decoded content of a {version}.crc summary file. The
// auxiliary counters are carried through but not interpreted here.
type CRCInfo struct {
	TableSizeBytes int64     `json:"tableSizeBytes"`
	NumFiles       int64     `json:"numFiles"`
	NumMetadata    int64     `json:"numMetadata"`
	NumProtocol    int64     `json:"numProtocol"`
	Metadata       *Metadata `json:"metadata"`
	Protocol       *Protocol `json:"protocol"`
}

func ParseCRC(data []byte) (*CRCInfo, error) {
	var info CRCInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding crc file: %w", err)
	}
	if info.Metadata == nil || info.Protocol == nil {
		return nil, ErrMalformedCRC
	}
	return &info, nil
}

// LastCheckpointHint is the decoded _last_checkpoint file: a pointer to a
// recent checkpoint that lets listing skip most of the log directory.
type LastCheckpointHint struct {
	Version       uint64  `json:"version"`
	Size          int64   `json:"size"`
	Parts         *uint32 `json:"parts,omitempty"`
	SizeInBytes   *int64  `json:"sizeInBytes,omitempty"`
	NumOfAddFiles *int64  `json:"numOfAddFiles,omitempty"`
}

func ParseLastCheckpointHint(data []byte) (*LastCheckpointHint, error) {
	var hint LastCheckpointHint
	if err := json.Unmarshal(data, &hint); err != nil {
		return nil, fmt.Errorf("decoding _last_checkpoint: %w", err)
	}
	return &hint, nil
}

// PartCount normalizes the optional parts field: a hint without it names a
// single-part checkpoint.
func (h *LastCheckpointHint) PartCount() uint32 {
	if h.Parts == nil {
		return 1
	}
	return *h.Parts
}
