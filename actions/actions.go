// Package actions defines the Delta log action records: the rows of commit,
// compaction, checkpoint, and sidecar files. The struct tags cover both
// encodings a log can carry, line-delimited JSON and parquet.
package actions

import "fmt"

// Top-level action column names as they appear in log files.
const (
	AddName        = "add"
	RemoveName     = "remove"
	CdcName        = "cdc"
	MetadataName   = "metaData"
	ProtocolName   = "protocol"
	TxnName        = "txn"
	SidecarName    = "sidecar"
	CommitInfoName = "commitInfo"
)

// LogEntry is one row of a log file. Exactly one of the fields is set per
// well-formed row.
type LogEntry struct {
	Add      *Add            `json:"add,omitempty" parquet:"add,optional"`
	Remove   *Remove         `json:"remove,omitempty" parquet:"remove,optional"`
	Cdc      *Cdc            `json:"cdc,omitempty" parquet:"cdc,optional"`
	Metadata *Metadata       `json:"metaData,omitempty" parquet:"metaData,optional"`
	Protocol *Protocol       `json:"protocol,omitempty" parquet:"protocol,optional"`
	Txn      *SetTransaction `json:"txn,omitempty" parquet:"txn,optional"`
	Sidecar  *Sidecar        `json:"sidecar,omitempty" parquet:"sidecar,optional"`
}

type Protocol struct {
	MinReaderVersion int32    `json:"minReaderVersion" parquet:"minReaderVersion"`
	MinWriterVersion int32    `json:"minWriterVersion" parquet:"minWriterVersion"`
	ReaderFeatures   []string `json:"readerFeatures,omitempty" parquet:"readerFeatures,optional,list"`
	WriterFeatures   []string `json:"writerFeatures,omitempty" parquet:"writerFeatures,optional,list"`
}

// HasReaderFeature reports whether the protocol declares the named reader
// feature. Only meaningful at reader version 3 where features are explicit.
func (p *Protocol) HasReaderFeature(name string) bool {
	for _, f := range p.ReaderFeatures {
		if f == name {
			return true
		}
	}
	return false
}

type Format struct {
	Provider string            `json:"provider" parquet:"provider"`
	Options  map[string]string `json:"options,omitempty" parquet:"options,optional"`
}

type Metadata struct {
	ID               string            `json:"id" parquet:"id"`
	Name             *string           `json:"name,omitempty" parquet:"name,optional"`
	Description      *string           `json:"description,omitempty" parquet:"description,optional"`
	Format           Format            `json:"format" parquet:"format"`
	SchemaString     string            `json:"schemaString" parquet:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns" parquet:"partitionColumns,list"`
	CreatedTime      *int64            `json:"createdTime,omitempty" parquet:"createdTime,optional"`
	Configuration    map[string]string `json:"configuration,omitempty" parquet:"configuration,optional"`
}

type Add struct {
	Path                    string                    `json:"path" parquet:"path"`
	PartitionValues         map[string]string         `json:"partitionValues" parquet:"partitionValues"`
	Size                    int64                     `json:"size" parquet:"size"`
	ModificationTime        int64                     `json:"modificationTime" parquet:"modificationTime"`
	DataChange              bool                      `json:"dataChange" parquet:"dataChange"`
	Stats                   *string                   `json:"stats,omitempty" parquet:"stats,optional"`
	Tags                    map[string]string         `json:"tags,omitempty" parquet:"tags,optional"`
	DeletionVector          *DeletionVectorDescriptor `json:"deletionVector,omitempty" parquet:"deletionVector,optional"`
	BaseRowID               *int64                    `json:"baseRowId,omitempty" parquet:"baseRowId,optional"`
	DefaultRowCommitVersion *int64                    `json:"defaultRowCommitVersion,omitempty" parquet:"defaultRowCommitVersion,optional"`
}

type Remove struct {
	Path                 string                    `json:"path" parquet:"path"`
	DeletionTimestamp    *int64                    `json:"deletionTimestamp,omitempty" parquet:"deletionTimestamp,optional"`
	DataChange           bool                      `json:"dataChange" parquet:"dataChange"`
	ExtendedFileMetadata *bool                     `json:"extendedFileMetadata,omitempty" parquet:"extendedFileMetadata,optional"`
	PartitionValues      map[string]string         `json:"partitionValues,omitempty" parquet:"partitionValues,optional"`
	Size                 *int64                    `json:"size,omitempty" parquet:"size,optional"`
	Tags                 map[string]string         `json:"tags,omitempty" parquet:"tags,optional"`
	DeletionVector       *DeletionVectorDescriptor `json:"deletionVector,omitempty" parquet:"deletionVector,optional"`
}

type Cdc struct {
	Path            string            `json:"path" parquet:"path"`
	PartitionValues map[string]string `json:"partitionValues" parquet:"partitionValues"`
	Size            int64             `json:"size" parquet:"size"`
	DataChange      bool              `json:"dataChange" parquet:"dataChange"`
	Tags            map[string]string `json:"tags,omitempty" parquet:"tags,optional"`
}

type SetTransaction struct {
	AppID       string `json:"appId" parquet:"appId"`
	Version     int64  `json:"version" parquet:"version"`
	LastUpdated *int64 `json:"lastUpdated,omitempty" parquet:"lastUpdated,optional"`
}

// Sidecar references a file under _delta_log/_sidecars holding file actions
// out-of-line from the checkpoint that names it.
type Sidecar struct {
	Path             string            `json:"path" parquet:"path"`
	SizeInBytes      int64             `json:"sizeInBytes" parquet:"sizeInBytes"`
	ModificationTime int64             `json:"modificationTime" parquet:"modificationTime"`
	Tags             map[string]string `json:"tags,omitempty" parquet:"tags,optional"`
}

type DeletionVectorDescriptor struct {
	StorageType    string `json:"storageType" parquet:"storageType"`
	PathOrInlineDV string `json:"pathOrInlineDv" parquet:"pathOrInlineDv"`
	Offset         *int32 `json:"offset,omitempty" parquet:"offset,optional"`
	SizeInBytes    int32  `json:"sizeInBytes" parquet:"sizeInBytes"`
	Cardinality    int64  `json:"cardinality" parquet:"cardinality"`
}

// UniqueID distinguishes two versions of the same data file that differ only
// in their deletion vector. Used as part of the replay dedup key.
func (d *DeletionVectorDescriptor) UniqueID() string {
	if d == nil {
		return ""
	}
	if d.Offset != nil {
		return fmt.Sprintf("%s%s@%d", d.StorageType, d.PathOrInlineDV, *d.Offset)
	}
	return d.StorageType + d.PathOrInlineDV
}

// LogProjection is the full action schema of a log file.
func LogProjection() []string {
	return []string{AddName, RemoveName, CdcName, MetadataName, ProtocolName, TxnName, SidecarName}
}

// MetadataProjection is the narrow schema used when replay only searches for
// the table's protocol and metadata.
func MetadataProjection() []string {
	return []string{ProtocolName, MetadataName, TxnName}
}

// FileActionProjection is the schema a snapshot scan reads: file actions plus
// the sidecar column so checkpoint indirection stays visible.
func FileActionProjection() []string {
	return []string{AddName, RemoveName, SidecarName}
}
