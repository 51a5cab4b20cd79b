package actions

import (
	"fmt"

	"deltaglass.dev/deltaglass/rowbatch"
)

// ProtocolAt reads a protocol action from one row of a batch, returning
// present=false when the row carries no protocol.
func ProtocolAt(b rowbatch.Batch, row int) (*Protocol, bool, error) {
	minReader, ok, err := b.GetInt(row, "protocol.minReaderVersion")
	if err != nil || !ok {
		return nil, false, err
	}
	minWriter, ok, err := b.GetInt(row, "protocol.minWriterVersion")
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("protocol action missing minWriterVersion")
	}
	readerFeatures, _, err := b.GetStringList(row, "protocol.readerFeatures")
	if err != nil {
		return nil, false, err
	}
	writerFeatures, _, err := b.GetStringList(row, "protocol.writerFeatures")
	if err != nil {
		return nil, false, err
	}
	return &Protocol{
		MinReaderVersion: minReader,
		MinWriterVersion: minWriter,
		ReaderFeatures:   readerFeatures,
		WriterFeatures:   writerFeatures,
	}, true, nil
}

// MetadataAt reads a metaData action from one row of a batch, returning
// present=false when the row carries no metadata.
func MetadataAt(b rowbatch.Batch, row int) (*Metadata, bool, error) {
	id, ok, err := b.GetString(row, "metaData.id")
	if err != nil || !ok {
		return nil, false, err
	}
	schemaString, ok, err := b.GetString(row, "metaData.schemaString")
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("metaData action %s missing schemaString", id)
	}
	partitionColumns, _, err := b.GetStringList(row, "metaData.partitionColumns")
	if err != nil {
		return nil, false, err
	}
	configuration, _, err := b.GetStringMap(row, "metaData.configuration")
	if err != nil {
		return nil, false, err
	}
	provider, _, err := b.GetString(row, "metaData.format.provider")
	if err != nil {
		return nil, false, err
	}

	m := &Metadata{
		ID:               id,
		Format:           Format{Provider: provider},
		SchemaString:     schemaString,
		PartitionColumns: partitionColumns,
		Configuration:    configuration,
	}
	if name, ok, err := b.GetString(row, "metaData.name"); err != nil {
		return nil, false, err
	} else if ok {
		m.Name = &name
	}
	if desc, ok, err := b.GetString(row, "metaData.description"); err != nil {
		return nil, false, err
	} else if ok {
		m.Description = &desc
	}
	if created, ok, err := b.GetLong(row, "metaData.createdTime"); err != nil {
		return nil, false, err
	} else if ok {
		m.CreatedTime = &created
	}
	return m, true, nil
}

// DeletionVectorAt reads the deletion vector descriptor nested under the
// given action column ("add" or "remove") at one row.
func DeletionVectorAt(b rowbatch.Batch, row int, action string) (*DeletionVectorDescriptor, bool, error) {
	storageType, ok, err := b.GetString(row, action+".deletionVector.storageType")
	if err != nil || !ok {
		return nil, false, err
	}
	pathOrInline, ok, err := b.GetString(row, action+".deletionVector.pathOrInlineDv")
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("deletion vector on %s missing pathOrInlineDv", action)
	}
	sizeInBytes, _, err := b.GetInt(row, action+".deletionVector.sizeInBytes")
	if err != nil {
		return nil, false, err
	}
	cardinality, _, err := b.GetLong(row, action+".deletionVector.cardinality")
	if err != nil {
		return nil, false, err
	}
	dv := &DeletionVectorDescriptor{
		StorageType:    storageType,
		PathOrInlineDV: pathOrInline,
		SizeInBytes:    sizeInBytes,
		Cardinality:    cardinality,
	}
	if offset, ok, err := b.GetInt(row, action+".deletionVector.offset"); err != nil {
		return nil, false, err
	} else if ok {
		dv.Offset = &offset
	}
	return dv, true, nil
}
