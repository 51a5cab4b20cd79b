package actions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltaglass.dev/deltaglass/actions"
	"deltaglass.dev/deltaglass/rowbatch"
)

// Rows mirror the shape JSON decoding produces: nested maps with float64
// numbers.
func TestProtocolAt(t *testing.T) {
	batch := rowbatch.NewMapBatch([]map[string]any{
		{"add": map[string]any{"path": "f1.parquet"}},
		{"protocol": map[string]any{
			"minReaderVersion": float64(3),
			"minWriterVersion": float64(7),
			"readerFeatures":   []any{"deletionVectors"},
		}},
	})

	_, ok, err := actions.ProtocolAt(batch, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	p, ok, err := actions.ProtocolAt(batch, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(3), p.MinReaderVersion)
	assert.Equal(t, int32(7), p.MinWriterVersion)
	assert.Equal(t, []string{"deletionVectors"}, p.ReaderFeatures)
}

func TestMetadataAt(t *testing.T) {
	batch := rowbatch.NewMapBatch([]map[string]any{
		{"metaData": map[string]any{
			"id":               "m1",
			"format":           map[string]any{"provider": "parquet"},
			"schemaString":     `{"type":"struct","fields":[]}`,
			"partitionColumns": []any{"region"},
			"createdTime":      float64(1718000000000),
			"configuration":    map[string]any{"delta.enableChangeDataFeed": "true"},
		}},
	})

	m, ok, err := actions.MetadataAt(batch, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "parquet", m.Format.Provider)
	assert.Equal(t, []string{"region"}, m.PartitionColumns)
	assert.Equal(t, map[string]string{"delta.enableChangeDataFeed": "true"}, m.Configuration)
	require.NotNil(t, m.CreatedTime)
	assert.Equal(t, int64(1718000000000), *m.CreatedTime)
}

func TestMetadataAtMissingSchemaString(t *testing.T) {
	batch := rowbatch.NewMapBatch([]map[string]any{
		{"metaData": map[string]any{"id": "m1"}},
	})
	_, _, err := actions.MetadataAt(batch, 0)
	assert.Error(t, err)
}

func TestDeletionVectorAt(t *testing.T) {
	batch := rowbatch.NewMapBatch([]map[string]any{
		{"remove": map[string]any{
			"path": "f1.parquet",
			"deletionVector": map[string]any{
				"storageType":    "u",
				"pathOrInlineDv": "ab^-aqEH",
				"offset":         float64(4),
				"sizeInBytes":    float64(40),
				"cardinality":    float64(6),
			},
		}},
		{"remove": map[string]any{"path": "f2.parquet"}},
	})

	dv, ok, err := actions.DeletionVectorAt(batch, 0, actions.RemoveName)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u", dv.StorageType)
	assert.Equal(t, "uab^-aqEH@4", dv.UniqueID())
	assert.Equal(t, int64(6), dv.Cardinality)

	_, ok, err = actions.DeletionVectorAt(batch, 1, actions.RemoveName)
	require.NoError(t, err)
	assert.False(t, ok)
}
