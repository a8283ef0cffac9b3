package arrowutil

import (
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/model"
)

func TestInferSchemaAndBuildRecordRoundTrip(t *testing.T) {
	cols := []model.ColumnInfo{
		{Name: "id", LogicalType: "INTEGER"},
		{Name: "label", LogicalType: "TEXT"},
	}
	rows := []map[string]any{
		{"id": int64(1), "label": "a"},
		{"id": int64(2), "label": "b"},
	}

	schema := InferSchema(cols, rows)
	require.Equal(t, 2, schema.NumFields())

	mem := memory.NewGoAllocator()
	rec, err := BuildRecord(mem, schema, rows)
	require.NoError(t, err)
	defer rec.Release()

	require.EqualValues(t, 2, rec.NumRows())
	require.EqualValues(t, 2, rec.NumCols())
}

func TestEncodeDecodeChunkRoundTrip(t *testing.T) {
	cols := []model.ColumnInfo{{Name: "n"}}
	rows := []map[string]any{{"n": int64(7)}, {"n": int64(9)}}
	schema := InferSchema(cols, rows)

	mem := memory.NewGoAllocator()
	rec, err := BuildRecord(mem, schema, rows)
	require.NoError(t, err)
	defer rec.Release()

	data, err := EncodeChunk(schema, rec)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decodedSchema, recs, err := DecodeChunk(mem, data)
	require.NoError(t, err)
	require.True(t, decodedSchema.Equal(schema))
	require.Len(t, recs, 1)
	require.EqualValues(t, 2, recs[0].NumRows())
	require.EqualValues(t, 2, RowCount(recs))
	recs[0].Release()
}

func TestEncodeSchemaOnlyChunkHasNoRecords(t *testing.T) {
	schema := InferSchema([]model.ColumnInfo{{Name: "x"}}, nil)
	data, err := EncodeChunk(schema, nil)
	require.NoError(t, err)

	mem := memory.NewGoAllocator()
	decodedSchema, recs, err := DecodeChunk(mem, data)
	require.NoError(t, err)
	require.True(t, decodedSchema.Equal(schema))
	require.Len(t, recs, 0)
}

func TestRowCountSumsAcrossBatches(t *testing.T) {
	cols := []model.ColumnInfo{{Name: "n"}}
	mem := memory.NewGoAllocator()
	schema := InferSchema(cols, []map[string]any{{"n": int64(1)}})

	rec1, err := BuildRecord(mem, schema, []map[string]any{{"n": int64(1)}, {"n": int64(2)}})
	require.NoError(t, err)
	defer rec1.Release()
	rec2, err := BuildRecord(mem, schema, []map[string]any{{"n": int64(3)}})
	require.NoError(t, err)
	defer rec2.Release()

	require.EqualValues(t, 3, RowCount([]arrow.Record{rec1, rec2}))
}
