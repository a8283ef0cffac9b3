// Package arrowutil builds and frames the Arrow record batches that
// realize a RecordBatch: a self-describing columnar chunk conforming
// to a standard columnar IPC framing. Every engine variant funnels its
// rows through BuildRecord, and the streaming transport
// (internal/stream) frames/unframes the wire chunks through
// EncodeChunk/DecodeChunk so that each event-channel payload is an
// independently decodable Arrow IPC stream.
package arrowutil

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/vectorsql/dbengine/internal/model"
)

// InferSchema builds an arrow.Schema from a uniform RowResult column
// list, typing each field from the first non-nil value observed for it
// across rows. Columns that never carry a non-nil value default to
// Arrow's utf8 string type — the dialect-agnostic fallback.
func InferSchema(columns []model.ColumnInfo, rows []map[string]any) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     inferType(col.Name, rows),
			Nullable: col.Nullable,
		}
	}
	return arrow.NewSchema(fields, nil)
}

func inferType(name string, rows []map[string]any) arrow.DataType {
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case int64, int, int32:
			return arrow.PrimitiveTypes.Int64
		case float64, float32:
			return arrow.PrimitiveTypes.Float64
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case time.Time:
			return arrow.FixedWidthTypes.Timestamp_us
		default:
			return arrow.BinaryTypes.String
		}
	}
	return arrow.BinaryTypes.String
}

// BuildRecord materializes rows into a single Arrow record batch
// against schema, the in-process engine's dialect-agnostic result
// transform. The caller owns the returned record and must
// Release it.
func BuildRecord(mem memory.Allocator, schema *arrow.Schema, rows []map[string]any) (arrow.Record, error) {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, row := range rows {
		for i, field := range schema.Fields() {
			appendValue(b.Field(i), field.Type, row[field.Name])
		}
	}
	return b.NewRecord(), nil
}

func appendValue(fb array.Builder, typ arrow.DataType, v any) {
	if v == nil {
		fb.AppendNull()
		return
	}
	switch bld := fb.(type) {
	case *array.Int64Builder:
		switch n := v.(type) {
		case int64:
			bld.Append(n)
		case int:
			bld.Append(int64(n))
		case int32:
			bld.Append(int64(n))
		default:
			bld.AppendNull()
		}
	case *array.Float64Builder:
		switch n := v.(type) {
		case float64:
			bld.Append(n)
		case float32:
			bld.Append(float64(n))
		default:
			bld.AppendNull()
		}
	case *array.BooleanBuilder:
		if n, ok := v.(bool); ok {
			bld.Append(n)
		} else {
			bld.AppendNull()
		}
	case *array.TimestampBuilder:
		if t, ok := v.(time.Time); ok {
			bld.Append(arrow.Timestamp(t.UnixMicro()))
		} else {
			bld.AppendNull()
		}
	case *array.StringBuilder:
		bld.Append(fmt.Sprintf("%v", v))
	default:
		fb.AppendNull()
	}
}

// EncodeChunk serializes rec (nil for a schema-only chunk) against
// schema into a standalone, independently-decodable Arrow IPC stream —
// the wire shape of a "schema" or "batch" stream event.
func EncodeChunk(schema *arrow.Schema, rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if rec != nil {
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("arrowutil: encode chunk: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("arrowutil: close chunk writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeChunk reverses EncodeChunk: it reads a standalone Arrow IPC
// stream and returns its schema plus zero or more records. Returned
// records are retained and must be released by the caller.
func DecodeChunk(mem memory.Allocator, data []byte) (*arrow.Schema, []arrow.Record, error) {
	rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, fmt.Errorf("arrowutil: decode chunk: %w", err)
	}
	defer rdr.Release()

	schema := rdr.Schema()
	var recs []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("arrowutil: read chunk: %w", err)
	}
	return schema, recs, nil
}

// RowCount sums numRows across a set of record batches — the
// invariant checks getTable() against.
func RowCount(recs []arrow.Record) int64 {
	var n int64
	for _, r := range recs {
		n += r.NumRows()
	}
	return n
}
