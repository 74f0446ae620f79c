// Package export renders decoded buffer data and change timelines into
// interchange formats: Arrow record batches for Flight streaming, Parquet
// row files, and line-delimited JSON.
package export

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/framesift/framesift/internal/decode"
	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/metrics"
	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/schema"
)

// IndexColumn is the leading column carrying each record's instance index.
const IndexColumn = "__index"

// PointColumn carries the observation point every row was decoded at.
// Redundant within one batch, but it keeps rows self-describing when a
// client stacks batches from several points into one table.
const PointColumn = "__point"

// arrowType maps a scalar kind onto its Arrow data type.
func arrowType(kind schema.ScalarKind) arrow.DataType {
	switch kind {
	case schema.Float16:
		return arrow.FixedWidthTypes.Float16
	case schema.Float32:
		return arrow.PrimitiveTypes.Float32
	case schema.Float64:
		return arrow.PrimitiveTypes.Float64
	case schema.Int8:
		return arrow.PrimitiveTypes.Int8
	case schema.Int16:
		return arrow.PrimitiveTypes.Int16
	case schema.Int32:
		return arrow.PrimitiveTypes.Int32
	case schema.Int64:
		return arrow.PrimitiveTypes.Int64
	case schema.Uint8:
		return arrow.PrimitiveTypes.Uint8
	case schema.Uint16:
		return arrow.PrimitiveTypes.Uint16
	case schema.Uint32:
		return arrow.PrimitiveTypes.Uint32
	case schema.Uint64:
		return arrow.PrimitiveTypes.Uint64
	case schema.Bool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return nil
	}
}

// ArrowSchema builds the columnar schema for one flattened layout: the
// instance index and observation point followed by one column per leaf
// field, named by its rendered path. Metadata carries where the data came
// from, so schema-only consumers see it without fetching rows.
func ArrowSchema(layout *schema.Layout, resource string, point uint64) (*arrow.Schema, error) {
	if !layout.HasFields() {
		return nil, errors.NewSchemaUnavailableError("export.ArrowSchema",
			"layout flattens to no decodable fields")
	}

	fields := make([]arrow.Field, 0, len(layout.Fields)+2)
	fields = append(fields, arrow.Field{Name: IndexColumn, Type: arrow.PrimitiveTypes.Uint32})
	fields = append(fields, arrow.Field{Name: PointColumn, Type: arrow.PrimitiveTypes.Uint64})
	for _, f := range layout.Fields {
		dt := arrowType(f.Kind)
		if dt == nil {
			return nil, errors.NewValidationError("export.ArrowSchema",
				"field kind has no arrow mapping").
				WithContext("field", f.Name).
				WithContext("kind", f.Kind.String())
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: dt, Nullable: true})
	}

	md := arrow.NewMetadata(
		[]string{"framesift.resource", "framesift.point", "framesift.stride"},
		[]string{
			resource,
			strconv.FormatUint(point, 10),
			strconv.FormatUint(uint64(layout.Stride), 10),
		},
	)
	sc := arrow.NewSchema(fields, &md)
	return sc, nil
}

// InstancesRecord decodes up to maxInstances records from raw and lays
// them out column-wise against the layout's schema. maxInstances <= 0
// exports everything the buffer holds. Fields an instance cannot cover
// become nulls in their column.
func InstancesRecord(mem memory.Allocator, layout *schema.Layout, raw []byte, resource string, point uint64, maxInstances int) (arrow.RecordBatch, error) {
	sc, err := ArrowSchema(layout, resource, point)
	if err != nil {
		return nil, err
	}

	count := decode.Count(raw, layout)
	if maxInstances > 0 && count > maxInstances {
		count = maxInstances
	}

	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	idxBuilder := b.Field(0).(*array.Uint32Builder)
	pointBuilder := b.Field(1).(*array.Uint64Builder)
	for i := 0; i < count; i++ {
		values, err := decode.Instance(raw, layout, i)
		if err != nil {
			return nil, err
		}
		idxBuilder.Append(uint32(i))
		pointBuilder.Append(point)
		for col, f := range layout.Fields {
			appendLeaf(b.Field(col+2), f.Kind, values[col])
		}
	}

	metrics.ExportRowsWrittenTotal.WithLabelValues("arrow").Add(float64(count))
	return b.NewRecordBatch(), nil
}

// appendLeaf pushes one decoded leaf into its column builder; a nil leaf
// appends null.
func appendLeaf(builder array.Builder, kind schema.ScalarKind, v *nested.Value) {
	if v == nil {
		builder.AppendNull()
		return
	}
	switch kind {
	case schema.Float16:
		builder.(*array.Float16Builder).Append(float16.New(float32(v.Float())))
	case schema.Float32:
		builder.(*array.Float32Builder).Append(float32(v.Float()))
	case schema.Float64:
		builder.(*array.Float64Builder).Append(v.Float())
	case schema.Int8:
		builder.(*array.Int8Builder).Append(int8(v.Int()))
	case schema.Int16:
		builder.(*array.Int16Builder).Append(int16(v.Int()))
	case schema.Int32:
		builder.(*array.Int32Builder).Append(int32(v.Int()))
	case schema.Int64:
		builder.(*array.Int64Builder).Append(v.Int())
	case schema.Uint8:
		builder.(*array.Uint8Builder).Append(uint8(v.Uint()))
	case schema.Uint16:
		builder.(*array.Uint16Builder).Append(uint16(v.Uint()))
	case schema.Uint32:
		builder.(*array.Uint32Builder).Append(uint32(v.Uint()))
	case schema.Uint64:
		builder.(*array.Uint64Builder).Append(v.Uint())
	case schema.Bool:
		builder.(*array.BooleanBuilder).Append(v.Bool())
	default:
		builder.AppendNull()
	}
}
