package export

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/inspect"
	"github.com/framesift/framesift/internal/metrics"
)

// Row kinds in a change-row file.
const (
	RowInitial = "initial"
	RowDelta   = "delta"
)

// ChangeRow is one timeline event flattened for Parquet: either a
// subject's first observed state or one sparse delta against the previous
// state. State carries the value tree as compact JSON. Capture names the
// originating capture so files from several stay distinguishable after
// they are stacked into one table.
type ChangeRow struct {
	Capture  string `parquet:"capture" json:"capture"`
	Resource string `parquet:"resource" json:"resource"`
	Subject  string `parquet:"subject" json:"subject"`
	Point    uint64 `parquet:"point_id" json:"point_id"`
	Kind     string `parquet:"kind" json:"kind"`
	State    string `parquet:"state" json:"state"`
}

// BufferChangeRows flattens a buffer-changes result, one subject per
// tracked element index.
func BufferChangeRows(capture string, result *inspect.BufferChangesResult) []ChangeRow {
	var rows []ChangeRow
	for _, el := range result.Elements {
		subject := strconv.Itoa(el.Index)
		rows = append(rows, ChangeRow{
			Capture:  capture,
			Resource: result.ResourceName,
			Subject:  subject,
			Point:    el.InitialPoint,
			Kind:     RowInitial,
			State:    el.Initial.String(),
		})
		for _, d := range el.Changes {
			rows = append(rows, ChangeRow{
				Capture:  capture,
				Resource: result.ResourceName,
				Subject:  subject,
				Point:    d.Point,
				Kind:     RowDelta,
				State:    d.Patch.String(),
			})
		}
	}
	return rows
}

// TextureChangeRows flattens a texture-changes result, one subject per
// tracked texel coordinate.
func TextureChangeRows(capture string, result *inspect.TextureChangesResult) []ChangeRow {
	var rows []ChangeRow
	for _, tx := range result.Texels {
		subject := fmt.Sprintf("%d,%d,%d,%d",
			tx.Coord.X, tx.Coord.Y, tx.Coord.Mip, tx.Coord.Slice)
		rows = append(rows, ChangeRow{
			Capture:  capture,
			Resource: result.ResourceName,
			Subject:  subject,
			Point:    tx.InitialPoint,
			Kind:     RowInitial,
			State:    tx.Initial.String(),
		})
		for _, d := range tx.Changes {
			rows = append(rows, ChangeRow{
				Capture:  capture,
				Resource: result.ResourceName,
				Subject:  subject,
				Point:    d.Point,
				Kind:     RowDelta,
				State:    d.Patch.String(),
			})
		}
	}
	return rows
}

// BindingChangeRows flattens a binding-changes result, one subject per
// binding slot.
func BindingChangeRows(capture string, result *inspect.BindingChangesResult) []ChangeRow {
	var rows []ChangeRow
	for _, b := range result.Bindings {
		subject := fmt.Sprintf("%s/%s/%d/%d/%s",
			b.Key.Stage, b.Key.Bind, b.Key.Set, b.Key.Slot, b.Key.Name)
		rows = append(rows, ChangeRow{
			Capture:  capture,
			Resource: result.PipelineName,
			Subject:  subject,
			Point:    b.InitialPoint,
			Kind:     RowInitial,
			State:    b.Initial.String(),
		})
		for _, d := range b.Changes {
			rows = append(rows, ChangeRow{
				Capture:  capture,
				Resource: result.PipelineName,
				Subject:  subject,
				Point:    d.Point,
				Kind:     RowDelta,
				State:    d.Patch.String(),
			})
		}
	}
	return rows
}

// WriteChangeRows writes the rows as one Zstd-compressed Parquet file.
func WriteChangeRows(w io.Writer, rows []ChangeRow) error {
	pw := parquet.NewGenericWriter[ChangeRow](w, parquet.Compression(&parquet.Zstd))
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			_ = pw.Close()
			return errors.WrapExportError(err, "export.WriteChangeRows", "writing parquet rows")
		}
	}
	if err := pw.Close(); err != nil {
		return errors.WrapExportError(err, "export.WriteChangeRows", "closing parquet writer")
	}
	metrics.ExportRowsWrittenTotal.WithLabelValues("parquet").Add(float64(len(rows)))
	return nil
}

// ReadChangeRows loads a change-row Parquet file back.
func ReadChangeRows(f *os.File, size int64) ([]ChangeRow, error) {
	pf, err := parquet.OpenFile(f, size)
	if err != nil {
		return nil, errors.WrapExportError(err, "export.ReadChangeRows", "opening parquet file")
	}
	pr := parquet.NewGenericReader[ChangeRow](pf)
	rows := make([]ChangeRow, pr.NumRows())
	if _, err := pr.Read(rows); err != nil && err != io.EOF {
		return nil, errors.WrapExportError(err, "export.ReadChangeRows", "reading parquet rows")
	}
	return rows, nil
}
