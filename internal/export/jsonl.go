package export

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/metrics"
)

// LinesWriter streams values as line-delimited JSON. Not safe for
// concurrent use; call Flush before the underlying writer is closed.
type LinesWriter struct {
	buf  *bufio.Writer
	rows int
}

// NewLinesWriter wraps w for JSONL output.
func NewLinesWriter(w io.Writer) *LinesWriter {
	return &LinesWriter{buf: bufio.NewWriter(w)}
}

// Write appends one value as a single JSON line.
func (lw *LinesWriter) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapExportError(err, "export.LinesWriter", "encoding row")
	}
	if _, err := lw.buf.Write(data); err != nil {
		return errors.WrapExportError(err, "export.LinesWriter", "writing row")
	}
	if err := lw.buf.WriteByte('\n'); err != nil {
		return errors.WrapExportError(err, "export.LinesWriter", "writing row")
	}
	lw.rows++
	return nil
}

// WriteAll appends every row, then flushes.
func (lw *LinesWriter) WriteAll(rows []ChangeRow) error {
	for _, row := range rows {
		if err := lw.Write(row); err != nil {
			return err
		}
	}
	return lw.Flush()
}

// Flush drains buffered lines to the underlying writer and records how
// many rows were written since the last flush.
func (lw *LinesWriter) Flush() error {
	if err := lw.buf.Flush(); err != nil {
		return errors.WrapExportError(err, "export.LinesWriter", "flushing rows")
	}
	metrics.ExportRowsWrittenTotal.WithLabelValues("jsonl").Add(float64(lw.rows))
	lw.rows = 0
	return nil
}
