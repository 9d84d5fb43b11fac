package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Row is one source record as text fields, in source order.
type Row []string

// Reader produces rows from a tabular source, one at a time. Next returns
// io.EOF once the source is exhausted. A reader is single-pass.
type Reader interface {
	Next() (Row, error)
	Close() error
}

// ReadError reports a source record that could not be read. It aborts the
// ingest; no partial-row skipping is attempted.
type ReadError struct {
	Row int // 1-based record position
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read row %d: %v", e.Row, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// CSVReader reads comma separated records without a header row: the first
// record is data. Every record must have as many fields as the first one and
// be valid UTF-8. A bare quote inside an unquoted field is kept as data.
type CSVReader struct {
	r      *csv.Reader
	closer io.Closer
	row    int
}

// NewCSVReader returns a reader over r. The caller keeps ownership of r.
func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	cr.LazyQuotes = true
	return &CSVReader{r: cr}
}

func (c *CSVReader) Next() (Row, error) {
	record, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	c.row++
	if err != nil {
		return nil, &ReadError{Row: c.row, Err: err}
	}
	for i, field := range record {
		if !utf8.ValidString(field) {
			return nil, &ReadError{Row: c.row, Err: fmt.Errorf("field %d is not valid UTF-8", i+1)}
		}
	}
	return Row(record), nil
}

func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// OpenFile opens the tabular file at path, choosing the format from its
// extension: .parquet, .xlsx, anything else is read as CSV.
func OpenFile(path string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return OpenParquet(path)
	case ".xlsx":
		return OpenXLSX(path)
	default:
		f, err := os.Open(path) //nolint:gosec // path comes from configuration
		if err != nil {
			return nil, fmt.Errorf("failed to open source file: %w", err)
		}
		r := NewCSVReader(f)
		r.closer = f
		return r, nil
	}
}
