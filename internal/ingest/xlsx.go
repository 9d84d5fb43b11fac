package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader streams the rows of the first worksheet of a workbook. Trailing
// empty cells are padded so every row is at least as wide as the first one.
type XLSXReader struct {
	file  *excelize.File
	rows  *excelize.Rows
	width int
	row   int
}

// OpenXLSX opens the workbook at path
func OpenXLSX(path string) (*XLSXReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return &XLSXReader{file: f, rows: rows, width: -1}, nil
}

func (x *XLSXReader) Next() (Row, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, &ReadError{Row: x.row + 1, Err: err}
		}
		return nil, io.EOF
	}
	x.row++
	cols, err := x.rows.Columns()
	if err != nil {
		return nil, &ReadError{Row: x.row, Err: err}
	}
	if x.width < 0 {
		x.width = len(cols)
	}
	for len(cols) < x.width {
		cols = append(cols, "")
	}
	return Row(cols), nil
}

func (x *XLSXReader) Close() error {
	return errors.Join(x.rows.Close(), x.file.Close())
}
