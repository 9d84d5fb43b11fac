package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

const parquetBatchSize = 1024

// ParquetReader reads a flat Parquet file column by column and hands out
// rows with every value rendered as text. NULL becomes the empty string.
type ParquetReader struct {
	file      source.ParquetFile
	pr        *reader.ParquetReader
	remaining int64
	buf       []Row
	row       int
}

// OpenParquet opens the Parquet file at path
func OpenParquet(path string) (*ParquetReader, error) {
	file, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	pr, err := reader.NewParquetColumnReader(file, 1)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read parquet footer: %w", err)
	}
	return &ParquetReader{
		file:      file,
		pr:        pr,
		remaining: pr.GetNumRows(),
	}, nil
}

func (p *ParquetReader) Next() (Row, error) {
	if len(p.buf) == 0 {
		if p.remaining == 0 {
			return nil, io.EOF
		}
		if err := p.fill(); err != nil {
			return nil, &ReadError{Row: p.row + 1, Err: err}
		}
	}
	row := p.buf[0]
	p.buf = p.buf[1:]
	p.row++
	return row, nil
}

func (p *ParquetReader) fill() error {
	n := p.remaining
	if n > parquetBatchSize {
		n = parquetBatchSize
	}

	columns := p.pr.SchemaHandler.GetColumnNum()
	if columns == 0 {
		return errors.New("parquet file has no columns")
	}

	rows := make([]Row, n)
	for c := int64(0); c < columns; c++ {
		values, _, _, err := p.pr.ReadColumnByIndex(c, n)
		if err != nil {
			return err
		}
		if int64(len(values)) != n {
			return fmt.Errorf("column %s returned %d values for %d rows",
				p.pr.SchemaHandler.ValueColumns[c], len(values), n)
		}
		for i, v := range values {
			rows[i] = append(rows[i], formatValue(v))
		}
	}

	p.remaining -= n
	p.buf = rows
	return nil
}

func (p *ParquetReader) Close() error {
	p.pr.ReadStop()
	return p.file.Close()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
