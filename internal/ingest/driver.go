// Package ingest loads rows from a tabular file into a warehouse table by
// issuing one INSERT per row.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Executor runs a single statement. database.Session satisfies it.
type Executor interface {
	Exec(ctx context.Context, statement string) error
}

// CreateError is returned when the create statement is rejected; no rows are
// processed in that case.
type CreateError struct {
	Err error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create table query execution failed: %v", e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// RowFailure describes a row whose INSERT was rejected.
type RowFailure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Report summarizes the row phase of an ingest.
type Report struct {
	RowsAttempted int64       `json:"rows_attempted"`
	RowsSucceeded int64       `json:"rows_succeeded"`
	RowsFailed    int64       `json:"rows_failed"`
	FirstFailure  *RowFailure `json:"first_failure,omitempty"`
}

// Driver runs create-then-insert ingests. Rows are processed one at a time,
// in source order, each statement awaited before the next is issued.
type Driver struct {
	logger *slog.Logger

	// ProgressInterval is the number of rows between OnProgress calls.
	// Zero disables progress reporting.
	ProgressInterval int
	OnProgress       func(Report)
}

// NewDriver creates a driver that logs to logger
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{logger: logger}
}

// Run executes createStmt, then one INSERT built from insertPrefix for every
// row of src.
//
// A rejected INSERT does not fail the run: it is counted in the report and
// the loop moves on, so a nil error only means the create statement succeeded
// and the whole source was read. Callers that care about row outcomes must
// inspect the report. A read error aborts the run with a *ReadError.
func (d *Driver) Run(ctx context.Context, createStmt, insertPrefix string, src Reader, exec Executor) (*Report, error) {
	report := &Report{}

	if err := exec.Exec(ctx, createStmt); err != nil {
		return report, &CreateError{Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, err
		}

		report.RowsAttempted++
		if err := exec.Exec(ctx, BuildInsert(insertPrefix, row)); err != nil {
			report.RowsFailed++
			if report.FirstFailure == nil {
				report.FirstFailure = &RowFailure{Row: int(report.RowsAttempted), Error: err.Error()}
			}
			d.logger.Warn("row insert failed", "row", report.RowsAttempted, "error", err)
		} else {
			report.RowsSucceeded++
		}

		if d.OnProgress != nil && d.ProgressInterval > 0 && report.RowsAttempted%int64(d.ProgressInterval) == 0 {
			d.OnProgress(*report)
		}
	}

	d.logger.Info("ingest finished",
		"rows_attempted", report.RowsAttempted,
		"rows_succeeded", report.RowsSucceeded,
		"rows_failed", report.RowsFailed)
	return report, nil
}
