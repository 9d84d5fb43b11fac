// Package api exposes the gateway over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gerhard-ee/sqlgateway/internal/database"
	"github.com/gerhard-ee/sqlgateway/internal/ingest"
	"github.com/gerhard-ee/sqlgateway/internal/middleware"
	"github.com/gerhard-ee/sqlgateway/internal/state"
)

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Query *string `json:"query"`
}

func (r *ExecuteRequest) validate() error {
	if r.Query == nil {
		return errors.New("missing field `query`")
	}
	return nil
}

// CreateRequest is the body of POST /create. Both fields are required; an
// empty string is accepted as-is.
type CreateRequest struct {
	CreateQuery *string `json:"create_query"`
	InsertQuery *string `json:"insert_query"`
}

func (r *CreateRequest) validate() error {
	switch {
	case r.CreateQuery == nil:
		return errors.New("missing field `create_query`")
	case r.InsertQuery == nil:
		return errors.New("missing field `insert_query`")
	}
	return nil
}

type validator interface {
	validate() error
}

// Handler serves the gateway routes. Each warehouse request opens its own
// session and closes it before returning.
type Handler struct {
	connector        database.Connector
	store            state.Manager
	logger           *slog.Logger
	sourcePath       string
	progressInterval int
	retain           int

	openSource func(path string) (ingest.Reader, error)
	now        func() time.Time
}

// Options tunes the ingest side of a Handler.
type Options struct {
	SourcePath       string // file loaded on every /create call
	ProgressInterval int    // rows between run record updates, 0 disables
	Retain           int    // finished runs kept in the store, 0 keeps all
}

// NewHandler creates a handler serving sessions from connector and recording
// ingest runs in store.
func NewHandler(connector database.Connector, store state.Manager, logger *slog.Logger, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		connector:        connector,
		store:            store,
		logger:           logger,
		sourcePath:       opts.SourcePath,
		progressInterval: opts.ProgressInterval,
		retain:           opts.Retain,
		openSource:       ingest.OpenFile,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", middleware.RequestIDFromContext(r.Context()))
}

// decode reads a JSON body into v. A missing or null required field is a
// 400, the same as malformed JSON.
func decode(w http.ResponseWriter, r *http.Request, v validator) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		err = v.validate()
	}
	if err != nil {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) openSession(ctx context.Context, w http.ResponseWriter, logger *slog.Logger) (database.Session, bool) {
	session, err := h.connector.Open(ctx)
	if err != nil {
		logger.Error("session creation failed", "warehouse", h.connector.Type(), "error", err)
		writeError(w, err)
		return nil, false
	}
	return session, true
}

func closeSession(session database.Session, logger *slog.Logger) {
	if err := session.Close(); err != nil {
		logger.Warn("failed to close session", "error", err)
	}
}

// Execute runs the query from the request body as-is.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !decode(w, r, &req) {
		return
	}
	logger := h.requestLogger(r)

	session, ok := h.openSession(r.Context(), w, logger)
	if !ok {
		return
	}
	defer closeSession(session, logger)

	if err := session.Exec(r.Context(), *req.Query); err != nil {
		logger.Warn("query execution failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, fmt.Sprintf("Query execution failed: %v", err))
		return
	}
	writeMessage(w, http.StatusOK, "Execution Successful!")
}

// Create runs the create statement and then inserts every row of the
// configured source file. Rejected rows do not change the response status;
// they are reported in the returned ingest record.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	logger := h.requestLogger(r)

	session, ok := h.openSession(ctx, w, logger)
	if !ok {
		return
	}
	defer closeSession(session, logger)

	src, err := h.openSource(h.sourcePath)
	if err != nil {
		logger.Error("failed to open source", "source", h.sourcePath, "error", err)
		writeMessage(w, http.StatusInternalServerError, fmt.Sprintf("Source file unavailable: %v", err))
		return
	}
	defer src.Close()

	started := h.now()
	run := &state.State{
		JobID:       uuid.NewString(),
		Source:      h.sourcePath,
		InsertQuery: *req.InsertQuery,
		Status:      state.StatusRunning,
		StartedAt:   started,
		LastUpdated: started,
	}
	if err := h.store.CreateState(ctx, run); err != nil {
		logger.Error("failed to record ingest", "error", err)
		writeMessage(w, http.StatusInternalServerError, fmt.Sprintf("Failed to record ingest: %v", err))
		return
	}
	logger = logger.With("ingest_id", run.JobID)

	driver := ingest.NewDriver(logger)
	driver.ProgressInterval = h.progressInterval
	driver.OnProgress = func(report ingest.Report) {
		applyReport(run, &report)
		run.LastUpdated = h.now()
		h.saveRun(ctx, run, logger)
	}

	report, runErr := driver.Run(ctx, *req.CreateQuery, *req.InsertQuery, src, session)
	applyReport(run, report)
	finished := h.now()
	run.LastUpdated = finished
	run.FinishedAt = &finished
	if runErr != nil {
		run.Status = state.StatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = state.StatusCompleted
	}
	// The request context may already be cancelled; the final record still
	// has to be written.
	h.saveRun(context.WithoutCancel(ctx), run, logger)
	h.pruneRuns(context.WithoutCancel(ctx), logger)

	if runErr != nil {
		logger.Error("ingest failed", "error", runErr)
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			writeMessage(w, http.StatusInternalServerError, fmt.Sprintf("Ingest aborted: %v", runErr))
			return
		}
		writeError(w, runErr)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "Table created successfully!", Ingest: run})
}

func (h *Handler) saveRun(ctx context.Context, run *state.State, logger *slog.Logger) {
	if err := h.store.UpdateState(ctx, run); err != nil {
		logger.Warn("failed to update ingest record", "error", err)
	}
}

// pruneRuns deletes the oldest finished runs beyond the retention limit.
// Running ingests are never pruned.
func (h *Handler) pruneRuns(ctx context.Context, logger *slog.Logger) {
	if h.retain <= 0 {
		return
	}
	runs, err := h.store.ListStates(ctx)
	if err != nil {
		logger.Warn("failed to list ingest records for pruning", "error", err)
		return
	}
	kept := 0
	for _, run := range runs {
		if run.Status == state.StatusRunning {
			continue
		}
		kept++
		if kept <= h.retain {
			continue
		}
		if err := h.store.DeleteState(ctx, run.JobID); err != nil {
			logger.Warn("failed to prune ingest record", "ingest_id", run.JobID, "error", err)
			continue
		}
		logger.Debug("pruned ingest record", "ingest_id", run.JobID)
	}
}

func applyReport(run *state.State, report *ingest.Report) {
	if report == nil {
		return
	}
	run.RowsAttempted = report.RowsAttempted
	run.RowsSucceeded = report.RowsSucceeded
	run.RowsFailed = report.RowsFailed
	if report.FirstFailure != nil {
		run.FirstFailure = fmt.Sprintf("row %d: %s", report.FirstFailure.Row, report.FirstFailure.Error)
	}
}

// ListIngests returns every recorded ingest, newest first.
func (h *Handler) ListIngests(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListStates(r.Context())
	if err != nil {
		h.requestLogger(r).Error("failed to list ingests", "error", err)
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*state.State{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingests": runs})
}

// GetIngest returns one ingest record by id.
func (h *Handler) GetIngest(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// DeleteIngest removes a finished ingest record. A running ingest cannot be
// deleted.
func (h *Handler) DeleteIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	run, err := h.store.GetState(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if run.Status == state.StatusRunning {
		writeMessage(w, http.StatusConflict, "ingest is still running")
		return
	}
	if err := h.store.DeleteState(ctx, run.JobID); err != nil {
		h.requestLogger(r).Error("failed to delete ingest", "ingest_id", run.JobID, "error", err)
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Ingest deleted")
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
