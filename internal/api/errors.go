package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gerhard-ee/sqlgateway/internal/database"
	"github.com/gerhard-ee/sqlgateway/internal/ingest"
	"github.com/gerhard-ee/sqlgateway/internal/state"
)

// Response is the body of every gateway reply that carries a message.
type Response struct {
	Message string       `json:"message"`
	Ingest  *state.State `json:"ingest,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Message: msg})
}

// errorStatus maps an error from the core packages to an HTTP status and the
// message shown to the client.
func errorStatus(err error) (int, string) {
	var (
		authErr   *database.AuthError
		createErr *ingest.CreateError
		readErr   *ingest.ReadError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusInternalServerError, fmt.Sprintf("Session creation failed: %v", authErr.Err)
	case errors.As(err, &createErr):
		return http.StatusInternalServerError, fmt.Sprintf("Create table query execution failed: %v", createErr.Err)
	case errors.As(err, &readErr):
		return http.StatusInternalServerError, fmt.Sprintf("Ingest aborted: %v", readErr)
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound, "ingest not found"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	writeMessage(w, status, msg)
}
