package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureRequestID(captured *string) http.Handler {
	return RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequestID_GeneratesUUID(t *testing.T) {
	var id string
	rec := httptest.NewRecorder()
	captureRequestID(&id).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/execute", nil))

	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_HeaderValidation(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantNew bool
	}{
		{"alphanumeric with separators", "load-2024_01.a", false},
		{"exactly 128 chars", strings.Repeat("b", 128), false},
		{"newline", "id\nlevel=ERROR msg=forged", true},
		{"carriage return", "id\rforged", true},
		{"spaces", "two words", true},
		{"markup", "<script>", true},
		{"129 chars", strings.Repeat("a", 129), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id string
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			captureRequestID(&id).ServeHTTP(rec, req)

			if tt.wantNew {
				assert.NotEqual(t, tt.header, id)
				_, err := uuid.Parse(id)
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.header, id)
			}
			assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}
