package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRouterServesHealthChecksAndEchoesRequestID(t *testing.T) {
	r := NewRouter(discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	r := NewRouter(discardLogger())
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INTERNAL_ERROR", body.Code)
}

func TestFailWritesMappedEnvelope(t *testing.T) {
	errMissing := errors.New("missing")
	mapErr := func(err error) (int, string, string) {
		if errors.Is(err, errMissing) {
			return http.StatusNotFound, "NOT_FOUND", "resource not found"
		}
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}

	rec := httptest.NewRecorder()
	Fail(httptest.NewRequest(http.MethodGet, "/", nil).Context(), rec, discardLogger(), mapErr, "get", errMissing)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ErrorBody{Status: "error", Code: "NOT_FOUND", Message: "resource not found"}, body)
}
