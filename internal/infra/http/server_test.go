package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	srv := NewServer(zerolog.Nop(), nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestCORSOnlyWhenConfigured(t *testing.T) {
	preflight := func(srv *Server) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/health", nil)
		req.Header.Set("Origin", "http://web.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight(NewServer(zerolog.Nop(), []string{"http://web.test"}))
	require.Equal(t, "http://web.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(NewServer(zerolog.Nop(), nil))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, CodeBadRequest, "invalid pagination")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ErrorDetail{Code: CodeBadRequest, Message: "invalid pagination"}, body.Detail)
}

func TestRequestTimeoutAnswersBeforeWriteDeadline(t *testing.T) {
	srv := NewServer(zerolog.Nop(), nil, WithRequestTimeout(20*time.Millisecond))
	srv.Router.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	hs := srv.httpServer(":0")
	require.Greater(t, hs.WriteTimeout, srv.requestTimeout)

	hs = NewServer(zerolog.Nop(), nil).httpServer(":0")
	require.Greater(t, hs.WriteTimeout, DefaultRequestTimeout)
}
