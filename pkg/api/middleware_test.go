package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/sysconf/pkg/logging"
)

// authCount reads sysconf_auth_requests_total{status=<status>} from reg
func authCount(t *testing.T, reg *prometheus.Registry, status string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "sysconf_auth_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestAPIKeyMiddleware(t *testing.T) {
	const key = "0123456789abcdef"

	testCases := []struct {
		name        string
		header      string
		wantStatus  int
		wantSuccess float64
		wantError   float64
	}{
		{name: "valid key", header: key, wantStatus: http.StatusOK, wantSuccess: 1},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantError: 1},
		{name: "wrong key", header: "nope", wantStatus: http.StatusUnauthorized, wantError: 1},
		{name: "same length wrong key", header: "0123456789abcdeF", wantStatus: http.StatusUnauthorized, wantError: 1},
		{name: "key prefix", header: key[:8], wantStatus: http.StatusUnauthorized, wantError: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})
			handler := apiKeyMiddleware(key, NewMetrics(reg))(next)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/entries", nil)
			if tc.header != "" {
				req.Header.Set("X-API-Key", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantStatus == http.StatusOK, reached)
			assert.Equal(t, tc.wantSuccess, authCount(t, reg, statusSuccess))
			assert.Equal(t, tc.wantError, authCount(t, reg, statusError))

			if tc.wantStatus != http.StatusOK {
				var resp APIResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Get("/api/v1/entries/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entries/IPL.CB", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)

	line := buf.String()
	assert.Contains(t, line, "request_id=req-42")
	assert.Contains(t, line, "method=GET")
	assert.Contains(t, line, "path=/api/v1/entries/IPL.CB")
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "bytes=5")
	assert.Contains(t, line, "request")
}

func TestRequestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("warn", &buf)

	handler := requestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Empty(t, buf.String())
}

func TestSendSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	sendSuccess(rec, EntryView{Name: "IPL.CB", Type: "long", Value: "4096"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Success bool      `json:"success"`
		Data    EntryView `json:"data"`
		Error   string    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "IPL.CB", resp.Data.Name)
	assert.Equal(t, "4096", resp.Data.Value)
}

func TestSendError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError} {
		rec := httptest.NewRecorder()
		sendError(rec, "entry IPL.NOPE not found", status)

		assert.Equal(t, status, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp APIResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Nil(t, resp.Data)
		assert.Equal(t, "entry IPL.NOPE not found", resp.Error)
	}
}
