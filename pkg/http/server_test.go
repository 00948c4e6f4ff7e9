package http

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
	e.GET("/api/panic", func(echo.Context) error { panic("boom") })
}

func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	return NewServer(routes{}, WithRegistry(reg, reg), WithPort(0), WithHost("127.0.0.1"))
}

func serve(s *Server, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerNotFoundUsesEnvelope(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Nil(t, body.Data)
	assert.Contains(t, rec.Body.String(), `"data":null`)
}

func TestServerRequestID(t *testing.T) {
	s := newTestServer()
	rec := serve(s, http.MethodGet, "/api/ok", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, http.MethodGet, "/api/ok", map[string]string{echo.HeaderXRequestID: "abc"})
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
}

func TestServerRecoversPanics(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/api/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":500`)
}

func TestServerStartReportsBindErrors(t *testing.T) {
	a := newTestServer()
	require.NoError(t, a.Start())
	defer a.Stop(t.Context())

	_, p, err := net.SplitHostPort(a.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	b := NewServer(routes{}, WithRegistry(prometheus.NewRegistry(), prometheus.NewRegistry()), WithHost("127.0.0.1"), WithPort(port))
	assert.Error(t, b.Start())
}
