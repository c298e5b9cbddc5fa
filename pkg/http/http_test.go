package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyAfter struct{ n int }

func (d *denyAfter) Allow(string) bool {
	d.n--
	return d.n >= 0
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/fail", func(c echo.Context) error {
		return AppErrorResponse(c, UnprocessableError("not enough data"))
	})
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
}

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerRateLimit(t *testing.T) {
	s := NewServer(nil, []Handler{pingHandler{}}, WithRateLimit(&denyAfter{n: 1}))

	assert.Equal(t, http.StatusOK, serve(s, "/ping").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(s, "/ping").Code)
	// scrape path is never limited
	assert.Equal(t, http.StatusOK, serve(s, "/metrics").Code)
}

func TestServerRequestID(t *testing.T) {
	s := NewServer(nil, []Handler{pingHandler{}})
	assert.NotEmpty(t, serve(s, "/ping").Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
}

func TestServerCORS(t *testing.T) {
	s := NewServer(nil, []Handler{pingHandler{}}, WithCORS("https://dash.example"))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlExposeHeaders), "Retry-After")

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "https://other.example")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerErrorMapping(t *testing.T) {
	s := NewServer(nil, []Handler{pingHandler{}})

	rec := serve(s, "/fail")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UNPROCESSABLE")

	assert.Equal(t, http.StatusInternalServerError, serve(s, "/panic").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, "/missing").Code)
}

type quoteRequest struct {
	Symbol string `query:"symbol" validate:"required,ticker"`
	Days   int    `query:"days" default:"30" validate:"gte=30"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()
	bind := func(target string) (*quoteRequest, []ValidationError) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		req := &quoteRequest{}
		return req, ReadAndValidateRequest(c, req)
	}

	for _, sym := range []string{"AAPL", "brk-b", "%5EGSPC", "EURUSD%3DX"} {
		req, errs := bind("/?symbol=" + sym)
		assert.Nil(t, errs, sym)
		assert.Equal(t, 30, req.Days)
	}

	_, errs := bind("/?symbol=AA%20PL")
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_TICKER", errs[0].Code)
	assert.Equal(t, "symbol", errs[0].Field)

	_, errs = bind("/?days=5")
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "ERR_GTE", errs[1].Code)
	assert.Equal(t, "30", errs[1].Params["min"])
}

func TestAppErrorResponseFallback(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientSendAndParse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("no symbol"))
			return
		}
		assert.Equal(t, "regimetrader/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"` + r.URL.Query().Get("symbol") + `"}`))
	}))
	defer ts.Close()

	c := NewClient()
	var out struct {
		Symbol string `json:"symbol"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		URL:         ts.URL,
		QueryParams: map[string][]string{"symbol": {"AAPL"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", out.Symbol)

	err = c.SendAndParse(context.Background(), &RequestOptions{URL: ts.URL}, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "no symbol", se.Body)
}
