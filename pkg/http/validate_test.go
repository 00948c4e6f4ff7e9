package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quoteQuery struct {
	Ticker     string  `query:"ticker" validate:"required,ticker"`
	Day        string  `query:"day" validate:"required,datetime=2006-01-02"`
	OptionType string  `query:"option_type" default:"call" validate:"oneof=call put"`
	StopLoss   float64 `query:"stop_loss" default:"200" validate:"gt=0"`
}

type tickersBody struct {
	Tickers []string `json:"tickers" validate:"max=3,dive,ticker"`
}

func bindQuery(t *testing.T, target string, req interface{}) []ValidationError {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	return BindAndValidate(c, req)
}

func TestBindAndValidateAppliesDefaults(t *testing.T) {
	q := &quoteQuery{}
	require.Nil(t, bindQuery(t, "/?ticker=QQQ&day=2025-04-11", q))
	assert.Equal(t, "call", q.OptionType)
	assert.Equal(t, 200.0, q.StopLoss)
}

func TestBindAndValidateReportsWireNames(t *testing.T) {
	errs := bindQuery(t, "/?ticker=qqq&day=11/04/2025&option_type=straddle", &quoteQuery{})
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_TICKER", byField["ticker"].Code)
	assert.Equal(t, "day must be a date formatted YYYY-MM-DD", byField["day"].Message)
	assert.Equal(t, []string{"call", "put"}, byField["option_type"].Params["options"])
}

func TestBindAndValidateBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tickers":["QQQ","SPY","IWM","DIA"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	errs := BindAndValidate(e.NewContext(req, httptest.NewRecorder()), &tickersBody{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MAX", errs[0].Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tickers":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	errs = BindAndValidate(e.NewContext(req, httptest.NewRecorder()), &tickersBody{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}
