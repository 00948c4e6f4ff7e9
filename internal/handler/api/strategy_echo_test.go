package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/repository"
	"CoveredCall/internal/services/indicators"
	"CoveredCall/internal/services/training"
	"CoveredCall/internal/usecase"
	pkgcache "CoveredCall/pkg/cache"
	"CoveredCall/pkg/config"
	"CoveredCall/pkg/metrics"
	"CoveredCall/pkg/queue"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type recordingQueue struct {
	jobs []string
}

func (q *recordingQueue) Enqueue(_ context.Context, msgType string, _ interface{}) error {
	q.jobs = append(q.jobs, msgType)
	return nil
}

func (q *recordingQueue) Stats(context.Context) (queue.Stats, error) {
	return queue.Stats{Queued: int64(len(q.jobs))}, nil
}

func (q *recordingQueue) DeadLetters(_ context.Context, n int64) ([]queue.Message, error) {
	out := []queue.Message{{ID: "d1", Type: usecase.JobUpdateOptionsData, Attempts: 4, LastError: "polygon: 429"}}
	if int64(len(out)) > n {
		out = out[:n]
	}
	return out, nil
}

type noPrices struct{}

func (noPrices) FetchDailyBars(context.Context, string, time.Time, time.Time) ([]models.PriceBar, error) {
	return nil, nil
}

type noOptions struct{}

func (noOptions) FetchOptionBar(context.Context, models.OptionContract, time.Time) (models.OptionBar, bool, error) {
	return models.OptionBar{}, false, nil
}

func seedBars(n int) []models.PriceBar {
	var out []models.PriceBar
	for d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC); len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := 100 + 8*math.Sin(float64(len(out))/4)
		out = append(out, models.PriceBar{Ticker: "QQQ", Date: d, Open: c - 0.5, Close: c, High: c + 1, Low: c - 1})
	}
	return out
}

func newTestServer(t *testing.T) (*echo.Echo, *StrategyEchoHandler) {
	t.Helper()
	cfg := config.Strategy{
		Tickers:         []string{"QQQ"},
		OptionsTickers:  []string{"QQQ"},
		BaseDeviation:   5,
		DeviationBuffer: 1,
		UpperThreshold:  0.6,
		LowerThreshold:  0.35,
		StopLoss:        200,
		BeginningDate:   "2024-01-02",
		RecentWindow:    30,
		SMAPeriod:       20,
		ChainWidth:      2,
		ChainStep:       1,
	}
	history := repository.NewMemoryPriceHistory()
	require.NoError(t, history.WriteUpsert(context.Background(), "QQQ", indicators.Compute(seedBars(120))))

	mc := pkgcache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	store := repository.NewCacheModelStore(mc)
	preds := repository.NewCachePredictions(mc, time.Hour, nil)
	devs := repository.NewMemoryDeviations()
	quotes := repository.NewMemoryOptionQuotes()
	events := repository.NoopPublisher{}
	journal := repository.NoopJournal{}
	m := metrics.Nop{}
	trainer := training.NewTrainer(training.Config{TestFraction: 0.2, Seed: 1, Repeats: 1, Trees: 5})

	h := NewStrategyEchoHandler(nil,
		usecase.NewModelsUseCase(history, store, preds, events, mc, m, trainer, cfg, nil),
		usecase.NewBacktestUseCase(history, store, quotes, devs, journal, events, m, cfg, nil),
		usecase.NewPredictUseCase(history, store, devs, preds, journal, events, m, cfg, nil),
		usecase.NewStocksUseCase(noPrices{}, history, m, cfg, nil),
		usecase.NewOptionsUseCase(noOptions{}, history, quotes, m, cfg, nil),
		usecase.NewDeviationsUseCase(history, devs, m, cfg, nil),
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(t, e, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestPredictValidation(t *testing.T) {
	e, _ := newTestServer(t)

	rec, env := do(t, e, http.MethodGet, "/api/predict?option_type=call", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	rec, _ = do(t, e, http.MethodGet, "/api/predict?ticker=QQQ&option_type=straddle", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictWithoutModelReturnsNullData(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(t, e, http.MethodGet, "/api/predict?ticker=QQQ&option_type=put", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(env.Data))
}

func TestTrainThenPredict(t *testing.T) {
	e, _ := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/models/update", `{"tickers":["QQQ"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	require.True(t, st.Success, st.Message)

	rec, env = do(t, e, http.MethodGet, "/api/predict?ticker=QQQ", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.PredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "QQQ", p.Ticker)
	assert.Equal(t, "call", p.OptionType)
	assert.Greater(t, p.StrikePrice, 0)

	rec, env = do(t, e, http.MethodGet, "/api/predict/daily", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.PredictionResult `json:"rows"`
		Total int64                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 2, list.Total)
}

func TestUpdateModelsRejectsUnknownFeature(t *testing.T) {
	e, _ := newTestServer(t)
	rec, _ := do(t, e, http.MethodPost, "/api/models/update", `{"features":["moon_phase"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacktestValidation(t *testing.T) {
	e, _ := newTestServer(t)

	rec, _ := do(t, e, http.MethodGet, "/api/backtest?ticker=QQQ&start_date=2024-13-01&end_date=2024-02-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/backtest?ticker=QQQ&start_date=2024-03-01&end_date=2024-02-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacktestWithoutOptionsReturnsNullData(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(t, e, http.MethodGet, "/api/backtest?ticker=QQQ&start_date=2024-02-01&end_date=2024-03-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(env.Data))
}

func TestBatchRunsInlineWithoutQueue(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(t, e, http.MethodPost, "/api/deviations/update", `{"tickers":["QQQ"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Success)
	assert.Equal(t, "Average deviations for all tickers updated and saved.", st.Message)
}

func TestBatchEnqueuesWithQueue(t *testing.T) {
	e, h := newTestServer(t)
	q := &recordingQueue{}
	h.SetQueue(q)

	for _, path := range []string{"/api/stocks/update", "/api/options/update", "/api/deviations/update", "/api/models/update"} {
		rec, _ := do(t, e, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusAccepted, rec.Code, path)
	}
	assert.Equal(t, []string{
		usecase.JobUpdateStockData,
		usecase.JobUpdateOptionsData,
		usecase.JobUpdateDeviations,
		usecase.JobUpdateModels,
	}, q.jobs)
}

func TestJobsReport(t *testing.T) {
	e, h := newTestServer(t)
	rec, env := do(t, e, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(env.Data))

	q := &recordingQueue{}
	h.SetQueue(q)
	do(t, e, http.MethodPost, "/api/stocks/update", `{}`)

	rec, env = do(t, e, http.MethodGet, "/api/jobs?dead_letters=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.JobsReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, int64(1), report.Queued)
	require.Len(t, report.DeadLetters, 1)
	assert.Equal(t, "polygon: 429", report.DeadLetters[0].LastError)

	rec, _ = do(t, e, http.MethodGet, "/api/jobs?dead_letters=9000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchRejectsBadTickers(t *testing.T) {
	e, _ := newTestServer(t)
	rec, _ := do(t, e, http.MethodPost, "/api/stocks/update", `{"tickers":["qqq"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
