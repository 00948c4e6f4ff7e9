package api

import (
	"context"
	"errors"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/usecase"
	xhttp "CoveredCall/pkg/http"
	"CoveredCall/pkg/http/middleware"
	xlogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/util"

	"github.com/labstack/echo/v4"
)

// StrategyEchoHandler exposes training, backtesting, prediction and ingestion over Echo.
type StrategyEchoHandler struct {
	logger     *xlogger.Logger
	models     *usecase.ModelsUseCase
	backtest   *usecase.BacktestUseCase
	predict    *usecase.PredictUseCase
	stocks     *usecase.StocksUseCase
	options    *usecase.OptionsUseCase
	deviations *usecase.DeviationsUseCase
	queue      domrepo.JobQueue
}

func NewStrategyEchoHandler(
	logger *xlogger.Logger,
	models *usecase.ModelsUseCase,
	backtest *usecase.BacktestUseCase,
	predict *usecase.PredictUseCase,
	stocks *usecase.StocksUseCase,
	options *usecase.OptionsUseCase,
	deviations *usecase.DeviationsUseCase,
) *StrategyEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StrategyEchoHandler{
		logger:     logger,
		models:     models,
		backtest:   backtest,
		predict:    predict,
		stocks:     stocks,
		options:    options,
		deviations: deviations,
	}
}

// log returns the request-scoped logger carrying the request id.
func (h *StrategyEchoHandler) log(c echo.Context) *xlogger.Logger {
	return middleware.Logger(c, h.logger)
}

// SetQueue makes the batch endpoints enqueue instead of running inline.
func (h *StrategyEchoHandler) SetQueue(q domrepo.JobQueue) { h.queue = q }

func (h *StrategyEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.POST("/models/update", h.UpdateModels)
	g.GET("/backtest", h.Backtest)
	g.GET("/predict", h.Predict)
	g.GET("/predict/daily", h.PredictDaily)
	g.POST("/stocks/update", h.UpdateStocks)
	g.POST("/stocks/backfill", h.Backfill)
	g.POST("/options/update", h.UpdateOptions)
	g.POST("/deviations/update", h.UpdateDeviations)
	g.GET("/jobs", h.Jobs)
}

func (h *StrategyEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *StrategyEchoHandler) UpdateModels(c echo.Context) error {
	req := &models.UpdateModelsRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if len(req.Features) > 0 {
		if err := models.ValidateFeatures(req.Features); err != nil {
			return h.errorResponse(c, "update models", err)
		}
	}
	return h.batch(c, usecase.JobUpdateModels, req, func(ctx context.Context) models.Status {
		return h.models.UpdateModels(ctx, req.Tickers, req.Features)
	})
}

func (h *StrategyEchoHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, err := util.ParseDate(req.StartDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithField("start_date"))
	}
	end, err := util.ParseDate(req.EndDate)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithField("end_date"))
	}

	res, err := h.backtest.RunBacktest(c.Request().Context(), usecase.BacktestParams{
		Ticker:        req.Ticker,
		Start:         start,
		End:           end,
		BaseDeviation: req.BaseDeviation,
		OptionType:    models.OptionType(req.OptionType),
		StopLoss:      req.StopLoss,
		WithTrades:    req.WithTrades,
	})
	if err != nil {
		return h.errorResponse(c, "backtest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StrategyEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.predict.PredictOption(c.Request().Context(), usecase.PredictParams{
		Ticker:        req.Ticker,
		OptionType:    models.OptionType(req.OptionType),
		BaseDeviation: req.BaseDeviation,
	})
	if err != nil {
		return h.errorResponse(c, "predict", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *StrategyEchoHandler) PredictDaily(c echo.Context) error {
	res, err := h.predict.PredictDaily(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, "predict daily", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *StrategyEchoHandler) UpdateStocks(c echo.Context) error {
	return h.tickersBatch(c, usecase.JobUpdateStockData, h.stocks.UpdateStockData)
}

func (h *StrategyEchoHandler) Backfill(c echo.Context) error {
	req := &models.TickersRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// backfill is long but rare; it always runs inline
	return xhttp.SuccessResponse(c, h.stocks.Backfill(c.Request().Context(), req.Tickers))
}

func (h *StrategyEchoHandler) UpdateOptions(c echo.Context) error {
	return h.tickersBatch(c, usecase.JobUpdateOptionsData, h.options.UpdateOptionsData)
}

func (h *StrategyEchoHandler) UpdateDeviations(c echo.Context) error {
	return h.tickersBatch(c, usecase.JobUpdateDeviations, h.deviations.UpdateDeviations)
}

// Jobs reports the queue backlog and the most recent dead letters. Data is null when
// batches run inline.
func (h *StrategyEchoHandler) Jobs(c echo.Context) error {
	if h.queue == nil {
		return xhttp.SuccessResponse(c, nil)
	}
	req := &models.JobsRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	stats, err := h.queue.Stats(ctx)
	if err != nil {
		return h.errorResponse(c, "queue stats", err)
	}
	dead, err := h.queue.DeadLetters(ctx, int64(req.DeadLetters))
	if err != nil {
		return h.errorResponse(c, "dead letters", err)
	}
	return xhttp.SuccessResponse(c, models.JobsReport{Stats: stats, DeadLetters: dead})
}

func (h *StrategyEchoHandler) tickersBatch(c echo.Context, job string, run func(context.Context, []string) models.Status) error {
	req := &models.TickersRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.batch(c, job, req, func(ctx context.Context) models.Status {
		return run(ctx, req.Tickers)
	})
}

// batch enqueues the job when a queue is configured and otherwise runs it in the request.
func (h *StrategyEchoHandler) batch(c echo.Context, job string, payload interface{}, run func(context.Context) models.Status) error {
	ctx := c.Request().Context()
	if h.queue != nil {
		if err := h.queue.Enqueue(ctx, job, payload); err != nil {
			h.log(c).Error("enqueue failed", xlogger.String("job", job), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue unavailable").WithError(err))
		}
		return xhttp.AcceptedResponse(c, models.Status{Success: true, Message: "Job " + job + " queued."})
	}
	st := run(ctx)
	if !st.Success {
		h.log(c).Warn("batch finished with failures", xlogger.String("job", job), xlogger.String("message", st.Message))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *StrategyEchoHandler) errorResponse(c echo.Context, op string, err error) error {
	if errors.Is(err, models.ErrInvalidInput) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	h.log(c).Error(op+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
