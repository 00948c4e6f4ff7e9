package usecase

import (
	"context"
	"errors"

	"CoveredCall/internal/domain/models"
	"CoveredCall/pkg/queue"
)

// Queue message types for the batch operations.
const (
	JobUpdateModels      = "update_models"
	JobUpdateStockData   = "update_stock_data"
	JobUpdateOptionsData = "update_options_data"
	JobUpdateDeviations  = "update_deviations"
)

// batchJob adapts a Status-returning batch to queue.Job. A failed status is returned
// as an error so the queue retries it and eventually dead-letters it.
type batchJob struct {
	name string
	typ  string
	run  func(ctx context.Context, payload interface{}) (models.Status, error)
}

func (j batchJob) Name() string { return j.name }
func (j batchJob) Type() string { return j.typ }

func (j batchJob) Handle(ctx context.Context, payload interface{}) error {
	st, err := j.run(ctx, payload)
	if err != nil {
		return err
	}
	if !st.Success {
		return errors.New(st.Message)
	}
	return nil
}

func tickersFrom(payload interface{}) ([]string, error) {
	if payload == nil {
		return nil, nil
	}
	p, err := queue.ParsePayload[models.TickersRequest](payload)
	if err != nil {
		return nil, err
	}
	return p.Tickers, nil
}

func NewUpdateModelsJob(uc *ModelsUseCase) queue.Job {
	return batchJob{name: "UpdateModelsJob", typ: JobUpdateModels, run: func(ctx context.Context, payload interface{}) (models.Status, error) {
		var req models.UpdateModelsRequest
		if payload != nil {
			p, err := queue.ParsePayload[models.UpdateModelsRequest](payload)
			if err != nil {
				return models.Status{}, err
			}
			req = *p
		}
		return uc.UpdateModels(ctx, req.Tickers, req.Features), nil
	}}
}

func NewUpdateStockDataJob(uc *StocksUseCase) queue.Job {
	return batchJob{name: "UpdateStockDataJob", typ: JobUpdateStockData, run: func(ctx context.Context, payload interface{}) (models.Status, error) {
		tickers, err := tickersFrom(payload)
		if err != nil {
			return models.Status{}, err
		}
		return uc.UpdateStockData(ctx, tickers), nil
	}}
}

func NewUpdateOptionsDataJob(uc *OptionsUseCase) queue.Job {
	return batchJob{name: "UpdateOptionsDataJob", typ: JobUpdateOptionsData, run: func(ctx context.Context, payload interface{}) (models.Status, error) {
		tickers, err := tickersFrom(payload)
		if err != nil {
			return models.Status{}, err
		}
		return uc.UpdateOptionsData(ctx, tickers), nil
	}}
}

func NewUpdateDeviationsJob(uc *DeviationsUseCase) queue.Job {
	return batchJob{name: "UpdateDeviationsJob", typ: JobUpdateDeviations, run: func(ctx context.Context, payload interface{}) (models.Status, error) {
		tickers, err := tickersFrom(payload)
		if err != nil {
			return models.Status{}, err
		}
		return uc.UpdateDeviations(ctx, tickers), nil
	}}
}
