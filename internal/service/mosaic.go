package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orthoflow/orthoflow/internal/executor"
	"github.com/orthoflow/orthoflow/internal/metadata"
	"github.com/orthoflow/orthoflow/internal/pipeline"
	"github.com/orthoflow/orthoflow/internal/store"
	"github.com/orthoflow/orthoflow/internal/store/model"
	"github.com/orthoflow/orthoflow/pkg/requestid"
)

// Runner runs the pipeline of a single request.
type Runner interface {
	Run(ctx context.Context, run pipeline.Run) error
}

// Executor starts tasks that outlive the request.
type Executor interface {
	Submit(ctx context.Context, name string, task executor.Task) error
}

type MosaicCreate struct {
	ProjectKey string
	ClientName *string
	FarmName   *string
	PlotID     *string
	SurveyDate *string
}

type MosaicService struct {
	store    store.Store
	runner   Runner
	executor Executor
}

func NewMosaicService(store store.Store, runner Runner, executor Executor) *MosaicService {
	return &MosaicService{
		store:    store,
		runner:   runner,
		executor: executor,
	}
}

// CreateMosaic records the request and hands its pipeline run to the executor.
// It returns as soon as the run is accepted.
func (s *MosaicService) CreateMosaic(ctx context.Context, form MosaicCreate) (*model.Request, error) {
	logger := zap.S().Named("mosaic_service").With("project_key", form.ProjectKey, "request_id", requestid.FromContext(ctx))

	id, err := s.store.Request().Create(ctx, store.RequestCreate{
		ProjectKey: form.ProjectKey,
		ClientName: form.ClientName,
		FarmName:   form.FarmName,
		PlotID:     form.PlotID,
		SurveyDate: form.SurveyDate,
	})
	if err != nil {
		logger.Errorw("failed to create request record", "error", err)
		return nil, err
	}
	logger = logger.With("record_id", id)

	run := pipeline.Run{
		RecordID:   id,
		ProjectKey: form.ProjectKey,
		Attributes: metadata.Attributes{
			ClientName: form.ClientName,
			FarmName:   form.FarmName,
			PlotID:     form.PlotID,
			SurveyDate: form.SurveyDate,
		},
	}
	err = s.executor.Submit(ctx, fmt.Sprintf("mosaic-%s", id), func(ctx context.Context) error {
		return s.runner.Run(ctx, run)
	})
	if err != nil {
		logger.Warnw("pipeline run rejected", "error", err)
		busy := NewErrServiceBusy()
		status := model.ErrorStatus(busy.Error())
		if updateErr := s.store.Request().Update(ctx, id, store.RequestUpdate{Status: &status}); updateErr != nil {
			logger.Errorw("failed to record rejected run", "error", updateErr)
		}
		if errors.Is(err, executor.ErrExecutorBusy) || errors.Is(err, executor.ErrExecutorClosed) {
			return nil, busy
		}
		return nil, err
	}

	logger.Infow("pipeline run accepted")
	return &model.Request{
		ID:         id,
		ProjectKey: form.ProjectKey,
		ClientName: form.ClientName,
		FarmName:   form.FarmName,
		PlotID:     form.PlotID,
		SurveyDate: form.SurveyDate,
		Status:     model.StatusProcessing,
	}, nil
}

func (s *MosaicService) GetMosaic(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	record, err := s.store.Request().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrMosaicNotFound(id)
		}
		return nil, err
	}
	return record, nil
}

type MosaicFilter struct {
	ProjectKey string
	Status     string
	Limit      int
}

func (s *MosaicService) ListMosaics(ctx context.Context, filter MosaicFilter) (model.RequestList, error) {
	qf := store.NewRequestQueryFilter()
	if filter.ProjectKey != "" {
		qf = qf.ByProjectKey(filter.ProjectKey)
	}
	if filter.Status != "" {
		qf = qf.ByStatus(filter.Status)
	}
	if filter.Limit > 0 {
		qf = qf.WithLimit(filter.Limit)
	}
	return s.store.Request().List(ctx, qf)
}
