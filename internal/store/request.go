package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orthoflow/orthoflow/internal/store/model"
)

// RequestCreate holds the attributes of a new request record.
type RequestCreate struct {
	ProjectKey string
	ClientName *string
	FarmName   *string
	PlotID     *string
	SurveyDate *string
}

// RequestUpdate is a partial update. Nil fields are left untouched.
type RequestUpdate struct {
	Status    *string
	JobID     *string
	ResultURL *string
}

func (u RequestUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.JobID != nil {
		cols["job_id"] = *u.JobID
	}
	if u.ResultURL != nil {
		cols["result_url"] = *u.ResultURL
	}
	return cols
}

type Request interface {
	Create(ctx context.Context, req RequestCreate) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, update RequestUpdate) error
	Get(ctx context.Context, id uuid.UUID) (*model.Request, error)
	List(ctx context.Context, filter *RequestQueryFilter) (model.RequestList, error)
	// Stats returns the number of requests per status. Failed requests are counted under "error".
	Stats(ctx context.Context) (map[string]int64, error)
}

type RequestStore struct {
	db *gorm.DB
}

// Make sure we conform to Request interface
var _ Request = (*RequestStore)(nil)

func NewRequestStore(db *gorm.DB) Request {
	return &RequestStore{db: db}
}

func (s *RequestStore) Create(ctx context.Context, req RequestCreate) (uuid.UUID, error) {
	record := model.Request{
		ProjectKey: req.ProjectKey,
		ClientName: req.ClientName,
		FarmName:   req.FarmName,
		PlotID:     req.PlotID,
		SurveyDate: req.SurveyDate,
		Status:     model.StatusProcessing,
	}

	result := s.db.WithContext(ctx).Create(&record)
	if result.Error != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrCreateRequest, result.Error)
	}
	if result.RowsAffected != 1 || record.ID == uuid.Nil {
		return uuid.Nil, ErrCreateRequest
	}

	return record.ID, nil
}

func (s *RequestStore) Update(ctx context.Context, id uuid.UUID, update RequestUpdate) error {
	cols := update.columns()
	if len(cols) == 0 {
		return ErrEmptyUpdate
	}

	result := s.db.WithContext(ctx).Model(&model.Request{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return fmt.Errorf("updating request %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *RequestStore) Get(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var record model.Request
	result := s.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying request: %w", result.Error)
	}

	return &record, nil
}

func (s *RequestStore) List(ctx context.Context, filter *RequestQueryFilter) (model.RequestList, error) {
	var records model.RequestList
	tx := s.db.WithContext(ctx).Model(&records).Order("created_at DESC")
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&records); result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (s *RequestStore) Stats(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Total  int64
	}

	var rows []statusCount
	result := s.db.WithContext(ctx).Model(&model.Request{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("counting requests: %w", result.Error)
	}

	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		status := r.Status
		if model.IsErrorStatus(status) {
			status = model.StatusError
		}
		stats[status] += r.Total
	}
	return stats, nil
}
