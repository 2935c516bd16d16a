package store

import (
	"gorm.io/gorm"

	"github.com/orthoflow/orthoflow/internal/store/model"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type RequestQueryFilter BaseQuerier

func NewRequestQueryFilter() *RequestQueryFilter {
	return &RequestQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *RequestQueryFilter) ByProjectKey(key string) *RequestQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("project_key = ?", key)
	})
	return qf
}

// ByStatus matches status exactly, except model.StatusError which matches
// every failure status.
func (qf *RequestQueryFilter) ByStatus(status string) *RequestQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		if status == model.StatusError {
			return tx.Where("status LIKE ?", model.ErrorStatus("")+"%")
		}
		return tx.Where("status = ?", status)
	})
	return qf
}

func (qf *RequestQueryFilter) WithLimit(limit int) *RequestQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return qf
}
