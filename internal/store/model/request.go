package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusProcessing = "processing"
	StatusSubmitted  = "submitted"
	StatusSuccess    = "success"
	// StatusError groups every failure status in aggregates.
	StatusError = "error"

	statusErrorPrefix = "error: "
)

// ErrorStatus builds the terminal failure status carrying reason.
func ErrorStatus(reason string) string {
	return statusErrorPrefix + reason
}

// IsErrorStatus reports whether status is a terminal failure status.
func IsErrorStatus(status string) bool {
	return strings.HasPrefix(status, statusErrorPrefix)
}

// Request is the ledger row tracking one mosaic pipeline run.
type Request struct {
	ID         uuid.UUID `gorm:"primaryKey;type:uuid"`
	ProjectKey string    `gorm:"index;not null"`
	ClientName *string
	FarmName   *string
	PlotID     *string
	SurveyDate *string
	Status     string `gorm:"not null"`
	JobID      *string
	ResultURL  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RequestList []Request

func (Request) TableName() string {
	return "requests"
}

func (r *Request) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r Request) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}
