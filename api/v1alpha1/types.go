package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

type MosaicState string

const (
	MosaicStateProcessing MosaicState = "processing"
	MosaicStateSubmitted  MosaicState = "submitted"
	MosaicStateSuccess    MosaicState = "success"
	MosaicStateError      MosaicState = "error"
)

// MosaicCreate is the body of POST /api/v1/mosaics.
type MosaicCreate struct {
	ProjectKey string  `json:"project_key" validate:"required,max=128,project_key"`
	ClientName *string `json:"client_name,omitempty" validate:"omitempty,max=255"`
	FarmName   *string `json:"farm_name,omitempty" validate:"omitempty,max=255"`
	PlotID     *string `json:"plot_id,omitempty" validate:"omitempty,max=255"`
	SurveyDate *string `json:"survey_date,omitempty" validate:"omitempty,max=64"`
}

// MosaicAccepted is returned once the pipeline run of a request was started.
type MosaicAccepted struct {
	ID         uuid.UUID   `json:"id"`
	ProjectKey string      `json:"project_key"`
	Status     MosaicState `json:"status"`
	Message    string      `json:"message"`
}

type Mosaic struct {
	ID         uuid.UUID   `json:"id"`
	ProjectKey string      `json:"project_key"`
	ClientName *string     `json:"client_name,omitempty"`
	FarmName   *string     `json:"farm_name,omitempty"`
	PlotID     *string     `json:"plot_id,omitempty"`
	SurveyDate *string     `json:"survey_date,omitempty"`
	State      MosaicState `json:"state"`
	// Status is the status as recorded, including the failure reason.
	Status    string    `json:"status"`
	JobID     *string   `json:"job_id,omitempty"`
	ResultURL *string   `json:"result_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MosaicList []Mosaic

type Status struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type Health struct {
	Ready       bool   `json:"ready"`
	Database    string `json:"database"`
	Node        string `json:"node"`
	NodeVersion string `json:"node_version,omitempty"`
	NodeQueue   int    `json:"node_queue"`
}

type Error struct {
	Message string `json:"message"`
}
