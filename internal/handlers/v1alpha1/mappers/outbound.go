package mappers

import (
	"github.com/orthoflow/orthoflow/api/v1alpha1"
	"github.com/orthoflow/orthoflow/internal/service"
	"github.com/orthoflow/orthoflow/internal/store/model"
)

const acceptedMessage = "request accepted, processing started"

func MosaicAcceptedToApi(r *model.Request) v1alpha1.MosaicAccepted {
	return v1alpha1.MosaicAccepted{
		ID:         r.ID,
		ProjectKey: r.ProjectKey,
		Status:     v1alpha1.StringToMosaicState(r.Status),
		Message:    acceptedMessage,
	}
}

func MosaicToApi(r model.Request) v1alpha1.Mosaic {
	return v1alpha1.Mosaic{
		ID:         r.ID,
		ProjectKey: r.ProjectKey,
		ClientName: r.ClientName,
		FarmName:   r.FarmName,
		PlotID:     r.PlotID,
		SurveyDate: r.SurveyDate,
		State:      v1alpha1.StringToMosaicState(r.Status),
		Status:     r.Status,
		JobID:      r.JobID,
		ResultURL:  r.ResultURL,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func MosaicListToApi(records model.RequestList) v1alpha1.MosaicList {
	list := make(v1alpha1.MosaicList, 0, len(records))
	for _, r := range records {
		list = append(list, MosaicToApi(r))
	}
	return list
}

func StatusToApi(s service.Status) v1alpha1.Status {
	return v1alpha1.Status{
		Status:    s.Status,
		Version:   s.Version,
		Timestamp: s.Timestamp,
	}
}

func HealthToApi(r service.Readiness) v1alpha1.Health {
	return v1alpha1.Health{
		Ready:       r.Ready(),
		Database:    r.Database,
		Node:        r.Node,
		NodeVersion: r.NodeVersion,
		NodeQueue:   r.NodeQueue,
	}
}
