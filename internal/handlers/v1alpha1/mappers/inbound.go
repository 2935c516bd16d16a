package mappers

import (
	"strings"

	"github.com/orthoflow/orthoflow/api/v1alpha1"
	"github.com/orthoflow/orthoflow/internal/service"
)

func MosaicFormApi(form v1alpha1.MosaicCreate) service.MosaicCreate {
	return service.MosaicCreate{
		ProjectKey: strings.TrimSpace(form.ProjectKey),
		ClientName: trimmed(form.ClientName),
		FarmName:   trimmed(form.FarmName),
		PlotID:     trimmed(form.PlotID),
		SurveyDate: trimmed(form.SurveyDate),
	}
}

// trimmed drops blank optional attributes.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
