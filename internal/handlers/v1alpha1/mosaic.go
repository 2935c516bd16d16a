package v1alpha1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orthoflow/orthoflow/api/v1alpha1"
	"github.com/orthoflow/orthoflow/internal/handlers/v1alpha1/mappers"
	"github.com/orthoflow/orthoflow/internal/handlers/validator"
	"github.com/orthoflow/orthoflow/internal/service"
)

const maxListLimit = 500

// (POST /api/v1/mosaics)
func (h *ServiceHandler) CreateMosaic(w http.ResponseWriter, r *http.Request) {
	var form v1alpha1.MosaicCreate
	if err := render.DecodeJSON(r.Body, &form); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	v := validator.NewValidator()
	v.Register(validator.NewMosaicValidationRules()...)
	if err := v.Struct(form); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.mosaicSrv.CreateMosaic(r.Context(), mappers.MosaicFormApi(form))
	if err != nil {
		var busy *service.ErrServiceBusy
		if errors.As(err, &busy) {
			respondError(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
		zap.S().Named("handlers").Errorw("failed to create mosaic request", "project_key", form.ProjectKey, "error", err)
		respondError(w, r, http.StatusInternalServerError, "failed to create the request record")
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, mappers.MosaicAcceptedToApi(record))
}

// (GET /api/v1/mosaics/{id})
func (h *ServiceHandler) GetMosaic(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid mosaic id")
		return
	}

	record, err := h.mosaicSrv.GetMosaic(r.Context(), id)
	if err != nil {
		var notFound *service.ErrResourceNotFound
		if errors.As(err, &notFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	render.JSON(w, r, mappers.MosaicToApi(*record))
}

// (GET /api/v1/mosaics)
func (h *ServiceHandler) ListMosaics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.MosaicFilter{
		ProjectKey: q.Get("project_key"),
		Status:     q.Get("status"),
		Limit:      100,
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 || limit > maxListLimit {
			respondError(w, r, http.StatusBadRequest, "limit must be a number between 1 and 500")
			return
		}
		filter.Limit = limit
	}

	records, err := h.mosaicSrv.ListMosaics(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	render.JSON(w, r, mappers.MosaicListToApi(records))
}
