package v1alpha1

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/orthoflow/orthoflow/api/v1alpha1"
	"github.com/orthoflow/orthoflow/internal/service"
	"github.com/orthoflow/orthoflow/internal/store/model"
)

type MosaicService interface {
	CreateMosaic(ctx context.Context, form service.MosaicCreate) (*model.Request, error)
	GetMosaic(ctx context.Context, id uuid.UUID) (*model.Request, error)
	ListMosaics(ctx context.Context, filter service.MosaicFilter) (model.RequestList, error)
}

type HealthService interface {
	Status() service.Status
	Readiness(ctx context.Context) service.Readiness
}

type ServiceHandler struct {
	mosaicSrv MosaicService
	healthSrv HealthService
}

func NewServiceHandler(mosaicService MosaicService, healthService HealthService) *ServiceHandler {
	return &ServiceHandler{
		mosaicSrv: mosaicService,
		healthSrv: healthService,
	}
}

// HandlerFromMux registers the routes on r. apiMiddlewares only wrap the
// /api/v1 routes, the probes stay open.
func HandlerFromMux(h *ServiceHandler, r chi.Router, apiMiddlewares ...func(http.Handler) http.Handler) http.Handler {
	r.Get("/status", h.GetStatus)
	r.Get("/health", h.GetHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiMiddlewares...)
		r.Post("/mosaics", h.CreateMosaic)
		r.Get("/mosaics", h.ListMosaics)
		r.Get("/mosaics/{id}", h.GetMosaic)
	})

	return r
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, v1alpha1.Error{Message: message})
}
