package v1alpha1

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/orthoflow/orthoflow/internal/handlers/v1alpha1/mappers"
)

// (GET /status)
func (h *ServiceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, mappers.StatusToApi(h.healthSrv.Status()))
}

// (GET /health)
func (h *ServiceHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	readiness := h.healthSrv.Readiness(r.Context())
	if !readiness.Ready() {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, mappers.HealthToApi(readiness))
}
