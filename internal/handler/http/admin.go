package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/service"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/httputil"
)

// AdminHandler handles HTTP requests for administrative operations.
type AdminHandler struct {
	syncService   *service.SyncService
	reviewService *service.ReviewService
	logger        *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(syncSvc *service.SyncService, reviewSvc *service.ReviewService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		syncService:   syncSvc,
		reviewService: reviewSvc,
		logger:        logger,
	}
}

// SyncCatalog handles POST /api/v1/admin/catalog/sync
// @Summary Sync the course catalog
// @Description Pulls the registrar's catalog feed and upserts every course. Admin only.
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/admin/catalog/sync [post]
func (h *AdminHandler) SyncCatalog(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.SyncCatalog(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ReconcileCourse handles POST /api/v1/admin/courses/{id}/reconcile
// @Summary Reconcile course aggregates
// @Description Recomputes a course's aggregates from its review population and repairs any drift. Admin only.
// @Tags admin
// @Produce json
// @Param id path string true "Course UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/admin/courses/{id}/reconcile [post]
func (h *AdminHandler) ReconcileCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	agg, repaired, err := h.reviewService.ReconcileCourse(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"course_id":  id.String(),
		"aggregates": agg,
		"repaired":   repaired,
	}})
}
