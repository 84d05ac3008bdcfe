package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/repository"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/service"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/httputil"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/validator"
)

// CourseHandler handles HTTP requests for catalog endpoints.
type CourseHandler struct {
	service *service.CourseService
	logger  *slog.Logger
}

// NewCourseHandler creates a new course HTTP handler.
func NewCourseHandler(svc *service.CourseService, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateCourseRequest is the JSON request body for creating a course.
type CreateCourseRequest struct {
	Code        string `json:"code" validate:"required,min=1,max=50"`
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Department  string `json:"department" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=5000"`
}

// UpdateCourseRequest is the JSON request body for updating a course.
type UpdateCourseRequest struct {
	Code        *string `json:"code" validate:"omitempty,min=1,max=50"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Department  *string `json:"department" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// --- Handlers ---

// ListCourses handles GET /api/v1/courses
// @Summary List catalog courses
// @Description Returns paginated list of courses with optional filtering and sorting
// @Tags courses
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Param department query string false "Filter by department name"
// @Param search query string false "Search in course code and title"
// @Param sort_by query string false "Sort order" Enums(code,rating,review_count)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/courses [get]
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	filter := repository.CourseFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "page must be a valid positive integer"},
			})
			return
		}
		filter.Page = page
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > 100 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "per_page must be a valid integer between 1 and 100"},
			})
			return
		}
		filter.PerPage = perPage
	}
	if v := r.URL.Query().Get("department"); v != "" {
		filter.Department = &v
	}
	if v := r.URL.Query().Get("search"); v != "" {
		filter.Search = &v
	}
	if v := r.URL.Query().Get("sort_by"); v != "" {
		if !domain.IsValidCourseSort(v) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "sort_by must be one of: code, rating, review_count"},
			})
			return
		}
		filter.SortBy = v
	}

	courses, total, err := h.service.ListCourses(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(courses, total, filter.Page, filter.PerPage))
}

// GetCourse handles GET /api/v1/courses/{idOrSlug}
// It accepts both a UUID (course ID) and a slug for lookup.
// @Summary Get course by ID or slug
// @Description Returns a course with its review aggregates. Accepts both UUID and URL slug.
// @Tags courses
// @Produce json
// @Param idOrSlug path string true "Course UUID or URL slug"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/courses/{idOrSlug} [get]
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "idOrSlug")
	if idOrSlug == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "course id or slug is required"},
		})
		return
	}

	var (
		course *domain.Course
		err    error
	)

	if _, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		course, err = h.service.GetCourse(r.Context(), idOrSlug)
	} else {
		course, err = h.service.GetCourseBySlug(r.Context(), idOrSlug)
	}

	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: course})
}

// GetCourseSummary handles GET /api/v1/courses/{id}/summary
// @Summary Get course summary
// @Description Returns the cached aggregate digest for a course detail header
// @Tags courses
// @Produce json
// @Param id path string true "Course UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/courses/{id}/summary [get]
func (h *CourseHandler) GetCourseSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	summary, err := h.service.GetCourseSummary(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}

// CreateCourse handles POST /api/v1/courses
// @Summary Create a course
// @Description Creates a new catalog entry with zeroed aggregates. Admin only.
// @Tags courses
// @Accept json
// @Produce json
// @Param request body CreateCourseRequest true "Course to create"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/courses [post]
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &service.CreateCourseInput{
		Code:        req.Code,
		Title:       req.Title,
		Department:  req.Department,
		Description: req.Description,
	}

	course, err := h.service.CreateCourse(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: course})
}

// UpdateCourse handles PUT /api/v1/courses/{id}
// @Summary Update a course
// @Description Partially updates a course's catalog fields. Aggregates are never writable here. Admin only.
// @Tags courses
// @Accept json
// @Produce json
// @Param id path string true "Course UUID"
// @Param request body UpdateCourseRequest true "Fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/courses/{id} [put]
func (h *CourseHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &service.UpdateCourseInput{
		Code:        req.Code,
		Title:       req.Title,
		Department:  req.Department,
		Description: req.Description,
	}

	course, err := h.service.UpdateCourse(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: course})
}

// DeleteCourse handles DELETE /api/v1/courses/{id}
// @Summary Delete a course
// @Description Deletes a course and all of its reviews. Admin only.
// @Tags courses
// @Produce json
// @Param id path string true "Course UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/courses/{id} [delete]
func (h *CourseHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteCourse(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id.String(), "status": "deleted"}})
}
