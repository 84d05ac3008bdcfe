package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/repository"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/service"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/httputil"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/middleware"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/pagination"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/validator"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON request body for creating a review.
// The difficulty label is always derived server-side from the numeric
// difficulty; there is no field for it here.
type CreateReviewRequest struct {
	Rating     float64  `json:"rating" validate:"required,min=1,max=5,halfstep"`
	Difficulty int      `json:"difficulty" validate:"required,min=1,max=5"`
	Content    string   `json:"content" validate:"required,max=5000"`
	Semester   string   `json:"semester" validate:"required,max=50"`
	Professor  string   `json:"professor" validate:"required,max=100"`
	Tags       []string `json:"tags" validate:"omitempty,max=5"`
}

// UpdateReviewRequest is the JSON request body for updating a review.
// Nil fields are left unchanged; a non-nil Tags replaces the tag set.
type UpdateReviewRequest struct {
	Rating     *float64 `json:"rating" validate:"omitempty,min=1,max=5,halfstep"`
	Difficulty *int     `json:"difficulty" validate:"omitempty,min=1,max=5"`
	Content    *string  `json:"content" validate:"omitempty,max=5000"`
	Semester   *string  `json:"semester" validate:"omitempty,max=50"`
	Professor  *string  `json:"professor" validate:"omitempty,max=100"`
	Tags       []string `json:"tags" validate:"omitempty,max=5"`
}

// ReviewMutationResponse pairs a review with the course aggregates that were
// recomputed in the same unit of work as the mutation.
type ReviewMutationResponse struct {
	Review           *domain.Review           `json:"review"`
	CourseAggregates *domain.CourseAggregates `json:"course_aggregates"`
}

// --- Handlers ---

// ListCourseReviews handles GET /api/v1/courses/{courseId}/reviews
// @Summary List course reviews
// @Description Returns paginated reviews for a course
// @Tags reviews
// @Produce json
// @Param courseId path string true "Course UUID"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Param sort_by query string false "Sort order" Enums(recent,helpful,rating)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/courses/{courseId}/reviews [get]
func (h *ReviewHandler) ListCourseReviews(w http.ResponseWriter, r *http.Request) {
	courseID, ok := httputil.ParseUUID(w, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}

	filter := repository.ReviewFilter{
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
	if v := r.URL.Query().Get("sort_by"); v != "" {
		if !domain.IsValidReviewSort(v) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "sort_by must be one of: recent, helpful, rating"},
			})
			return
		}
		filter.SortBy = v
	}

	reviews, total, err := h.service.ListCourseReviews(r.Context(), courseID.String(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, filter.Page, filter.PerPage))
}

// CreateReview handles POST /api/v1/courses/{courseId}/reviews
// @Summary Create a course review
// @Description Submits a review for a course. One review per user per course.
// @Tags reviews
// @Accept json
// @Produce json
// @Param courseId path string true "Course UUID"
// @Param request body CreateReviewRequest true "Review to submit"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/courses/{courseId}/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	courseID, ok := httputil.ParseUUID(w, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateReviewRequest
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

	input := &service.CreateReviewInput{
		CourseID:   courseID.String(),
		UserID:     userID,
		Rating:     req.Rating,
		Difficulty: req.Difficulty,
		Content:    req.Content,
		Semester:   req.Semester,
		Professor:  req.Professor,
		Tags:       req.Tags,
	}

	review, agg, err := h.service.CreateReview(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: ReviewMutationResponse{
		Review:           review,
		CourseAggregates: agg,
	}})
}

// GetReview handles GET /api/v1/reviews/{id}
// @Summary Get a review
// @Description Returns a single review by UUID
// @Tags reviews
// @Produce json
// @Param id path string true "Review UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reviews/{id} [get]
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	review, err := h.service.GetReview(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// UpdateReview handles PUT /api/v1/reviews/{id}
// @Summary Update a review
// @Description Updates the caller's own review. Only the owner may update.
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "Review UUID"
// @Param request body UpdateReviewRequest true "Fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reviews/{id} [put]
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateReviewRequest
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

	input := &service.UpdateReviewInput{
		Rating:     req.Rating,
		Difficulty: req.Difficulty,
		Content:    req.Content,
		Semester:   req.Semester,
		Professor:  req.Professor,
		Tags:       req.Tags,
	}

	review, agg, err := h.service.UpdateReview(r.Context(), id.String(), userID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ReviewMutationResponse{
		Review:           review,
		CourseAggregates: agg,
	}})
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
// @Summary Delete a review
// @Description Deletes a review. Owners may delete their own; moderators and admins may delete any.
// @Tags reviews
// @Produce json
// @Param id path string true "Review UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reviews/{id} [delete]
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}
	role := middleware.RoleFromContext(r.Context())

	agg, err := h.service.DeleteReview(r.Context(), id.String(), userID, role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"id":                id.String(),
		"status":            "deleted",
		"course_aggregates": agg,
	}})
}

// ToggleHelpful handles POST /api/v1/reviews/{id}/helpful
// @Summary Toggle a helpful vote
// @Description Adds the caller's helpful vote if absent, removes it if present.
// @Tags reviews
// @Produce json
// @Param id path string true "Review UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/reviews/{id}/helpful [post]
func (h *ReviewHandler) ToggleHelpful(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	review, err := h.service.ToggleHelpfulVote(r.Context(), id.String(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// ListMyReviews handles GET /api/v1/users/me/reviews
// @Summary List the caller's reviews
// @Description Returns paginated reviews written by the authenticated user
// @Tags reviews
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/v1/users/me/reviews [get]
func (h *ReviewHandler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	// Unparsable pagination values fall back to the defaults here; a
	// personal listing always answers.
	params := pagination.FromRequest(r)

	reviews, total, err := h.service.ListUserReviews(r.Context(), userID, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(reviews, total, params))
}
