package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/event"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/repository"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/slug"
)

// CourseService implements the business logic for course catalog operations.
// The three aggregate fields on a course are owned by the review side; this
// service reads them but never writes them.
type CourseService struct {
	courses  repository.CourseRepository
	cache    repository.CourseSummaryCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewCourseService creates a new course service.
func NewCourseService(courses repository.CourseRepository, cache repository.CourseSummaryCache, producer *event.Producer, logger *slog.Logger) *CourseService {
	return &CourseService{
		courses:  courses,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// CreateCourseInput holds the parameters for creating a course.
type CreateCourseInput struct {
	Code        string
	Title       string
	Department  string
	Description string
}

// UpdateCourseInput holds the parameters for updating a course. Nil fields
// are left unchanged.
type UpdateCourseInput struct {
	Code        *string
	Title       *string
	Department  *string
	Description *string
}

// CreateCourse creates a new catalog entry with zeroed aggregates.
func (s *CourseService) CreateCourse(ctx context.Context, input *CreateCourseInput) (*domain.Course, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, apperrors.InvalidInput("course code is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.InvalidInput("course title is required")
	}
	department := strings.TrimSpace(input.Department)
	if department == "" {
		return nil, apperrors.InvalidInput("department is required")
	}

	now := time.Now().UTC()
	course := &domain.Course{
		ID:          uuid.New().String(),
		Code:        code,
		Slug:        slug.Generate(code),
		Title:       title,
		Department:  department,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	if err := s.producer.PublishCourseCreated(ctx, course); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish course.created event",
			slog.String("course_id", course.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "course created",
		slog.String("course_id", course.ID),
		slog.String("code", course.Code),
		slog.String("slug", course.Slug),
	)

	return course, nil
}

// GetCourse retrieves a course by its ID.
func (s *CourseService) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get course by id: %w", err)
	}
	return course, nil
}

// GetCourseBySlug retrieves a course by its slug.
func (s *CourseService) GetCourseBySlug(ctx context.Context, slug string) (*domain.Course, error) {
	course, err := s.courses.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get course by slug: %w", err)
	}
	return course, nil
}

// GetCourseSummary returns the rating digest for a course, served from the
// cache when possible and repopulated from the database on a miss.
func (s *CourseService) GetCourseSummary(ctx context.Context, courseID string) (*domain.CourseSummary, error) {
	summary, err := s.cache.Get(ctx, courseID)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.WarnContext(ctx, "course summary cache read failed, falling back to store",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()),
		)
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course for summary: %w", err)
	}

	summary = course.Summary()
	if err := s.cache.Set(ctx, summary); err != nil {
		s.logger.WarnContext(ctx, "failed to cache course summary",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()),
		)
	}

	return summary, nil
}

// ListCourses returns a filtered, paginated list of courses with the total count.
func (s *CourseService) ListCourses(ctx context.Context, filter repository.CourseFilter) ([]domain.Course, int, error) {
	if !domain.IsValidCourseSort(filter.SortBy) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid sort %q, must be one of: %s", filter.SortBy, strings.Join(domain.ValidCourseSortValues(), ", ")))
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	return courses, total, nil
}

// UpdateCourse applies partial updates to a course's descriptive fields. The
// aggregate fields are not reachable from here.
func (s *CourseService) UpdateCourse(ctx context.Context, id string, input *UpdateCourseInput) (*domain.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get course for update: %w", err)
	}

	if input.Code != nil {
		code := strings.TrimSpace(*input.Code)
		if code == "" {
			return nil, apperrors.InvalidInput("course code must not be empty")
		}
		course.Code = code
		course.Slug = slug.Generate(code)
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.InvalidInput("course title must not be empty")
		}
		course.Title = title
	}

	if input.Department != nil {
		department := strings.TrimSpace(*input.Department)
		if department == "" {
			return nil, apperrors.InvalidInput("department must not be empty")
		}
		course.Department = department
	}

	if input.Description != nil {
		course.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}

	s.invalidateSummary(ctx, course.ID)

	s.logger.InfoContext(ctx, "course updated",
		slog.String("course_id", course.ID),
		slog.String("code", course.Code),
	)

	return course, nil
}

// DeleteCourse removes a course and, through the store's cascade, all of its
// reviews.
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	if err := s.courses.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}

	s.invalidateSummary(ctx, id)

	s.logger.InfoContext(ctx, "course deleted",
		slog.String("course_id", id),
	)

	return nil
}

// RefreshSummary reloads a course's summary from the store into the cache.
// A vanished course clears the cache entry instead.
func (s *CourseService) RefreshSummary(ctx context.Context, courseID string) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.invalidateSummary(ctx, courseID)
			return nil
		}
		return fmt.Errorf("get course for summary refresh: %w", err)
	}

	if err := s.cache.Set(ctx, course.Summary()); err != nil {
		return fmt.Errorf("cache course summary: %w", err)
	}

	s.logger.DebugContext(ctx, "course summary refreshed",
		slog.String("course_id", courseID),
		slog.Int("review_count", course.ReviewCount),
	)

	return nil
}

// invalidateSummary drops the cached summary for a course; failures are
// logged and non-fatal since entries also expire by TTL.
func (s *CourseService) invalidateSummary(ctx context.Context, courseID string) {
	if err := s.cache.Invalidate(ctx, courseID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate course summary cache",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()),
		)
	}
}
