package repository

import (
	"context"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
)

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	Department *string
	Search     *string
	SortBy     string
	Page       int
	PerPage    int
}

// ReviewFilter defines pagination and ordering for listing reviews.
type ReviewFilter struct {
	SortBy  string
	Page    int
	PerPage int
}

// CourseRepository defines the interface for course persistence operations.
// Aggregate fields are written exclusively by the review mutation paths in
// ReviewRepository; Create initializes them to zero and Update/Upsert never
// touch them.
type CourseRepository interface {
	// Create inserts a new course with zeroed aggregates.
	Create(ctx context.Context, course *domain.Course) error

	// GetByID retrieves a course by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Course, error)

	// GetBySlug retrieves a course by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Course, error)

	// List returns courses matching the given filter along with the total count.
	List(ctx context.Context, filter CourseFilter) ([]domain.Course, int, error)

	// Update modifies a course's descriptive fields, leaving aggregates alone.
	Update(ctx context.Context, course *domain.Course) error

	// Delete removes a course; reviews cascade with it.
	Delete(ctx context.Context, id string) error

	// Upsert inserts a course by code or refreshes its descriptive fields if
	// the code already exists. Returns true when a new row was inserted.
	Upsert(ctx context.Context, course *domain.Course) (bool, error)
}

// ReviewRepository defines the interface for review persistence operations.
// Every mutation (Create, Update, Delete) recomputes the owning course's
// aggregates from the full review population inside the same transaction,
// serialized per course by a row lock, and returns the recomputed values.
type ReviewRepository interface {
	// Create inserts a review and recomputes the course aggregates atomically.
	Create(ctx context.Context, review *domain.Review) (*domain.CourseAggregates, error)

	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// GetByUserAndCourse retrieves the review a user holds for a course.
	GetByUserAndCourse(ctx context.Context, userID, courseID string) (*domain.Review, error)

	// ListByCourseID returns a course's reviews along with the total count.
	ListByCourseID(ctx context.Context, courseID string, filter ReviewFilter) ([]domain.Review, int, error)

	// ListByUserID returns a user's reviews along with the total count.
	ListByUserID(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error)

	// Update modifies a review and recomputes the course aggregates atomically.
	Update(ctx context.Context, review *domain.Review) (*domain.CourseAggregates, error)

	// Delete removes a review and recomputes the course aggregates atomically.
	Delete(ctx context.Context, id, courseID string) (*domain.CourseAggregates, error)

	// ToggleHelpful flips the user's membership in the review's helpful set
	// and adjusts the count in one atomic statement, returning the new state.
	ToggleHelpful(ctx context.Context, reviewID, userID string) (*domain.Review, error)

	// Reconcile recomputes and rewrites a course's aggregates from its review
	// population. Idempotent; safe to re-run any number of times. The bool
	// reports whether the stored values had drifted before repair.
	Reconcile(ctx context.Context, courseID string) (*domain.CourseAggregates, bool, error)
}

// CourseSummaryCache caches read-heavy course summary digests.
type CourseSummaryCache interface {
	// Get retrieves a cached summary; a miss maps to a not-found error.
	Get(ctx context.Context, courseID string) (*domain.CourseSummary, error)

	// Set stores a summary with the configured TTL.
	Set(ctx context.Context, summary *domain.CourseSummary) error

	// Invalidate drops a course's cached summary.
	Invalidate(ctx context.Context, courseID string) error
}
