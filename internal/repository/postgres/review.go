package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/repository"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/database"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
)

// ReviewRepository implements review persistence operations using PostgreSQL.
//
// Create, Update, and Delete each run as one transaction: take the course
// row lock, apply the review mutation, recompute the course aggregates from
// the full review population, write them back, commit. The row lock
// serializes concurrent mutators per course; mutations on different courses
// proceed in parallel.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review and recomputes the owning course's aggregates in
// the same transaction. The (user_id, course_id) unique index is the
// authority on duplicates; a violation maps to a conflict error and leaves
// no partial state.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (*domain.CourseAggregates, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCourse(ctx, tx, review.CourseID); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO reviews (id, course_id, user_id, rating, difficulty, content, semester, professor, tags, helpful_users, helpful_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, query,
		review.ID,
		review.CourseID,
		review.UserID,
		review.Rating,
		review.Difficulty,
		review.Content,
		review.Semester,
		review.Professor,
		review.Tags,
		review.HelpfulUsers,
		review.HelpfulCount,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Conflict("user has already reviewed this course")
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}

	agg, err := refreshCourseAggregates(ctx, tx, review.CourseID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return agg, nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT id, course_id, user_id, rating, difficulty, content, semester, professor, tags, helpful_users, helpful_count, created_at, updated_at
		FROM reviews
		WHERE id = $1`

	return r.scanReview(ctx, query, id)
}

// GetByUserAndCourse retrieves the review a user holds for a course. Used
// as the friendly duplicate pre-check; the unique index remains the
// race-safe backstop.
func (r *ReviewRepository) GetByUserAndCourse(ctx context.Context, userID, courseID string) (*domain.Review, error) {
	query := `
		SELECT id, course_id, user_id, rating, difficulty, content, semester, professor, tags, helpful_users, helpful_count, created_at, updated_at
		FROM reviews
		WHERE user_id = $1 AND course_id = $2`

	return r.scanReview(ctx, query, userID, courseID)
}

// ListByCourseID returns paginated reviews for a course along with the total count.
func (r *ReviewRepository) ListByCourseID(ctx context.Context, courseID string, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	query := fmt.Sprintf(`
		SELECT id, course_id, user_id, rating, difficulty, content, semester, professor, tags, helpful_users, helpful_count, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE course_id = $1
		ORDER BY %s
		LIMIT $2 OFFSET $3`,
		reviewOrderClause(filter.SortBy),
	)

	return r.listReviews(ctx, query, courseID, limit, offset)
}

// ListByUserID returns paginated reviews by a user along with the total count.
func (r *ReviewRepository) ListByUserID(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT id, course_id, user_id, rating, difficulty, content, semester, professor, tags, helpful_users, helpful_count, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.listReviews(ctx, query, userID, limit, offset)
}

// Update modifies a review's content fields and recomputes the owning
// course's aggregates in the same transaction. Identity and vote fields are
// not part of the SET list.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) (*domain.CourseAggregates, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCourse(ctx, tx, review.CourseID); err != nil {
		return nil, err
	}

	review.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE reviews
		SET rating = $1, difficulty = $2, content = $3, semester = $4, professor = $5, tags = $6, updated_at = $7
		WHERE id = $8`

	ct, err := tx.Exec(ctx, query,
		review.Rating,
		review.Difficulty,
		review.Content,
		review.Semester,
		review.Professor,
		review.Tags,
		review.UpdatedAt,
		review.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return nil, apperrors.NotFound("review", review.ID)
	}

	agg, err := refreshCourseAggregates(ctx, tx, review.CourseID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return agg, nil
}

// Delete removes a review and recomputes the owning course's aggregates in
// the same transaction.
func (r *ReviewRepository) Delete(ctx context.Context, id, courseID string) (*domain.CourseAggregates, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCourse(ctx, tx, courseID); err != nil {
		return nil, err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return nil, apperrors.NotFound("review", id)
	}

	agg, err := refreshCourseAggregates(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return agg, nil
}

// ToggleHelpful flips the user's membership in the review's helpful set and
// adjusts the count in one atomic statement. Both CASE expressions evaluate
// against the pre-update row, so the set and the counter move in lockstep
// even under concurrent toggles from different users.
func (r *ReviewRepository) ToggleHelpful(ctx context.Context, reviewID, userID string) (*domain.Review, error) {
	query := `
		UPDATE reviews
		SET helpful_users = CASE WHEN $2 = ANY(helpful_users)
		                         THEN array_remove(helpful_users, $2)
		                         ELSE array_append(helpful_users, $2) END,
		    helpful_count = CASE WHEN $2 = ANY(helpful_users)
		                         THEN helpful_count - 1
		                         ELSE helpful_count + 1 END
		WHERE id = $1
		RETURNING id, course_id, user_id, rating, difficulty, content, semester, professor, tags, helpful_users, helpful_count, created_at, updated_at`

	var rv domain.Review
	err := r.pool.QueryRow(ctx, query, reviewID, userID).Scan(
		&rv.ID,
		&rv.CourseID,
		&rv.UserID,
		&rv.Rating,
		&rv.Difficulty,
		&rv.Content,
		&rv.Semester,
		&rv.Professor,
		&rv.Tags,
		&rv.HelpfulUsers,
		&rv.HelpfulCount,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", reviewID)
		}
		return nil, fmt.Errorf("toggle helpful vote: %w", err)
	}

	normalizeReview(&rv)

	return &rv, nil
}

// Reconcile recomputes a course's aggregates from its review population and
// rewrites them under the course row lock. Idempotent: re-running it against
// an already consistent course is a no-op write. The returned bool reports
// whether the stored values had drifted from the computed ones.
func (r *ReviewRepository) Reconcile(ctx context.Context, courseID string) (*domain.CourseAggregates, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		SELECT average_rating, average_difficulty, review_count
		FROM courses
		WHERE id = $1
		FOR UPDATE`

	var stored domain.CourseAggregates
	err = tx.QueryRow(ctx, query, courseID).Scan(
		&stored.AverageRating,
		&stored.AverageDifficulty,
		&stored.ReviewCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NotFound("course", courseID)
		}
		return nil, false, fmt.Errorf("lock course row: %w", err)
	}

	agg, err := refreshCourseAggregates(ctx, tx, courseID)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}

	drifted := stored != *agg

	return agg, drifted, nil
}

// listReviews executes a paginated review query with a trailing total_count column.
func (r *ReviewRepository) listReviews(ctx context.Context, query string, args ...any) ([]domain.Review, int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review

		if err := rows.Scan(
			&rv.ID,
			&rv.CourseID,
			&rv.UserID,
			&rv.Rating,
			&rv.Difficulty,
			&rv.Content,
			&rv.Semester,
			&rv.Professor,
			&rv.Tags,
			&rv.HelpfulUsers,
			&rv.HelpfulCount,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}

		normalizeReview(&rv)
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// scanReview is a helper that executes a query expected to return a single review row.
func (r *ReviewRepository) scanReview(ctx context.Context, query string, args ...any) (*domain.Review, error) {
	var rv domain.Review

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&rv.ID,
		&rv.CourseID,
		&rv.UserID,
		&rv.Rating,
		&rv.Difficulty,
		&rv.Content,
		&rv.Semester,
		&rv.Professor,
		&rv.Tags,
		&rv.HelpfulUsers,
		&rv.HelpfulCount,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}

	normalizeReview(&rv)

	return &rv, nil
}

// lockCourse takes the course row lock that serializes review mutations and
// aggregate recomputations for one course.
func lockCourse(ctx context.Context, q database.DBTX, courseID string) error {
	var id string
	err := q.QueryRow(ctx, `SELECT id FROM courses WHERE id = $1 FOR UPDATE`, courseID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("course", courseID)
		}
		return fmt.Errorf("lock course row: %w", err)
	}
	return nil
}

// refreshCourseAggregates recomputes the three aggregate fields from the
// full review population of the course and writes them back. Callers hold
// the course row lock and own the enclosing transaction.
func refreshCourseAggregates(ctx context.Context, q database.DBTX, courseID string) (*domain.CourseAggregates, error) {
	query := `
		SELECT COALESCE(AVG(rating), 0), COALESCE(AVG(difficulty), 0), COUNT(*)
		FROM reviews
		WHERE course_id = $1`

	var agg domain.CourseAggregates
	err := q.QueryRow(ctx, query, courseID).Scan(
		&agg.AverageRating,
		&agg.AverageDifficulty,
		&agg.ReviewCount,
	)
	if err != nil {
		return nil, fmt.Errorf("compute course aggregates: %w", err)
	}

	// Round averages to one decimal place.
	agg.AverageRating = round1(agg.AverageRating)
	agg.AverageDifficulty = round1(agg.AverageDifficulty)

	update := `
		UPDATE courses
		SET average_rating = $1, average_difficulty = $2, review_count = $3, updated_at = $4
		WHERE id = $5`

	ct, err := q.Exec(ctx, update,
		agg.AverageRating,
		agg.AverageDifficulty,
		agg.ReviewCount,
		time.Now().UTC(),
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("write course aggregates: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return nil, apperrors.NotFound("course", courseID)
	}

	return &agg, nil
}

// normalizeReview derives the difficulty label and replaces nil slices so
// JSON output always carries arrays.
func normalizeReview(rv *domain.Review) {
	rv.DifficultyText = domain.DifficultyText(rv.Difficulty)
	if rv.Tags == nil {
		rv.Tags = []string{}
	}
	if rv.HelpfulUsers == nil {
		rv.HelpfulUsers = []string{}
	}
}

// reviewOrderClause maps a validated sort option to its ORDER BY clause.
func reviewOrderClause(sortBy string) string {
	switch sortBy {
	case domain.ReviewSortHelpful:
		return "helpful_count DESC, created_at DESC"
	case domain.ReviewSortRating:
		return "rating DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
