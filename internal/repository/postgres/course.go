package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/repository"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/database"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
)

// CourseRepository implements course persistence operations using PostgreSQL.
type CourseRepository struct {
	pool database.DBTX
}

// NewCourseRepository creates a new PostgreSQL-backed course repository.
func NewCourseRepository(pool database.DBTX) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// Create inserts a new course into the database. Aggregates start at zero
// and are only ever written by the review mutation paths.
func (r *CourseRepository) Create(ctx context.Context, c *domain.Course) error {
	query := `
		INSERT INTO courses (id, code, slug, title, department, description, average_rating, average_difficulty, review_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Code,
		c.Slug,
		c.Title,
		c.Department,
		c.Description,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("course", "code", c.Code)
		}
		return fmt.Errorf("insert course: %w", err)
	}

	c.AverageRating = 0
	c.AverageDifficulty = 0
	c.ReviewCount = 0

	return nil
}

// GetByID retrieves a course by its ID.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	query := `
		SELECT id, code, slug, title, department, description, average_rating, average_difficulty, review_count, created_at, updated_at
		FROM courses
		WHERE id = $1`

	return r.scanCourse(ctx, query, id)
}

// GetBySlug retrieves a course by its slug.
func (r *CourseRepository) GetBySlug(ctx context.Context, slug string) (*domain.Course, error) {
	query := `
		SELECT id, code, slug, title, department, description, average_rating, average_difficulty, review_count, created_at, updated_at
		FROM courses
		WHERE slug = $1`

	return r.scanCourse(ctx, query, slug)
}

// List returns a filtered, paginated list of courses and the total count.
func (r *CourseRepository) List(ctx context.Context, filter repository.CourseFilter) ([]domain.Course, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Department != nil {
		conditions = append(conditions, fmt.Sprintf("department = $%d", argIndex))
		args = append(args, *filter.Department)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR title ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT id, code, slug, title, department, description, average_rating, average_difficulty, review_count, created_at, updated_at,
			   count(*) OVER() AS total_count
		FROM courses
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		whereClause, courseOrderClause(filter.SortBy), argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var (
		courses    []domain.Course
		totalCount int
	)

	for rows.Next() {
		var c domain.Course

		if err := rows.Scan(
			&c.ID,
			&c.Code,
			&c.Slug,
			&c.Title,
			&c.Department,
			&c.Description,
			&c.AverageRating,
			&c.AverageDifficulty,
			&c.ReviewCount,
			&c.CreatedAt,
			&c.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan course row: %w", err)
		}

		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate course rows: %w", err)
	}

	if courses == nil {
		courses = []domain.Course{}
	}

	return courses, totalCount, nil
}

// Update modifies a course's descriptive fields. The aggregate columns are
// deliberately absent from the SET list.
func (r *CourseRepository) Update(ctx context.Context, c *domain.Course) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE courses
		SET code = $1, slug = $2, title = $3, department = $4, description = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.pool.Exec(ctx, query,
		c.Code,
		c.Slug,
		c.Title,
		c.Department,
		c.Description,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("course", "code", c.Code)
		}
		return fmt.Errorf("update course: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("course", c.ID)
	}

	return nil
}

// Delete removes a course; its reviews cascade via the foreign key.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM courses WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("course", id)
	}

	return nil
}

// Upsert inserts a course keyed by code or refreshes its descriptive fields
// if the code already exists. Aggregates are never part of the update set,
// so a registrar refresh cannot clobber review statistics.
func (r *CourseRepository) Upsert(ctx context.Context, c *domain.Course) (bool, error) {
	query := `
		INSERT INTO courses (id, code, slug, title, department, description, average_rating, average_difficulty, review_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			slug = EXCLUDED.slug,
			title = EXCLUDED.title,
			department = EXCLUDED.department,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS inserted`

	// xmax is zero only for a freshly inserted row.
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		c.ID,
		c.Code,
		c.Slug,
		c.Title,
		c.Department,
		c.Description,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert course: %w", err)
	}

	return inserted, nil
}

// scanCourse is a helper that executes a query expected to return a single course row.
func (r *CourseRepository) scanCourse(ctx context.Context, query string, args ...any) (*domain.Course, error) {
	var c domain.Course

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.Code,
		&c.Slug,
		&c.Title,
		&c.Department,
		&c.Description,
		&c.AverageRating,
		&c.AverageDifficulty,
		&c.ReviewCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}

	return &c, nil
}

// courseOrderClause maps a validated sort option to its ORDER BY clause.
// Callers validate the sort value first; unknown values fall back to code order.
func courseOrderClause(sortBy string) string {
	switch sortBy {
	case domain.CourseSortRating:
		return "average_rating DESC, review_count DESC, code ASC"
	case domain.CourseSortReviewCount:
		return "review_count DESC, code ASC"
	default:
		return "code ASC"
	}
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
