package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/repository"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/database"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
)

// --- Test Helpers ---

var now = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

func strPtr(s string) *string {
	return &s
}

var courseColumns = []string{
	"id", "code", "slug", "title", "department", "description",
	"average_rating", "average_difficulty", "review_count", "created_at", "updated_at",
}

var courseColumnsWithCount = append(courseColumns, "total_count")

func sampleCourse() *domain.Course {
	return &domain.Course{
		ID:                "550e8400-e29b-41d4-a716-446655440001",
		Code:              "CSCI 243",
		Slug:              "csci-243-data-structures",
		Title:             "Data Structures",
		Department:        "Computer Science",
		Description:       "Lists, trees, graphs, and the algorithms that use them.",
		AverageRating:     4.3,
		AverageDifficulty: 3.1,
		ReviewCount:       27,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func courseRow(c *domain.Course) []any {
	return []any{
		c.ID, c.Code, c.Slug, c.Title, c.Department, c.Description,
		c.AverageRating, c.AverageDifficulty, c.ReviewCount, c.CreatedAt, c.UpdatedAt,
	}
}

// --- Create Tests ---

func TestCourseRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectExec("INSERT INTO courses").
		WithArgs(c.ID, c.Code, c.Slug, c.Title, c.Department, c.Description, c.CreatedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), c)
	require.NoError(t, err)

	// Aggregates start at zero regardless of what the caller passed in.
	assert.Equal(t, 0.0, c.AverageRating)
	assert.Equal(t, 0.0, c.AverageDifficulty)
	assert.Equal(t, 0, c.ReviewCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_Create_DuplicateCode(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectExec("INSERT INTO courses").
		WithArgs(c.ID, c.Code, c.Slug, c.Title, c.Department, c.Description, c.CreatedAt, c.UpdatedAt).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "courses_code_key" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), c)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Get Tests ---

func TestCourseRepository_GetByID_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectQuery("SELECT (.+) FROM courses").
		WithArgs(c.ID).
		WillReturnRows(pgxmock.NewRows(courseColumns).AddRow(courseRow(c)...))

	got, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Code, got.Code)
	assert.Equal(t, c.Slug, got.Slug)
	assert.Equal(t, 4.3, got.AverageRating)
	assert.Equal(t, 3.1, got.AverageDifficulty)
	assert.Equal(t, 27, got.ReviewCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM courses").
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing-id")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_GetBySlug_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectQuery("SELECT (.+) FROM courses").
		WithArgs(c.Slug).
		WillReturnRows(pgxmock.NewRows(courseColumns).AddRow(courseRow(c)...))

	got, err := repo.GetBySlug(context.Background(), c.Slug)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- List Tests ---

func TestCourseRepository_List_NoFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	rows := pgxmock.NewRows(courseColumnsWithCount).
		AddRow(append(courseRow(c), 2)...).
		AddRow(append(courseRow(c), 2)...)

	mock.ExpectQuery("SELECT (.+) FROM courses").
		WithArgs(20, 0).
		WillReturnRows(rows)

	courses, total, err := repo.List(context.Background(), repository.CourseFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, courses, 2)
	assert.Equal(t, 2, total)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_List_WithFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	rows := pgxmock.NewRows(courseColumnsWithCount).
		AddRow(append(courseRow(c), 1)...)

	mock.ExpectQuery("SELECT (.+) FROM courses").
		WithArgs("Computer Science", "%data%", 10, 10).
		WillReturnRows(rows)

	filter := repository.CourseFilter{
		Department: strPtr("Computer Science"),
		Search:     strPtr("data"),
		Page:       2,
		PerPage:    10,
	}

	courses, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, total)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_List_SortByRating(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	mock.ExpectQuery("ORDER BY average_rating DESC").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(courseColumnsWithCount))

	courses, total, err := repo.List(context.Background(), repository.CourseFilter{SortBy: domain.CourseSortRating, Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.NotNil(t, courses)
	assert.Equal(t, 0, total)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Update Tests ---

func TestCourseRepository_Update_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectExec("UPDATE courses").
		WithArgs(c.Code, c.Slug, c.Title, c.Department, c.Description, pgxmock.AnyArg(), c.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, c.UpdatedAt.After(now))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectExec("UPDATE courses").
		WithArgs(c.Code, c.Slug, c.Title, c.Department, c.Description, pgxmock.AnyArg(), c.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), c)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_Update_DuplicateCode(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectExec("UPDATE courses").
		WithArgs(c.Code, c.Slug, c.Title, c.Department, c.Description, pgxmock.AnyArg(), c.ID).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "courses_code_key" (SQLSTATE 23505)`))

	err := repo.Update(context.Background(), c)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Delete Tests ---

func TestCourseRepository_Delete_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	mock.ExpectExec("DELETE FROM courses").
		WithArgs("course-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.Delete(context.Background(), "course-1")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	mock.ExpectExec("DELETE FROM courses").
		WithArgs("missing-id").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "missing-id")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Upsert Tests ---

func TestCourseRepository_Upsert_InsertsNewCourse(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()

	mock.ExpectQuery("INSERT INTO courses").
		WithArgs(c.ID, c.Code, c.Slug, c.Title, c.Department, c.Description, c.CreatedAt, c.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(c.ID, true))

	inserted, err := repo.Upsert(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, inserted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_Upsert_RefreshesExistingCourse(t *testing.T) {
	mock := newMock(t)
	repo := NewCourseRepository(mock)

	c := sampleCourse()
	existingID := "660e8400-e29b-41d4-a716-446655440099"

	mock.ExpectQuery("INSERT INTO courses").
		WithArgs(c.ID, c.Code, c.Slug, c.Title, c.Department, c.Description, c.CreatedAt, c.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(existingID, false))

	inserted, err := repo.Upsert(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, inserted)
	// The course keeps the ID of the row that already held this code.
	assert.Equal(t, existingID, c.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
