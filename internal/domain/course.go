package domain

import (
	"time"
)

// Course sort options for list endpoints.
const (
	CourseSortCode        = "code"
	CourseSortRating      = "rating"
	CourseSortReviewCount = "review_count"
)

// Course represents a catalog course together with its review aggregates.
// The three aggregate fields (AverageRating, AverageDifficulty, ReviewCount)
// are derived from the course's review population and are written only by
// the aggregate recalculation path; every other writer leaves them alone.
type Course struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	Department        string    `json:"department"`
	Description       string    `json:"description"`
	AverageRating     float64   `json:"average_rating"`
	AverageDifficulty float64   `json:"average_difficulty"`
	ReviewCount       int       `json:"review_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CourseSummary is the read-optimized digest cached in Redis for course
// detail pages. It carries the aggregates plus just enough identity to
// render a header without touching Postgres.
type CourseSummary struct {
	CourseID          string  `json:"course_id"`
	Code              string  `json:"code"`
	Title             string  `json:"title"`
	AverageRating     float64 `json:"average_rating"`
	AverageDifficulty float64 `json:"average_difficulty"`
	ReviewCount       int     `json:"review_count"`
}

// Summary returns the cacheable digest of the course.
func (c *Course) Summary() *CourseSummary {
	return &CourseSummary{
		CourseID:          c.ID,
		Code:              c.Code,
		Title:             c.Title,
		AverageRating:     c.AverageRating,
		AverageDifficulty: c.AverageDifficulty,
		ReviewCount:       c.ReviewCount,
	}
}

// ValidCourseSortValues returns the set of valid course sort options.
func ValidCourseSortValues() []string {
	return []string{CourseSortCode, CourseSortRating, CourseSortReviewCount}
}

// IsValidCourseSort checks whether the given sort value is valid. The empty
// string is valid and means the default order.
func IsValidCourseSort(sort string) bool {
	if sort == "" {
		return true
	}
	for _, s := range ValidCourseSortValues() {
		if s == sort {
			return true
		}
	}
	return false
}
