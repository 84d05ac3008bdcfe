package domain

import (
	"math"
	"time"
)

// Rating and difficulty bounds.
const (
	MinRating     = 1.0
	MaxRating     = 5.0
	MinDifficulty = 1
	MaxDifficulty = 5

	MinContentLen   = 10
	MaxContentLen   = 5000
	MaxSemesterLen  = 50
	MaxProfessorLen = 100
	MaxTags         = 5
)

// Difficulty labels derived from the numeric difficulty.
const (
	DifficultyEasy     = "Easy"
	DifficultyModerate = "Moderate"
	DifficultyHard     = "Hard"
)

// Review sort options for list endpoints.
const (
	ReviewSortRecent  = "recent"
	ReviewSortHelpful = "helpful"
	ReviewSortRating  = "rating"
)

// Review represents a student's review of a course. DifficultyText is
// derived from Difficulty and never accepted from callers; HelpfulCount
// equals len(HelpfulUsers) after every committed toggle.
type Review struct {
	ID             string    `json:"id"`
	CourseID       string    `json:"course_id"`
	UserID         string    `json:"user_id"`
	Rating         float64   `json:"rating"`
	Difficulty     int       `json:"difficulty"`
	DifficultyText string    `json:"difficulty_text"`
	Content        string    `json:"content"`
	Semester       string    `json:"semester"`
	Professor      string    `json:"professor"`
	Tags           []string  `json:"tags"`
	HelpfulUsers   []string  `json:"helpful_users"`
	HelpfulCount   int       `json:"helpful_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CourseAggregates holds the derived statistics recomputed from a course's
// review population on every review mutation.
type CourseAggregates struct {
	AverageRating     float64 `json:"average_rating"`
	AverageDifficulty float64 `json:"average_difficulty"`
	ReviewCount       int     `json:"review_count"`
}

// DifficultyText maps a numeric difficulty to its label: 1-2 Easy,
// 3-4 Moderate, 5 Hard. Out-of-range values map to the empty string.
func DifficultyText(difficulty int) string {
	switch {
	case difficulty >= MinDifficulty && difficulty <= 2:
		return DifficultyEasy
	case difficulty >= 3 && difficulty <= 4:
		return DifficultyModerate
	case difficulty == MaxDifficulty:
		return DifficultyHard
	default:
		return ""
	}
}

// IsValidRating checks that the rating is within [1,5] and a multiple of
// 0.5. Half steps are exact in float64, so doubling and comparing against
// the truncated value is a precise check.
func IsValidRating(rating float64) bool {
	if rating < MinRating || rating > MaxRating {
		return false
	}
	doubled := rating * 2
	return doubled == math.Trunc(doubled)
}

// IsValidDifficulty checks that the difficulty is an integer in [1,5].
func IsValidDifficulty(difficulty int) bool {
	return difficulty >= MinDifficulty && difficulty <= MaxDifficulty
}

// ValidTags returns the closed tag vocabulary. Reviews may only carry tags
// from this set; free-text tags are rejected at validation.
func ValidTags() []string {
	return []string{
		"attendance-required",
		"beginner-friendly",
		"discussion-based",
		"exam-heavy",
		"extra-credit",
		"group-projects",
		"heavy-workload",
		"lab-required",
		"paper-heavy",
		"project-based",
	}
}

// IsValidTag checks whether the given tag belongs to the closed vocabulary.
func IsValidTag(tag string) bool {
	for _, t := range ValidTags() {
		if t == tag {
			return true
		}
	}
	return false
}

// ValidReviewSortValues returns the set of valid review sort options.
func ValidReviewSortValues() []string {
	return []string{ReviewSortRecent, ReviewSortHelpful, ReviewSortRating}
}

// IsValidReviewSort checks whether the given sort value is valid. The empty
// string is valid and means the default order (most recent first).
func IsValidReviewSort(sort string) bool {
	if sort == "" {
		return true
	}
	for _, s := range ValidReviewSortValues() {
		if s == sort {
			return true
		}
	}
	return false
}
