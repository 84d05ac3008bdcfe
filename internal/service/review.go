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
)

// ReviewService implements the business logic for review operations. Every
// accepted create, update, or delete commits together with the owning
// course's recomputed aggregates; a caller never observes one without the
// other.
type ReviewService struct {
	reviews  repository.ReviewRepository
	courses  repository.CourseRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(reviews repository.ReviewRepository, courses repository.CourseRepository, producer *event.Producer, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		courses:  courses,
		producer: producer,
		logger:   logger,
	}
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	CourseID   string
	UserID     string
	Rating     float64
	Difficulty int
	Content    string
	Semester   string
	Professor  string
	Tags       []string
}

// UpdateReviewInput holds the parameters for updating a review. Nil fields
// are left unchanged.
type UpdateReviewInput struct {
	Rating     *float64
	Difficulty *int
	Content    *string
	Semester   *string
	Professor  *string
	Tags       []string
}

// CreateReview validates and persists a new review, returning the review and
// the course aggregates recomputed in the same unit of work.
func (s *ReviewService) CreateReview(ctx context.Context, input *CreateReviewInput) (*domain.Review, *domain.CourseAggregates, error) {
	if input.CourseID == "" {
		return nil, nil, apperrors.InvalidInput("course_id is required")
	}
	if input.UserID == "" {
		return nil, nil, apperrors.InvalidInput("user_id is required")
	}
	if !domain.IsValidRating(input.Rating) {
		return nil, nil, apperrors.InvalidInput("rating must be between 1 and 5 in half-point steps")
	}
	if !domain.IsValidDifficulty(input.Difficulty) {
		return nil, nil, apperrors.InvalidInput("difficulty must be an integer between 1 and 5")
	}

	content := strings.TrimSpace(input.Content)
	if len(content) < domain.MinContentLen {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("content must be at least %d characters", domain.MinContentLen))
	}
	if len(content) > domain.MaxContentLen {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("content must not exceed %d characters", domain.MaxContentLen))
	}

	semester := strings.TrimSpace(input.Semester)
	if semester == "" {
		return nil, nil, apperrors.InvalidInput("semester is required")
	}
	if len(semester) > domain.MaxSemesterLen {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("semester must not exceed %d characters", domain.MaxSemesterLen))
	}

	professor := strings.TrimSpace(input.Professor)
	if professor == "" {
		return nil, nil, apperrors.InvalidInput("professor is required")
	}
	if len(professor) > domain.MaxProfessorLen {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("professor must not exceed %d characters", domain.MaxProfessorLen))
	}

	tags, err := validateTags(input.Tags)
	if err != nil {
		return nil, nil, err
	}

	// Friendly duplicate check; the unique index on (user_id, course_id)
	// remains the race-safe backstop.
	existing, err := s.reviews.GetByUserAndCourse(ctx, input.UserID, input.CourseID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, fmt.Errorf("check existing review: %w", err)
	}
	if existing != nil {
		return nil, nil, apperrors.Conflict("user has already reviewed this course")
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:           uuid.New().String(),
		CourseID:     input.CourseID,
		UserID:       input.UserID,
		Rating:       input.Rating,
		Difficulty:   input.Difficulty,
		Content:      content,
		Semester:     semester,
		Professor:    professor,
		Tags:         tags,
		HelpfulUsers: []string{},
		HelpfulCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The difficulty label is always derived from the numeric field; caller
	// input never reaches it.
	review.DifficultyText = domain.DifficultyText(review.Difficulty)

	var agg *domain.CourseAggregates
	err = withRetry(ctx, s.logger, "create review", func() error {
		var err error
		agg, err = s.reviews.Create(ctx, review)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create review: %w", err)
	}

	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}
	s.publishAggregates(ctx, review.CourseID, agg)

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("course_id", review.CourseID),
		slog.String("user_id", review.UserID),
		slog.Float64("average_rating", agg.AverageRating),
		slog.Int("review_count", agg.ReviewCount),
	)

	return review, agg, nil
}

// GetReview retrieves a review by its ID.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review by id: %w", err)
	}
	return review, nil
}

// ListCourseReviews returns paginated reviews for a course along with the total count.
func (s *ReviewService) ListCourseReviews(ctx context.Context, courseID string, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	if !domain.IsValidReviewSort(filter.SortBy) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid sort %q, must be one of: %s", filter.SortBy, strings.Join(domain.ValidReviewSortValues(), ", ")))
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

	// An unknown course is a not-found, not an empty list.
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return nil, 0, fmt.Errorf("get course for reviews: %w", err)
	}

	reviews, total, err := s.reviews.ListByCourseID(ctx, courseID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list course reviews: %w", err)
	}

	return reviews, total, nil
}

// ListUserReviews returns paginated reviews written by a user along with the total count.
func (s *ReviewService) ListUserReviews(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("user_id is required")
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	reviews, total, err := s.reviews.ListByUserID(ctx, userID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list user reviews: %w", err)
	}

	return reviews, total, nil
}

// UpdateReview applies partial edits to a review owned by the acting user and
// returns the review together with the recomputed course aggregates.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, userID string, input *UpdateReviewInput) (*domain.Review, *domain.CourseAggregates, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, nil, fmt.Errorf("get review for update: %w", err)
	}

	// Verify ownership.
	if review.UserID != userID {
		return nil, nil, apperrors.NotFound("review", reviewID)
	}

	if input.Rating != nil {
		if !domain.IsValidRating(*input.Rating) {
			return nil, nil, apperrors.InvalidInput("rating must be between 1 and 5 in half-point steps")
		}
		review.Rating = *input.Rating
	}

	if input.Difficulty != nil {
		if !domain.IsValidDifficulty(*input.Difficulty) {
			return nil, nil, apperrors.InvalidInput("difficulty must be an integer between 1 and 5")
		}
		review.Difficulty = *input.Difficulty
	}

	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if len(content) < domain.MinContentLen {
			return nil, nil, apperrors.InvalidInput(fmt.Sprintf("content must be at least %d characters", domain.MinContentLen))
		}
		if len(content) > domain.MaxContentLen {
			return nil, nil, apperrors.InvalidInput(fmt.Sprintf("content must not exceed %d characters", domain.MaxContentLen))
		}
		review.Content = content
	}

	if input.Semester != nil {
		semester := strings.TrimSpace(*input.Semester)
		if semester == "" {
			return nil, nil, apperrors.InvalidInput("semester must not be empty")
		}
		if len(semester) > domain.MaxSemesterLen {
			return nil, nil, apperrors.InvalidInput(fmt.Sprintf("semester must not exceed %d characters", domain.MaxSemesterLen))
		}
		review.Semester = semester
	}

	if input.Professor != nil {
		professor := strings.TrimSpace(*input.Professor)
		if professor == "" {
			return nil, nil, apperrors.InvalidInput("professor must not be empty")
		}
		if len(professor) > domain.MaxProfessorLen {
			return nil, nil, apperrors.InvalidInput(fmt.Sprintf("professor must not exceed %d characters", domain.MaxProfessorLen))
		}
		review.Professor = professor
	}

	if input.Tags != nil {
		tags, err := validateTags(input.Tags)
		if err != nil {
			return nil, nil, err
		}
		review.Tags = tags
	}

	review.DifficultyText = domain.DifficultyText(review.Difficulty)

	var agg *domain.CourseAggregates
	err = withRetry(ctx, s.logger, "update review", func() error {
		var err error
		agg, err = s.reviews.Update(ctx, review)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("update review: %w", err)
	}

	if err := s.producer.PublishReviewUpdated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.updated event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	s.publishAggregates(ctx, review.CourseID, agg)

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("course_id", review.CourseID),
		slog.Float64("average_rating", agg.AverageRating),
		slog.Int("review_count", agg.ReviewCount),
	)

	return review, agg, nil
}

// DeleteReview removes a review owned by the acting user, or any review when
// the actor holds the moderator role, and returns the recomputed course
// aggregates.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, userID, role string) (*domain.CourseAggregates, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("get review for delete: %w", err)
	}

	// Owners delete their own reviews; moderators may delete any.
	if review.UserID != userID && role != domain.RoleModerator && role != domain.RoleAdmin {
		return nil, apperrors.NotFound("review", reviewID)
	}

	var agg *domain.CourseAggregates
	err = withRetry(ctx, s.logger, "delete review", func() error {
		var err error
		agg, err = s.reviews.Delete(ctx, reviewID, review.CourseID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete review: %w", err)
	}

	if err := s.producer.PublishReviewDeleted(ctx, reviewID, review.CourseID, review.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}
	s.publishAggregates(ctx, review.CourseID, agg)

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", reviewID),
		slog.String("course_id", review.CourseID),
		slog.Int("review_count", agg.ReviewCount),
	)

	return agg, nil
}

// ToggleHelpfulVote flips the acting user's helpful vote on a review and
// returns the review as it stands after the toggle.
func (s *ReviewService) ToggleHelpfulVote(ctx context.Context, reviewID, userID string) (*domain.Review, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}

	var review *domain.Review
	err := withRetry(ctx, s.logger, "toggle helpful vote", func() error {
		var err error
		review, err = s.reviews.ToggleHelpful(ctx, reviewID, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("toggle helpful vote: %w", err)
	}

	// The toggle statement moves the set and the counter together; a
	// mismatch here means the stored row was already corrupt.
	if review.HelpfulCount != len(review.HelpfulUsers) {
		return nil, apperrors.Inconsistent(fmt.Sprintf("review %s helpful_count %d disagrees with %d helpful_users", review.ID, review.HelpfulCount, len(review.HelpfulUsers)))
	}

	if err := s.producer.PublishReviewVoteToggled(ctx, review, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.vote_toggled event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "helpful vote toggled",
		slog.String("review_id", review.ID),
		slog.String("voter_id", userID),
		slog.Int("helpful_count", review.HelpfulCount),
	)

	return review, nil
}

// ReconcileCourse recomputes and rewrites a course's aggregates from its
// review population. Safe to re-run at any time; reports whether the stored
// values had drifted.
func (s *ReviewService) ReconcileCourse(ctx context.Context, courseID string) (*domain.CourseAggregates, bool, error) {
	if courseID == "" {
		return nil, false, apperrors.InvalidInput("course_id is required")
	}

	var (
		agg     *domain.CourseAggregates
		drifted bool
	)
	err := withRetry(ctx, s.logger, "reconcile course aggregates", func() error {
		var err error
		agg, drifted, err = s.reviews.Reconcile(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("reconcile course aggregates: %w", err)
	}

	if drifted {
		s.logger.WarnContext(ctx, "course aggregates had drifted, repaired",
			slog.String("course_id", courseID),
			slog.Float64("average_rating", agg.AverageRating),
			slog.Float64("average_difficulty", agg.AverageDifficulty),
			slog.Int("review_count", agg.ReviewCount),
		)
		s.publishAggregates(ctx, courseID, agg)
	} else {
		s.logger.InfoContext(ctx, "course aggregates verified",
			slog.String("course_id", courseID),
			slog.Int("review_count", agg.ReviewCount),
		)
	}

	return agg, drifted, nil
}

// publishAggregates emits a course.aggregates_recalculated event; failures
// are logged and never fail the enclosing operation.
func (s *ReviewService) publishAggregates(ctx context.Context, courseID string, agg *domain.CourseAggregates) {
	if err := s.producer.PublishCourseAggregatesRecalculated(ctx, courseID, agg); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish course.aggregates_recalculated event",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()),
		)
	}
}

// validateTags checks the tag list against the predefined vocabulary,
// rejects repeats, and normalizes nil to an empty slice.
func validateTags(tags []string) ([]string, error) {
	if len(tags) > domain.MaxTags {
		return nil, apperrors.InvalidInput(fmt.Sprintf("a review may carry at most %d tags", domain.MaxTags))
	}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if !domain.IsValidTag(tag) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown tag %q, must be one of: %s", tag, strings.Join(domain.ValidTags(), ", ")))
		}
		if _, dup := seen[tag]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("duplicate tag %q", tag))
		}
		seen[tag] = struct{}{}
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
