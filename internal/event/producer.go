package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	pkgkafka "github.com/sayedibrahimi/wheaton-course-rating/pkg/kafka"
)

// Kafka topic constants for review and course domain events.
const (
	TopicReviewCreated     = "courserating.review.created"
	TopicReviewUpdated     = "courserating.review.updated"
	TopicReviewDeleted     = "courserating.review.deleted"
	TopicReviewVoteToggled = "courserating.review.vote_toggled"

	TopicCourseCreated                = "courserating.course.created"
	TopicCourseSynced                 = "courserating.course.synced"
	TopicCourseAggregatesRecalculated = "courserating.course.aggregates_recalculated"
)

// Aggregate type constants.
const (
	AggregateTypeReview = "review"
	AggregateTypeCourse = "course"
)

// Source identifier for events originating from the course-rating service.
const SourceCourseRating = "course-rating-service"

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ID         string   `json:"id"`
	CourseID   string   `json:"course_id"`
	UserID     string   `json:"user_id"`
	Rating     float64  `json:"rating"`
	Difficulty int      `json:"difficulty"`
	Semester   string   `json:"semester"`
	Professor  string   `json:"professor"`
	Tags       []string `json:"tags,omitempty"`
}

// ReviewUpdatedData is the payload for a review.updated event.
type ReviewUpdatedData struct {
	ID         string  `json:"id"`
	CourseID   string  `json:"course_id"`
	UserID     string  `json:"user_id"`
	Rating     float64 `json:"rating"`
	Difficulty int     `json:"difficulty"`
}

// ReviewDeletedData is the payload for a review.deleted event.
type ReviewDeletedData struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	UserID   string `json:"user_id"`
}

// ReviewVoteToggledData is the payload for a review.vote_toggled event.
type ReviewVoteToggledData struct {
	ID           string `json:"id"`
	CourseID     string `json:"course_id"`
	VoterID      string `json:"voter_id"`
	HelpfulCount int    `json:"helpful_count"`
}

// CourseCreatedData is the payload for a course.created event.
type CourseCreatedData struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Department string `json:"department"`
}

// CourseSyncedData is the payload for a course.synced event.
type CourseSyncedData struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Department string `json:"department"`
	Inserted   bool   `json:"inserted"`
}

// CourseAggregatesData is the payload for a course.aggregates_recalculated
// event. It carries the values the recalculation wrote, so consumers can
// refresh derived state without re-reading the course row.
type CourseAggregatesData struct {
	CourseID          string  `json:"course_id"`
	AverageRating     float64 `json:"average_rating"`
	AverageDifficulty float64 `json:"average_difficulty"`
	ReviewCount       int     `json:"review_count"`
}

// Producer publishes review and course domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the course-rating service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	data := ReviewCreatedData{
		ID:         review.ID,
		CourseID:   review.CourseID,
		UserID:     review.UserID,
		Rating:     review.Rating,
		Difficulty: review.Difficulty,
		Semester:   review.Semester,
		Professor:  review.Professor,
		Tags:       review.Tags,
	}

	event, err := pkgkafka.NewEvent(TopicReviewCreated, review.ID, AggregateTypeReview, SourceCourseRating, data)
	if err != nil {
		return fmt.Errorf("create review.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewCreated, event); err != nil {
		return fmt.Errorf("publish review.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.created event",
		slog.String("review_id", review.ID),
		slog.String("course_id", review.CourseID),
	)

	return nil
}

// PublishReviewUpdated publishes a review.updated event.
func (p *Producer) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	data := ReviewUpdatedData{
		ID:         review.ID,
		CourseID:   review.CourseID,
		UserID:     review.UserID,
		Rating:     review.Rating,
		Difficulty: review.Difficulty,
	}

	event, err := pkgkafka.NewEvent(TopicReviewUpdated, review.ID, AggregateTypeReview, SourceCourseRating, data)
	if err != nil {
		return fmt.Errorf("create review.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewUpdated, event); err != nil {
		return fmt.Errorf("publish review.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.updated event",
		slog.String("review_id", review.ID),
		slog.String("course_id", review.CourseID),
	)

	return nil
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, reviewID, courseID, userID string) error {
	data := ReviewDeletedData{
		ID:       reviewID,
		CourseID: courseID,
		UserID:   userID,
	}

	event, err := pkgkafka.NewEvent(TopicReviewDeleted, reviewID, AggregateTypeReview, SourceCourseRating, data)
	if err != nil {
		return fmt.Errorf("create review.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewDeleted, event); err != nil {
		return fmt.Errorf("publish review.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.deleted event",
		slog.String("review_id", reviewID),
		slog.String("course_id", courseID),
	)

	return nil
}

// PublishReviewVoteToggled publishes a review.vote_toggled event.
func (p *Producer) PublishReviewVoteToggled(ctx context.Context, review *domain.Review, voterID string) error {
	data := ReviewVoteToggledData{
		ID:           review.ID,
		CourseID:     review.CourseID,
		VoterID:      voterID,
		HelpfulCount: review.HelpfulCount,
	}

	event, err := pkgkafka.NewEvent(TopicReviewVoteToggled, review.ID, AggregateTypeReview, SourceCourseRating, data)
	if err != nil {
		return fmt.Errorf("create review.vote_toggled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewVoteToggled, event); err != nil {
		return fmt.Errorf("publish review.vote_toggled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.vote_toggled event",
		slog.String("review_id", review.ID),
		slog.String("voter_id", voterID),
	)

	return nil
}

// PublishCourseCreated publishes a course.created event.
func (p *Producer) PublishCourseCreated(ctx context.Context, course *domain.Course) error {
	data := CourseCreatedData{
		ID:         course.ID,
		Code:       course.Code,
		Slug:       course.Slug,
		Title:      course.Title,
		Department: course.Department,
	}

	event, err := pkgkafka.NewEvent(TopicCourseCreated, course.ID, AggregateTypeCourse, SourceCourseRating, data)
	if err != nil {
		return fmt.Errorf("create course.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCourseCreated, event); err != nil {
		return fmt.Errorf("publish course.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published course.created event",
		slog.String("course_id", course.ID),
		slog.String("code", course.Code),
	)

	return nil
}

// PublishCourseSynced publishes a course.synced event.
func (p *Producer) PublishCourseSynced(ctx context.Context, course *domain.Course, inserted bool) error {
	data := CourseSyncedData{
		ID:         course.ID,
		Code:       course.Code,
		Slug:       course.Slug,
		Title:      course.Title,
		Department: course.Department,
		Inserted:   inserted,
	}

	event, err := pkgkafka.NewEvent(TopicCourseSynced, course.ID, AggregateTypeCourse, SourceCourseRating, data)
	if err != nil {
		return fmt.Errorf("create course.synced event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCourseSynced, event); err != nil {
		return fmt.Errorf("publish course.synced event: %w", err)
	}

	p.logger.DebugContext(ctx, "published course.synced event",
		slog.String("course_id", course.ID),
		slog.String("code", course.Code),
	)

	return nil
}

// PublishCourseAggregatesRecalculated publishes a
// course.aggregates_recalculated event carrying the freshly written values.
func (p *Producer) PublishCourseAggregatesRecalculated(ctx context.Context, courseID string, agg *domain.CourseAggregates) error {
	data := CourseAggregatesData{
		CourseID:          courseID,
		AverageRating:     agg.AverageRating,
		AverageDifficulty: agg.AverageDifficulty,
		ReviewCount:       agg.ReviewCount,
	}

	event, err := pkgkafka.NewEvent(TopicCourseAggregatesRecalculated, courseID, AggregateTypeCourse, SourceCourseRating, data)
	if err != nil {
		return fmt.Errorf("create course.aggregates_recalculated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCourseAggregatesRecalculated, event); err != nil {
		return fmt.Errorf("publish course.aggregates_recalculated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published course.aggregates_recalculated event",
		slog.String("course_id", courseID),
		slog.Int("review_count", agg.ReviewCount),
	)

	return nil
}
