package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pkgkafka "github.com/sayedibrahimi/wheaton-course-rating/pkg/kafka"
)

// SummaryRefresher reloads a course's cached summary from the store.
type SummaryRefresher interface {
	RefreshSummary(ctx context.Context, courseID string) error
}

// Consumer handles Kafka events that change course summary state, keeping
// the Redis summary cache in step with the database.
type Consumer struct {
	refresher SummaryRefresher
	logger    *slog.Logger
}

// NewConsumer creates a new event consumer for the course-rating service.
func NewConsumer(refresher SummaryRefresher, logger *slog.Logger) *Consumer {
	return &Consumer{
		refresher: refresher,
		logger:    logger,
	}
}

// ConsumedTopics lists the topics this consumer subscribes to.
func ConsumedTopics() []string {
	return []string{
		TopicCourseCreated,
		TopicCourseSynced,
		TopicCourseAggregatesRecalculated,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicCourseCreated:
		return c.handleCourseCreated(ctx, event)
	case TopicCourseSynced:
		return c.handleCourseSynced(ctx, event)
	case TopicCourseAggregatesRecalculated:
		return c.handleAggregatesRecalculated(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleCourseCreated primes the summary cache for a new course.
func (c *Consumer) handleCourseCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data CourseCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal course.created data: %w", err)
	}

	if err := c.refresher.RefreshSummary(ctx, data.ID); err != nil {
		return fmt.Errorf("refresh summary from created event: %w", err)
	}

	c.logger.InfoContext(ctx, "primed course summary from created event",
		slog.String("course_id", data.ID),
	)

	return nil
}

// handleCourseSynced refreshes the summary cache for a synced course.
func (c *Consumer) handleCourseSynced(ctx context.Context, event *pkgkafka.Event) error {
	var data CourseSyncedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal course.synced data: %w", err)
	}

	if err := c.refresher.RefreshSummary(ctx, data.ID); err != nil {
		return fmt.Errorf("refresh summary from synced event: %w", err)
	}

	c.logger.InfoContext(ctx, "refreshed course summary from synced event",
		slog.String("course_id", data.ID),
		slog.Bool("inserted", data.Inserted),
	)

	return nil
}

// handleAggregatesRecalculated refreshes the summary cache after a course's
// aggregates were rewritten.
func (c *Consumer) handleAggregatesRecalculated(ctx context.Context, event *pkgkafka.Event) error {
	var data CourseAggregatesData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal course.aggregates_recalculated data: %w", err)
	}

	if err := c.refresher.RefreshSummary(ctx, data.CourseID); err != nil {
		return fmt.Errorf("refresh summary from aggregates event: %w", err)
	}

	c.logger.InfoContext(ctx, "refreshed course summary from aggregates event",
		slog.String("course_id", data.CourseID),
		slog.Int("review_count", data.ReviewCount),
	)

	return nil
}
