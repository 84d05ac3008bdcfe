package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
)

const keyPrefix = "course:summary:"

// SummaryCache implements repository.CourseSummaryCache using Redis. Entries
// are refreshed from aggregate-recalculated events and invalidated on course
// mutations; the database stays the source of truth on a miss.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache creates a new Redis-backed course summary cache.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached course summary by course ID.
func (c *SummaryCache) Get(ctx context.Context, courseID string) (*domain.CourseSummary, error) {
	key := keyPrefix + courseID

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("course summary", courseID)
		}
		return nil, fmt.Errorf("redis get course summary: %w", err)
	}

	var summary domain.CourseSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal course summary: %w", err)
	}

	return &summary, nil
}

// Set stores a course summary with the configured TTL.
func (c *SummaryCache) Set(ctx context.Context, summary *domain.CourseSummary) error {
	key := keyPrefix + summary.CourseID

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal course summary: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set course summary: %w", err)
	}

	return nil
}

// Invalidate removes a cached course summary by course ID.
func (c *SummaryCache) Invalidate(ctx context.Context, courseID string) error {
	key := keyPrefix + courseID

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del course summary: %w", err)
	}

	return nil
}
