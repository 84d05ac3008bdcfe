package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/event"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/repository"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/httpclient"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/slug"
)

// CircuitOpenFallback is a fallback function for the registrar client's
// circuit breaker. When the circuit is open, it returns a structured error
// with a retry hint instead of letting the raw ErrCircuitOpen propagate.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.Unavailable("registrar is temporarily unavailable, please retry after 30 seconds", nil)
}

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// SyncService imports the registrar's published course catalog into the
// local store. Repeated runs are safe: courses are keyed by code and the
// upsert never touches aggregate fields.
type SyncService struct {
	courses      repository.CourseRepository
	producer     *event.Producer
	logger       *slog.Logger
	httpClient   HTTPDoer
	registrarURL string
}

// NewSyncService creates a new catalog sync service.
func NewSyncService(courses repository.CourseRepository, producer *event.Producer, logger *slog.Logger, httpClient HTTPDoer, registrarURL string) *SyncService {
	return &SyncService{
		courses:      courses,
		producer:     producer,
		logger:       logger,
		httpClient:   httpClient,
		registrarURL: registrarURL,
	}
}

// SyncResult summarizes one catalog sync run.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// registrarCourse is a single catalog entry in the registrar's feed.
type registrarCourse struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Department  string `json:"department"`
	Description string `json:"description"`
}

// registrarFeed is the registrar's catalog feed response.
type registrarFeed struct {
	Courses []registrarCourse `json:"courses"`
}

// SyncCatalog fetches the registrar's course feed and upserts every entry.
func (s *SyncService) SyncCatalog(ctx context.Context) (*SyncResult, error) {
	feed, err := s.fetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Fetched: len(feed.Courses)}
	now := time.Now().UTC()

	for _, entry := range feed.Courses {
		code := strings.TrimSpace(entry.Code)
		title := strings.TrimSpace(entry.Title)
		if code == "" || title == "" {
			result.Skipped++
			s.logger.WarnContext(ctx, "skipping malformed registrar catalog entry",
				slog.String("code", entry.Code),
				slog.String("title", entry.Title),
			)
			continue
		}

		course := &domain.Course{
			ID:          uuid.New().String(),
			Code:        code,
			Slug:        slug.Generate(code),
			Title:       title,
			Department:  strings.TrimSpace(entry.Department),
			Description: strings.TrimSpace(entry.Description),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		inserted, err := s.courses.Upsert(ctx, course)
		if err != nil {
			return nil, fmt.Errorf("upsert course %s: %w", code, err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}

		if err := s.producer.PublishCourseSynced(ctx, course, inserted); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish course.synced event",
				slog.String("course_id", course.ID),
				slog.String("code", course.Code),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "course catalog synced",
		slog.Int("fetched", result.Fetched),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
	)

	return result, nil
}

// fetchCatalog retrieves the full course feed from the registrar.
func (s *SyncService) fetchCatalog(ctx context.Context) (*registrarFeed, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.registrarURL+"/api/v1/catalog/courses", nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call registrar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "registrar")
	}

	var feed registrarFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode catalog feed: %w", err)
	}

	return &feed, nil
}
