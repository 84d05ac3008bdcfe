package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	apperrors "github.com/sayedibrahimi/wheaton-course-rating/pkg/errors"
)

// --- Stub HTTP Client ---

type stubHTTPDoer struct {
	resp     *http.Response
	err      error
	requests []*http.Request
}

func (d *stubHTTPDoer) Do(_ context.Context, req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	if d.err != nil {
		return nil, d.err
	}
	return d.resp, nil
}

// --- Test Helpers ---

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestSyncService(courses *mockCourseRepository, doer *stubHTTPDoer) *SyncService {
	return NewSyncService(courses, newTestProducer(), newTestLogger(), doer, "http://registrar.local")
}

// --- Tests ---

func TestSyncCatalog_Success(t *testing.T) {
	courses := new(mockCourseRepository)
	doer := &stubHTTPDoer{resp: jsonResponse(http.StatusOK, `{
		"courses": [
			{"code": "CSCI 118", "title": "Programming in Python", "department": "Computer Science"},
			{"code": "CSCI 243", "title": "Data Structures and Algorithms", "department": "Computer Science", "description": "Trees, graphs, complexity."},
			{"code": "", "title": "Orphaned Entry"}
		]
	}`)}
	svc := newTestSyncService(courses, doer)
	ctx := context.Background()

	courses.On("Upsert", ctx, mock.MatchedBy(func(c *domain.Course) bool { return c.Code == "CSCI 118" })).
		Return(true, nil)
	courses.On("Upsert", ctx, mock.MatchedBy(func(c *domain.Course) bool { return c.Code == "CSCI 243" })).
		Return(false, nil)

	result, err := svc.SyncCatalog(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	require.Len(t, doer.requests, 1)
	assert.Equal(t, "http://registrar.local/api/v1/catalog/courses", doer.requests[0].URL.String())
	assert.Equal(t, "application/json", doer.requests[0].Header.Get("Accept"))

	courses.AssertExpectations(t)
}

func TestSyncCatalog_GeneratesSlugFromCode(t *testing.T) {
	courses := new(mockCourseRepository)
	doer := &stubHTTPDoer{resp: jsonResponse(http.StatusOK, `{
		"courses": [{"code": "CSCI 210: Intro to Programming", "title": "Intro to Programming", "department": "Computer Science"}]
	}`)}
	svc := newTestSyncService(courses, doer)
	ctx := context.Background()

	courses.On("Upsert", ctx, mock.MatchedBy(func(c *domain.Course) bool {
		return c.Slug == "csci-210-intro-to-programming"
	})).Return(true, nil)

	_, err := svc.SyncCatalog(ctx)

	require.NoError(t, err)
	courses.AssertExpectations(t)
}

func TestSyncCatalog_RegistrarUnreachable(t *testing.T) {
	courses := new(mockCourseRepository)
	doer := &stubHTTPDoer{err: errors.New("dial tcp 10.0.0.5:8080: connect: connection refused")}
	svc := newTestSyncService(courses, doer)
	ctx := context.Background()

	_, err := svc.SyncCatalog(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "call registrar")
	courses.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSyncCatalog_RegistrarReturnsError(t *testing.T) {
	courses := new(mockCourseRepository)
	doer := &stubHTTPDoer{resp: jsonResponse(http.StatusServiceUnavailable,
		`{"error": {"code": "SERVICE_UNAVAILABLE", "message": "maintenance window"}}`)}
	svc := newTestSyncService(courses, doer)
	ctx := context.Background()

	_, err := svc.SyncCatalog(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestSyncCatalog_MalformedFeed(t *testing.T) {
	courses := new(mockCourseRepository)
	doer := &stubHTTPDoer{resp: jsonResponse(http.StatusOK, `{{not-valid-json`)}
	svc := newTestSyncService(courses, doer)
	ctx := context.Background()

	_, err := svc.SyncCatalog(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode catalog feed")
}

func TestSyncCatalog_UpsertFailure(t *testing.T) {
	courses := new(mockCourseRepository)
	doer := &stubHTTPDoer{resp: jsonResponse(http.StatusOK, `{
		"courses": [{"code": "CSCI 118", "title": "Programming in Python", "department": "Computer Science"}]
	}`)}
	svc := newTestSyncService(courses, doer)
	ctx := context.Background()

	courses.On("Upsert", ctx, mock.AnythingOfType("*domain.Course")).
		Return(false, errors.New("pq: relation does not exist"))

	_, err := svc.SyncCatalog(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert course CSCI 118")
}

func TestCircuitOpenFallback(t *testing.T) {
	resp, err := CircuitOpenFallback(context.Background(), errors.New("circuit breaker is open"))

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Contains(t, err.Error(), "registrar is temporarily unavailable")
}
