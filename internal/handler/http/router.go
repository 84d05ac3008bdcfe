package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sayedibrahimi/wheaton-course-rating/internal/auth"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/domain"
	"github.com/sayedibrahimi/wheaton-course-rating/internal/service"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/health"
	"github.com/sayedibrahimi/wheaton-course-rating/pkg/middleware"
)

// NewRouter creates a chi router with all course rating service routes registered.
func NewRouter(
	courseService *service.CourseService,
	reviewService *service.ReviewService,
	syncService *service.SyncService,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("course-rating"))
	r.Use(middleware.Tracing("course-rating"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	// Token validator that bridges to our internal JWTManager.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	courseHandler := NewCourseHandler(courseService, logger)
	reviewHandler := NewReviewHandler(reviewService, logger)
	adminHandler := NewAdminHandler(syncService, reviewService, logger)

	// Course catalog endpoints. Reads are public; writes are admin only.
	r.Route("/api/v1/courses", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(60))

			r.Get("/", courseHandler.ListCourses)
			r.Get("/{idOrSlug}", courseHandler.GetCourse)
			r.Get("/{id}/summary", courseHandler.GetCourseSummary)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Post("/", courseHandler.CreateCourse)
			r.Put("/{id}", courseHandler.UpdateCourse)
			r.Delete("/{id}", courseHandler.DeleteCourse)
		})
	})

	// Review endpoints nested under courses. Listing is public; submitting
	// a review requires an authenticated user.
	r.Route("/api/v1/courses/{courseId}/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", reviewHandler.ListCourseReviews)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Post("/", reviewHandler.CreateReview)
		})
	})

	// Review endpoints addressed by review ID.
	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/{id}", reviewHandler.GetReview)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Put("/{id}", reviewHandler.UpdateReview)
			r.Delete("/{id}", reviewHandler.DeleteReview)
			r.Post("/{id}/helpful", reviewHandler.ToggleHelpful)
		})
	})

	// The caller's own reviews.
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me/reviews", reviewHandler.ListMyReviews)
	})

	// Administrative endpoints.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(domain.RoleAdmin))

		r.Post("/catalog/sync", adminHandler.SyncCatalog)
		r.Post("/courses/{id}/reconcile", adminHandler.ReconcileCourse)
	})

	return r
}
