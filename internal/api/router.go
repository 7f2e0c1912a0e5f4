package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gatherline/server/internal/api/handlers"
	"github.com/gatherline/server/internal/api/middleware"
	"github.com/gatherline/server/internal/auth"
	"github.com/gatherline/server/internal/cache"
	"github.com/gatherline/server/internal/config"
	"github.com/gatherline/server/internal/domain/attendance"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/users"
	"github.com/gatherline/server/internal/metrics"
	"github.com/gatherline/server/internal/storage/postgres"
)

// Router bundles the HTTP handler with the components whose lifecycle
// outlives a single request. The serve command stops them on shutdown.
type Router struct {
	Handler     http.Handler
	RateLimiter *middleware.RateLimiter
	Cache       *cache.Client
}

// BuildInfo identifies the running binary in health responses.
type BuildInfo struct {
	Version   string
	GitCommit string
}

func NewRouter(cfg config.Config, logger zerolog.Logger, pool *pgxpool.Pool, cacheClient *cache.Client, build BuildInfo) (*Router, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	var eventCache events.Cache
	if cacheClient != nil {
		eventCache = cacheClient
	}
	usersService := users.NewService(repo.Users(), logger)
	eventsService := events.NewService(repo.Events(), repo.Attendances(), eventCache)
	attendanceService := attendance.NewService(repo.Attendances(), repo.Events())

	authHandler := handlers.NewAuthHandler(usersService, tokens)
	eventsHandler := handlers.NewEventsHandler(eventsService)
	attendancesHandler := handlers.NewAttendancesHandler(attendanceService)
	health := handlers.NewHealthChecker(pool, build.Version, build.GitCommit)

	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", health.Readyz())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/auth/register", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Register),
	}))
	mux.Handle("/api/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Login),
	}))

	mux.Handle("/api/events", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(eventsHandler.List),
		http.MethodPost: middleware.RequireAuth(http.HandlerFunc(eventsHandler.Create)),
	}))
	// Literal segments win over {id} in the mux, so the named listings
	// never collide with the detail routes.
	mux.Handle("/api/events/upcoming", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(eventsHandler.ListUpcoming),
	}))
	mux.Handle("/api/events/my-hosted", methodMux(map[string]http.Handler{
		http.MethodGet: middleware.RequireAuth(http.HandlerFunc(eventsHandler.MyHosted)),
	}))
	mux.Handle("/api/events/my-attending", methodMux(map[string]http.Handler{
		http.MethodGet: middleware.RequireAuth(http.HandlerFunc(eventsHandler.MyAttending)),
	}))
	mux.Handle("/api/events/my-events", methodMux(map[string]http.Handler{
		http.MethodGet: middleware.RequireAuth(http.HandlerFunc(eventsHandler.MyEvents)),
	}))
	mux.Handle("/api/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    middleware.RequireAuth(http.HandlerFunc(eventsHandler.Get)),
		http.MethodPut:    middleware.RequireAuth(http.HandlerFunc(eventsHandler.Update)),
		http.MethodDelete: middleware.RequireAuth(http.HandlerFunc(eventsHandler.Delete)),
	}))
	mux.Handle("/api/events/{id}/status", methodMux(map[string]http.Handler{
		http.MethodGet: middleware.RequireAuth(http.HandlerFunc(eventsHandler.Status)),
	}))

	mux.Handle("/api/attendances", methodMux(map[string]http.Handler{
		http.MethodPost: middleware.RequireAuth(http.HandlerFunc(attendancesHandler.Respond)),
	}))
	mux.Handle("/api/attendances/my-attendances", methodMux(map[string]http.Handler{
		http.MethodGet: middleware.RequireAuth(http.HandlerFunc(attendancesHandler.MyAttendances)),
	}))
	mux.Handle("/api/attendances/event/{eventId}", methodMux(map[string]http.Handler{
		http.MethodGet: middleware.RequireAdmin(http.HandlerFunc(attendancesHandler.ListForEvent)),
	}))

	// Order matters: authentication precedes the rate limiter so
	// authenticated traffic is keyed by user instead of address, and
	// the tracing span opens before request logging runs.
	var handler http.Handler = mux
	handler = limiter.Middleware(handler)
	handler = middleware.Authenticate(tokens)(handler)
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.SecurityHeaders(cfg.Server.RequireHTTPS)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)

	return &Router{Handler: handler, RateLimiter: limiter, Cache: cacheClient}, nil
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
