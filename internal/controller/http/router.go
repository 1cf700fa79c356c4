package http

import (
	"time"

	_ "github.com/KarpovAlexandrGo/tasks-api/docs" // swagger spec
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

const APIPrefix = "/api/v1"

type RouterConfig struct {
	RequestTimeout time.Duration
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
}

func NewRouter(taskUC usecase.TaskUseCase, cfg RouterConfig) *chi.Mux {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	metrics := NewMetrics(cfg.Registry)

	router := chi.NewRouter()

	router.Use(
		middleware.RequestID,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger.Log, NoColor: true}),
		middleware.Heartbeat("/health"),
		metrics.Middleware,
		recoverer,
		middleware.Timeout(cfg.RequestTimeout),
	)

	// A known path with the wrong method is just another unmatched route.
	router.NotFound(routeNotFound)
	router.MethodNotAllowed(routeNotFound)

	router.Route(APIPrefix, NewTaskHandler(taskUC).RegisterRoutes)

	router.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return router
}
