package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/statement-pilot/pkg/middleware"
	"github.com/FACorreiaa/statement-pilot/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP handler
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; authenticated routes will reject requests")
	}

	auth := middleware.Auth(jwtSecret)
	importToken := middleware.RequireImportToken(deps.Config.Auth.ImportSecret)

	registerRoute(mux, deps, "POST /v1/statements/import",
		chain(http.HandlerFunc(deps.IngestHandler.ImportStatement), auth, importToken))
	registerRoute(mux, deps, "POST /v1/statements/reprocess",
		chain(http.HandlerFunc(deps.IngestHandler.ReprocessStaging), auth, importToken))
	registerRoute(mux, deps, "GET /v1/dashboard/summary",
		chain(http.HandlerFunc(deps.AnalyticsHandler.DashboardSummary), auth))

	registerUtilityRoutes(mux, deps)

	tracer := otel.GetTracerProvider().Tracer("statement-pilot/api")
	global := []func(http.Handler) http.Handler{
		middleware.RequestID("X-Request-ID"),
		middleware.Tracing(tracer),
		middleware.Recovery(deps.Logger),
		middleware.Logging(deps.Logger),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		global = append(global, middleware.RateLimit(limiter))
	}

	var handler http.Handler = mux
	handler = chain(handler, global...)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-ID", middleware.ImportTokenHeader},
		AllowCredentials: true,
		MaxAge:           7200,
	})

	return corsHandler.Handler(handler)
}

// chain wraps handler with the given middleware, first listed outermost
func chain(handler http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// registerRoute mounts a handler behind body limiting and per-route metrics.
// The pattern is "METHOD /path"; the metrics label is the path part.
func registerRoute(mux *http.ServeMux, deps *Dependencies, pattern string, handler http.Handler) {
	const maxBodyBytes int64 = 8 << 20

	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		handler.ServeHTTP(w, r)
	})

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle(pattern, observability.MetricsMiddleware(pattern, limited))
	} else {
		mux.Handle(pattern, limited)
	}
	deps.Logger.Info("registered route", "pattern", pattern)
}

// registerUtilityRoutes registers health check, readiness, and metrics routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
				deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	mux.HandleFunc("/health/details", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{
			"db":    {Status: "ok"},
			"auth":  {Status: "ok"},
			"ready": {Status: "ok"},
		}

		if err := deps.DB.Health(); err != nil {
			result["db"] = status{Status: "fail", Detail: err.Error()}
			result["ready"] = status{Status: "fail", Detail: "db unavailable"}
		}

		if deps.Config.Auth.ImportSecret == "" {
			result["auth"] = status{Status: "warn", Detail: "import secret missing"}
		}

		w.Header().Set("Content-Type", "application/json")
		for _, v := range result {
			if v.Status == "fail" {
				w.WriteHeader(http.StatusServiceUnavailable)
				if err := json.NewEncoder(w).Encode(result); err != nil {
					deps.Logger.Error("failed to encode health details", slog.Any("error", err))
				}
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health details", "path", "/health/details")

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
