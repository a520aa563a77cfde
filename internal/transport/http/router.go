package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	notificationhandler "docexchange/internal/notification/handler"
	"docexchange/internal/platform/metrics"
	"docexchange/internal/platform/middleware"
	requesthandler "docexchange/internal/requests/handler"
	sharelinkhandler "docexchange/internal/sharelink/handler"
	"docexchange/pkg/platform/httputil"
	"docexchange/pkg/platform/middleware/metadata"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router mounts. Nil handlers are skipped.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      middleware.JWTValidator
	RequestTimeout time.Duration
	Requests       *requesthandler.Handler
	ShareLinks     *sharelinkhandler.Handler
	Notifications  *notificationhandler.Handler
	HealthChecks   map[string]HealthCheck
	// ShareRateLimit guards the unauthenticated share routes when set.
	ShareRateLimit func(http.Handler) http.Handler
}

// NewRouter wires the public share routes, the operational endpoints and the
// bearer-protected requester API.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.AccessLog(d.Logger, d.Metrics))
	r.Use(chimw.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.RequestTimeout))
	}
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", healthHandler(d.HealthChecks))
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if d.ShareLinks != nil {
		r.Group(func(pub chi.Router) {
			if d.ShareRateLimit != nil {
				pub.Use(d.ShareRateLimit)
			}
			d.ShareLinks.RegisterPublic(pub)
		})
	}

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.RequireAuth(d.Validator, d.Logger))
		if d.Requests != nil {
			d.Requests.Register(pr)
		}
		if d.ShareLinks != nil {
			d.ShareLinks.RegisterProtected(pr)
		}
		if d.Notifications != nil {
			d.Notifications.Register(pr)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
