package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/monexa/pkg/httpx"
)

// Router builds the HTTP handler tree. Handlers left nil are not mounted.
func (d *Dependencies) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestLogger(d.Logger, d.Metrics))
	r.Use(httpx.CORS(d.Config.Server.AllowedOrigins))
	if d.Config.Server.RateLimitPerSecond > 0 {
		r.Use(httpx.RateLimit(d.Config.Server.RateLimitPerSecond, d.Config.Server.RateLimitBurst, d.Logger))
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Monexa API is running"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	if d.ImportHandler != nil {
		d.ImportHandler.Routes(r)
	}
	if d.FinanceHandler != nil {
		d.FinanceHandler.Routes(r)
	}
	if d.InsightsHandler != nil {
		d.InsightsHandler.Routes(r)
	}

	return r
}
