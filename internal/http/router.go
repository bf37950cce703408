// Package httpserver assembles the HTTP routing for the sync server.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hearthlabs/hearth/internal/api"
	"github.com/hearthlabs/hearth/internal/auth"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/dav"
	"github.com/hearthlabs/hearth/internal/http/ratelimit"
	"github.com/hearthlabs/hearth/internal/metrics"
	"github.com/hearthlabs/hearth/internal/store"
)

func init() {
	// chi rejects unknown methods unless registered up front.
	chi.RegisterMethod("PROPFIND")
	chi.RegisterMethod("REPORT")
}

// NewRouter wires middleware and routes for the DAV and JSON surfaces.
func NewRouter(cfg *config.Config, st *store.Store, davHandler *dav.Handler, apiHandler *api.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if cfg.PrometheusEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	// Autodiscovery: clients probe these before talking DAV.
	redirectDAV := func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/dav/", http.StatusMovedPermanently)
	}
	r.Get("/.well-known/caldav", redirectDAV)
	r.Get("/.well-known/carddav", redirectDAV)
	r.MethodFunc("PROPFIND", "/.well-known/caldav", redirectDAV)
	r.MethodFunc("PROPFIND", "/.well-known/carddav", redirectDAV)
	r.MethodFunc("PROPFIND", "/", redirectDAV)

	davLimiter := ratelimit.NewIPRateLimiter(20, 50, 5*time.Minute, cfg.TrustedProxies)

	r.Route("/dav", func(r chi.Router) {
		r.Use(davLimiter.Middleware())

		// OPTIONS stays unauthenticated so clients can discover
		// capabilities before presenting credentials.
		r.MethodFunc("OPTIONS", "/*", davHandler.Options)

		r.Group(func(r chi.Router) {
			r.Use(auth.RemoteHeader(st.Users, cfg.RemoteUserHeader))

			r.MethodFunc("PROPFIND", "/*", davHandler.Propfind)
			r.MethodFunc("REPORT", "/*", davHandler.Report)
			r.MethodFunc("GET", "/*", davHandler.Get)
			r.MethodFunc("HEAD", "/*", davHandler.Head)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RemoteHeader(st.Users, cfg.RemoteUserHeader))

		r.Get("/calendars/{calendarID}/events", apiHandler.ListEvents)
	})

	return r
}
