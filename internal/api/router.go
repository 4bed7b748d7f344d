package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rflorenc/search-admin/internal/backend"
	"github.com/rflorenc/search-admin/internal/console"
	"github.com/rflorenc/search-admin/internal/logging"
	"github.com/rflorenc/search-admin/internal/metrics"
	"github.com/rflorenc/search-admin/internal/session"
)

// SessionCookie carries the console session id.
const SessionCookie = "search_admin_session"

// Options configures a Server.
type Options struct {
	BackendURL string
	Backend    backend.Options
	Console    console.Options
	Metrics    *metrics.Metrics
}

// workspace is what one signed-in operator owns: the backend client bound to
// their session and the console state driven through it.
type workspace struct {
	session *session.Session
	client  *backend.Client
	console *console.Console
}

// Server holds shared state for all API handlers.
type Server struct {
	Sessions *session.Store
	Guard    session.Guard

	opts Options
	ctx  context.Context

	mu         sync.RWMutex
	workspaces map[string]*workspace
}

// NewServer creates a Server. Consoles it opens live no longer than ctx.
func NewServer(ctx context.Context, opts Options) *Server {
	if opts.Console.Metrics == nil {
		opts.Console.Metrics = opts.Metrics
	}
	if opts.Backend.Metrics == nil {
		opts.Backend.Metrics = opts.Metrics
	}
	if opts.Backend.HTTPClient == nil {
		opts.Backend.HTTPClient = backend.NewHTTPClient(opts.Backend)
	}
	return &Server{
		Sessions:   session.NewStore(),
		Guard:      session.Guard{LoginPath: "/login"},
		opts:       opts,
		ctx:        ctx,
		workspaces: make(map[string]*workspace),
	}
}

// NewRouter builds the chi router with all console routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.opts.Metrics.Middleware)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.Health)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	r.Post("/login", s.Login)
	r.Post("/logout", s.Logout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Route("/api/console", func(r chi.Router) {
			// API keys
			r.Get("/keys", s.ListKeys)
			r.Post("/keys/reload", s.ListKeys)
			r.Post("/keys", s.AddKey)
			r.Get("/keys/{key}/edit", s.EditKey)
			r.Post("/keys/{key}/edit", s.EditKey)
			r.Post("/keys/{key}/remove", s.RemoveKey)

			// Indexes and mappings
			r.Get("/indexes", s.ListIndexes)
			r.Post("/indexes/reload", s.ListIndexes)
			r.Post("/indexes", s.AddMapping)
			r.Post("/indexes/import", s.ImportMapping)
			r.Post("/indexes/{index}/edit", s.EditIndex)
			r.Post("/indexes/{index}/flush", s.FlushIndex)
			r.Post("/indexes/{index}/copy", s.CopyIndex)
			r.Post("/indexes/{index}/deactivate", s.DeactivateIndex)
			r.Post("/indexes/{index}/export", s.ExportMapping)
			r.Post("/indexes/{index}/remove", s.RemoveMapping)
			r.Post("/indexes/{index}/activate", s.ActivateIndex)

			// Workflow overlays
			r.Get("/overlays", s.ListOverlays)
			r.Get("/overlays/{id}", s.GetOverlay)
			r.Delete("/overlays/{id}", s.CloseOverlay)
			r.Put("/overlays/{id}/form", s.BindOverlay)
			r.Post("/overlays/{id}/confirm", s.ConfirmOverlay)
			r.Post("/overlays/{id}/fields", s.AddField)
			r.Delete("/overlays/{id}/fields/{n}", s.RemoveField)
			r.Post("/overlays/{id}/fields/{n}/geopoint", s.ToggleGeoPoint)
			r.Post("/overlays/{id}/dates", s.AddDate)
			r.Delete("/overlays/{id}/dates/{n}", s.RemoveDate)
		})

		// WebSocket (outside /api to avoid JSON content-type assumptions)
		r.Get("/ws/notices", s.StreamNotices)
	})

	return r
}

// Health answers liveness probes.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close closes every open console and drops idle backend connections.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ws := range s.workspaces {
		ws.console.Close()
		delete(s.workspaces, id)
	}
	s.opts.Backend.HTTPClient.CloseIdleConnections()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
