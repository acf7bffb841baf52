// Package http is the presentation layer: the dashboard page, its HTMX
// partials, and the download endpoints. Handlers never filter rows for
// access control; they render whatever the storage layer's views return.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"campusledger/internal/core"
	"campusledger/internal/log"
	"campusledger/internal/report"
	appweb "campusledger/web"
)

// DataSource is the read side backing every handler.
type DataSource interface {
	CurrentUser(ctx context.Context) (string, error)
	Load(ctx context.Context) ([]core.Transaction, []core.SummaryRow, error)
	Entitlements(ctx context.Context, username string) ([]core.Entitlement, error)
	Refresh(ctx context.Context)
	Ping(ctx context.Context) error
}

// SelectionStore persists each user's filter selection across visits.
type SelectionStore interface {
	Selection(ctx context.Context, username string) (core.Selection, bool, error)
	Save(ctx context.Context, username string, sel core.Selection) error
}

type Server struct {
	http.Server
	templates *template.Template
	data      DataSource
	sessions  SelectionStore
	reports   *report.Builder
	logger    *log.Logger

	defaultUser string

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr, defaultUser string, ds DataSource, ss SelectionStore, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		data:        ds,
		sessions:    ss,
		reports:     report.NewBuilder(),
		logger:      logger.WithComponent(log.ComponentHTTP),
		defaultUser: defaultUser,
		rateLimiter: newRateLimiter(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// UI partials
	mux.HandleFunc("/ui/metrics", s.withSecurityHeaders(s.handleMetrics))
	mux.HandleFunc("/ui/trend", s.withSecurityHeaders(s.handleTrend))
	mux.HandleFunc("/ui/categories", s.withSecurityHeaders(s.handleCategories))
	mux.HandleFunc("/ui/departments", s.withSecurityHeaders(s.handleDepartments))
	mux.HandleFunc("/ui/insights", s.withSecurityHeaders(s.handleInsights))
	mux.HandleFunc("/ui/recent", s.withSecurityHeaders(s.handleRecent))
	mux.HandleFunc("/ui/transactions", s.withSecurityHeaders(s.handleTransactions))

	// Mutations
	mux.HandleFunc("/selection", s.withSecurityHeaders(s.handleSaveSelection))
	mux.HandleFunc("/refresh", s.withSecurityHeaders(s.handleRefresh))

	// Downloads
	mux.HandleFunc("/export/csv", s.withSecurityHeaders(s.handleExportCSV))
	mux.HandleFunc("/export/report", s.withSecurityHeaders(s.handleExportReport))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports readiness only when the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.data.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
