// Package server renders the Kochchi Bazaar pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"kochchi/internal/api"
	"kochchi/internal/remote"
	"kochchi/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Backend is the part of the API client the pages use.
type Backend interface {
	ListDansalEvents(ctx context.Context) ([]api.DansalEvent, error)
	ListNotifications(ctx context.Context) ([]api.Notification, error)
	NotificationByID(ctx context.Context, id string) ([]api.Notification, error)
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
}

type Config struct {
	UseHTTPS     bool
	FetchTimeout time.Duration
	Location     *time.Location
	// SiteURL overrides the request host in absolute links.
	SiteURL string
	// HealthCheck, when set, is run by /healthz.
	HealthCheck func(ctx context.Context) error
}

type Server struct {
	backend       Backend
	sessions      *session.Manager
	logger        *slog.Logger
	csrf          *CSRF
	config        Config
	location      *time.Location
	templateCache map[string]*template.Template
}

func NewServer(backend Backend, sessions *session.Manager, logger *slog.Logger, config Config) (*Server, error) {
	if backend == nil || sessions == nil {
		return nil, errors.New("server: backend and session manager are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = remote.DefaultTimeout
	}
	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}

	csrfConfig := DefaultCSRFConfig()
	csrfConfig.Secure = config.UseHTTPS

	s := &Server{
		backend:  backend,
		sessions: sessions,
		logger:   logger,
		csrf:     NewCSRF(csrfConfig),
		config:   config,
		location: loc,
	}

	templates, err := LoadTemplates(webContent, s.registerTemplateFuncs())
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	s.templateCache = templates
	s.logger.Debug("templates loaded", "count", len(templates))
	return s, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(middleware.Compress(5, "text/html", "text/css", "application/json", "application/rss+xml"))

	static, err := fs.Sub(webContent, "static")
	if err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))
	}

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)

	r.Get("/dansal", s.handleDansal)
	r.Get("/dansal/events", s.handleDansalEvents)
	r.Get("/adds/dansal", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dansal", http.StatusMovedPermanently)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.handleNotifications)
		r.Get("/feed", s.handleNotificationsFeed)
		r.Get("/rss", s.handleNotificationsRSS)
		r.Get("/{id}", s.handleNotification)
		r.Get("/{id}/view", s.handleNotificationView)
	})

	r.Get("/payment/success", s.handlePaymentSuccess)
	r.Get("/payment/cancelled", s.handlePaymentCancelled)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLoginSubmit)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleAdmin)
			r.Post("/logout", s.handleLogout)
		})
	})

	r.NotFound(s.handle404)
	return r
}

func (s *Server) handle404(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("not found", "path", r.URL.Path)
	s.renderPage(w, http.StatusNotFound, "404.html", pageData{Title: "Page not found"})
}

// RunMaintenance sweeps expired CSRF tokens until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) {
	s.csrf.RunCleanup(ctx, 6*time.Hour)
}

// HTTPServer wraps Routes in an http.Server with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// fragments may wait up to FetchTimeout on the API
		WriteTimeout: s.config.FetchTimeout + 20*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func isNoCredential(err error) bool {
	return errors.Is(err, session.ErrNoCredential) || errors.Is(err, session.ErrTampered)
}
