// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server until
// a shutdown signal arrives.
//
// Dependency chain:
//
//	config → gormstore.Store → repositories → services → handlers → chi routes
//
// Handlers never touch the store and services never touch HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/civic-complaints/internal/auth"
	"github.com/sakif/civic-complaints/internal/classifier"
	"github.com/sakif/civic-complaints/internal/config"
	"github.com/sakif/civic-complaints/internal/handler"
	"github.com/sakif/civic-complaints/internal/middleware"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/notify"
	"github.com/sakif/civic-complaints/internal/repository/gormstore"
	"github.com/sakif/civic-complaints/internal/service"
	"github.com/sakif/civic-complaints/internal/tracking"
)

const shutdownTimeout = 30 * time.Second

// Option overrides a collaborator New would otherwise build from config.
type Option func(*options)

type options struct {
	classifier classifier.Classifier
	publisher  notify.Publisher
}

// WithClassifier replaces the OpenAI classifier.
func WithClassifier(c classifier.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithPublisher replaces the Redis event publisher.
func WithPublisher(p notify.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// Server owns the router and every long-lived resource behind it.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  *chi.Mux
	store   *gormstore.Store
	closers []io.Closer
}

// New wires the application. ctx bounds background work started here
// (the Auth0 JWKS refresher) and should live as long as the server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := gormstore.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: chi.NewRouter(),
		store:  store,
	}

	if err := s.wire(ctx, o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) wire(ctx context.Context, o options) error {
	cfg := s.cfg

	if cfg.Database.AutoMigrate {
		if err := s.store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	publisher := o.publisher
	if publisher == nil {
		publisher = notify.NopPublisher{}
		if cfg.Redis.URL != "" {
			rp, err := notify.NewRedisPublisher(ctx, cfg.Redis.URL, cfg.Redis.Channel)
			if err != nil {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			s.closers = append(s.closers, rp)
			publisher = rp
		}
	}

	clf := o.classifier
	if clf == nil {
		clf = classifier.Disabled{}
		if cfg.AI.APIKey != "" {
			clf = classifier.NewOpenAI(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
		} else {
			s.logger.Warn("AI_API_KEY not set, anonymous complaints will not be classified")
		}
	}

	codes, err := tracking.NewGenerator(cfg.Tracking.Prefix)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	// === Services ===
	users := s.store.Users()
	authSvc := service.NewAuthService(users, tokens, auth.NewPasswordService(), s.logger)
	notifSvc := service.NewNotificationService(s.store.Notifications(), s.logger)
	refSvc := service.NewReferenceService(s.store.Categories(), s.store.Agencies(), s.logger)
	complaintSvc := service.NewComplaintService(service.ComplaintDeps{
		Complaints:          s.store.Complaints(),
		Categories:          s.store.Categories(),
		Agencies:            s.store.Agencies(),
		Classifier:          clf,
		Codes:               codes,
		Events:              publisher,
		Notifier:            notifSvc,
		AITimeout:           cfg.AI.Timeout,
		AutoAssignThreshold: cfg.AI.AutoAssignThreshold,
	}, s.logger)

	// === Authentication ===
	strategies := []auth.Strategy{auth.NewLocalStrategy(tokens, users)}
	if cfg.Auth0.Enabled() {
		a0, err := auth.NewAuth0Strategy(ctx,
			auth.Auth0OptionsForDomain(cfg.Auth0.Domain, cfg.Auth0.Audience, cfg.Auth0.EmailClaim),
			authSvc,
		)
		if err != nil {
			return err
		}
		strategies = append(strategies, a0)
		s.logger.Info("auth0 token verification enabled", slog.String("issuer", cfg.Auth0.IssuerURL()))
	}
	resolver := auth.NewResolver(strategies...)

	var auth0Login handler.Auth0Login
	if cfg.Auth0.LoginEnabled() {
		auth0Login = auth.NewAuth0Provider(cfg.Auth0.Domain, cfg.Auth0.ClientID, cfg.Auth0.ClientSecret, cfg.Auth0.CallbackURL, cfg.Auth0.Audience)
	}

	// === Handlers ===
	s.routes(routeHandlers{
		complaints: handler.NewComplaintHandler(complaintSvc, s.logger),
		auth: handler.NewAuthHandler(authSvc, auth0Login, handler.CookieOptions{
			TTL:    cfg.JWT.TTL,
			Secure: cfg.Env == "production",
		}, cfg.FrontendURL, s.logger),
		users:         handler.NewUserHandler(authSvc, s.logger),
		notifications: handler.NewNotificationHandler(notifSvc, s.logger),
		refs:          handler.NewReferenceHandler(refSvc, s.logger),
		requireAuth:   auth.RequireAuth(resolver, s.logger),
	})
	return nil
}

type routeHandlers struct {
	complaints    *handler.ComplaintHandler
	auth          *handler.AuthHandler
	users         *handler.UserHandler
	notifications *handler.NotificationHandler
	refs          *handler.ReferenceHandler
	requireAuth   func(http.Handler) http.Handler
}

// routes mounts every endpoint. Middleware runs in the order added:
// RequestID first so the access log can carry the id, Recoverer before
// Logger so a panic is still logged as a 500.
func (s *Server) routes(h routeHandlers) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", h.refs.HandleCategories)
		r.Get("/agencies", h.refs.HandleAgencies)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.auth.HandleRegister)
			r.Post("/login", h.auth.HandleLogin)
			r.Post("/logout", h.auth.HandleLogout)
			r.Get("/auth0/login", h.auth.HandleAuth0Login)
			r.Get("/auth0/callback", h.auth.HandleAuth0Callback)
			r.With(h.requireAuth).Get("/verify", h.auth.HandleVerify)
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Post("/anonymous", h.complaints.HandleCreateAnonymous)
			r.Get("/track/{trackingCode}", h.complaints.HandleTrack)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/", h.complaints.HandleCreate)
				r.Get("/", h.complaints.HandleListMine)
				r.Get("/{id}", h.complaints.HandleGetMine)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/profile", h.users.HandleProfile)
			r.Patch("/profile", h.users.HandleUpdateProfile)
			r.Get("/profile/notification-preferences", h.notifications.HandlePreferences)
			r.Put("/profile/notification-preferences", h.notifications.HandleUpdatePreferences)
			r.Get("/notifications", h.notifications.HandleList)
			r.Patch("/notifications/{id}/read", h.notifications.HandleMarkRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(model.StaffRoles...))
				r.Get("/complaints", h.complaints.HandleListAll)
				r.Patch("/complaints/{id}", h.complaints.HandleUpdate)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin())
				r.Get("/users", h.users.HandleList)
				r.Patch("/users/{id}/role", h.users.HandleSetRole)
			})
		})
	})
}

// handleHealth reports liveness and database reachability.
//
// HTTP: GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and releases every resource.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Anonymous submissions wait on the classifier.
		WriteTimeout: s.cfg.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Env),
			slog.String("database", s.cfg.Database.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close releases the event publisher and the database pool.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
	}
	return errors.Join(errs...)
}
