// Package api serves the HTTP and WebSocket endpoints of the app's screens.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/auth"
	"github.com/npezzotti/diayouth/internal/cache"
	"github.com/npezzotti/diayouth/internal/config"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/supabase"
	"github.com/sirupsen/logrus"
)

// Topics are the tables whose changes the hub carries.
var Topics = []string{
	"events", "questions", "question_answers", "quotes", "profiles",
	"event_like", "event_join", "question_like", "question_save", "quote_like",
}

// ObjectStorage stores uploaded photos.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) error
	List(ctx context.Context, bucket, prefix string, limit int) ([]supabase.Object, error)
	PublicURL(bucket, name string) string
}

type Instrumenter interface {
	Instrument(route string, next http.Handler) http.Handler
}

// Services are the components the API is built on. Storage, Cache,
// Membership and Stats are optional.
type Services struct {
	DB         database.DiaYouthRepository
	Auth       auth.Provider
	Verifier   *auth.Verifier
	Toggler    *association.Toggler
	Membership *association.Membership
	Hub        *feed.Hub
	Cache      *cache.ListCache
	Storage    ObjectStorage
	Stats      Instrumenter
}

type DiaYouthApp struct {
	log            *logrus.Logger
	db             database.DiaYouthRepository
	auth           auth.Provider
	verifier       *auth.Verifier
	toggler        *association.Toggler
	membership     *association.Membership
	hub            *feed.Hub
	cache          *cache.ListCache
	storage        ObjectStorage
	stats          Instrumenter
	limiter        *RateLimiter
	mux            *http.Server
	allowedOrigins []string
	photoBucket    string
	avatarBucket   string
}

func NewDiaYouthApp(mux *http.ServeMux, logger *logrus.Logger, svc Services, cfg *config.Config) *DiaYouthApp {
	s := &DiaYouthApp{
		log:            logger,
		db:             svc.DB,
		auth:           svc.Auth,
		verifier:       svc.Verifier,
		toggler:        svc.Toggler,
		membership:     svc.Membership,
		hub:            svc.Hub,
		cache:          svc.Cache,
		storage:        svc.Storage,
		stats:          svc.Stats,
		limiter:        NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, logger),
		allowedOrigins: cfg.AllowedOrigins,
		photoBucket:    cfg.EventPhotoBucket,
		avatarBucket:   cfg.AvatarBucket,
	}

	s.routes(mux)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

func (s *DiaYouthApp) routes(mux *http.ServeMux) {
	handle := func(pattern, route string, h http.HandlerFunc) {
		if s.stats != nil {
			mux.Handle(pattern, s.stats.Instrument(route, h))
			return
		}
		mux.Handle(pattern, h)
	}

	handle("POST /api/auth/register", "register", s.limiter.Handler(s.register))
	handle("POST /api/auth/login", "login", s.limiter.Handler(s.login))
	handle("POST /api/auth/password-reset", "password_reset", s.limiter.Handler(s.resetPassword))
	handle("GET /api/auth/session", "session", s.authMiddleware(s.session))
	handle("POST /api/auth/logout", "logout", s.authMiddleware(s.logout))
	handle("PUT /api/account", "account", s.authMiddleware(s.updateAccount))

	handle("GET /api/profile", "profile", s.authMiddleware(s.getOwnProfile))
	handle("PUT /api/profile", "profile", s.authMiddleware(s.updateProfile))
	handle("POST /api/profile/avatar", "avatar", s.authMiddleware(s.uploadAvatar))
	handle("GET /api/profiles/{id}", "profiles", s.authMiddleware(s.getProfile))

	handle("GET /api/event-categories", "categories", s.eventCategories)
	handle("GET /api/question-categories", "categories", s.questionCategories)

	handle("GET /api/events", "events", s.authMiddleware(s.listEvents))
	handle("POST /api/events", "events", s.authMiddleware(s.createEvent))
	handle("GET /api/events/popular", "events_popular", s.authMiddleware(s.popularEvents))
	handle("GET /api/events/photos", "event_photos", s.authMiddleware(s.listPhotos))
	handle("POST /api/events/photos", "event_photos", s.authMiddleware(s.uploadPhoto))
	handle("GET /api/events/{id}", "event", s.authMiddleware(s.getEvent))
	handle("PUT /api/events/{id}", "event", s.authMiddleware(s.updateEvent))
	handle("DELETE /api/events/{id}", "event", s.authMiddleware(s.deleteEvent))

	handle("GET /api/questions", "questions", s.authMiddleware(s.listQuestions))
	handle("POST /api/questions", "questions", s.authMiddleware(s.createQuestion))
	handle("GET /api/questions/{id}", "question", s.authMiddleware(s.getQuestion))
	handle("PUT /api/questions/{id}", "question", s.authMiddleware(s.updateQuestion))
	handle("DELETE /api/questions/{id}", "question", s.authMiddleware(s.deleteQuestion))
	handle("GET /api/questions/{id}/answers", "answers", s.authMiddleware(s.listAnswers))
	handle("POST /api/questions/{id}/answers", "answers", s.authMiddleware(s.createAnswer))

	handle("GET /api/quotes", "quotes", s.authMiddleware(s.listQuotes))
	handle("POST /api/quotes", "quotes", s.authMiddleware(s.createQuote))
	handle("DELETE /api/quotes/{id}", "quote", s.authMiddleware(s.deleteQuote))

	handle("POST /api/associations/{kind}/{target}", "associations", s.authMiddleware(s.toggleAssociation))
	handle("PUT /api/associations/{kind}/{target}", "associations", s.authMiddleware(s.setAssociation))
	handle("DELETE /api/associations/{kind}/{target}", "associations", s.authMiddleware(s.setAssociation))
	handle("GET /api/associations/{kind}/{target}/count", "association_count", s.authMiddleware(s.countAssociation))
	handle("GET /api/me/associations/{kind}", "memberships", s.authMiddleware(s.memberships))

	handle("GET /healthz", "healthz", s.healthCheck)

	// Not instrumented: the upgrade needs the connection's Hijacker.
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))
}

// Limiter exposes the auth rate limiter so it can be swept periodically.
func (s *DiaYouthApp) Limiter() *RateLimiter {
	return s.limiter
}

func (s *DiaYouthApp) Start() error {
	s.log.Infof("starting server on %s", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *DiaYouthApp) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
