package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fernhollow/sprout/internal/email"
	"github.com/fernhollow/sprout/internal/handler"
	"github.com/fernhollow/sprout/internal/middleware"
	"github.com/fernhollow/sprout/internal/store"
	"github.com/fernhollow/sprout/internal/token"
	ws "github.com/fernhollow/sprout/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	babyH       *handler.BabyHandler
	logH        *handler.LogEntryHandler
	invitationH *handler.InvitationHandler
	babyStore   *store.BabyStore
	tokens      *token.Service
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, tokens *token.Service, emailClient *email.Client, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	babyStore := store.NewBabyStore(db)
	membershipStore := store.NewMembershipStore(db)
	invitationStore := store.NewInvitationStore(db)
	logStore := store.NewLogEntryStore(db)

	return &Server{
		db:    db,
		hub:   hub,
		authH: handler.NewAuthHandler(userStore, tokens, logger.With("component", "auth")),
		babyH: handler.NewBabyHandler(babyStore, membershipStore, hub, logger.With("component", "baby")),
		logH:  handler.NewLogEntryHandler(logStore, babyStore, membershipStore, hub, logger.With("component", "log")),
		invitationH: handler.NewInvitationHandler(
			invitationStore, membershipStore, userStore, babyStore,
			tokens, emailClient, hub, logger.With("component", "invitation"),
		),
		babyStore:   babyStore,
		tokens:      tokens,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /auth/signup", s.rateLimited(s.authH.Signup))
	mux.HandleFunc("POST /auth/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("GET /health", s.healthHandler)

	// Accept works for both logged-in and anonymous callers: auth is
	// optional and identity is resolved inside the handler.
	optionalAuth := middleware.OptionalAuth(s.tokens)
	mux.Handle("POST /invitations/{token}/accept",
		optionalAuth(http.HandlerFunc(s.rateLimited(s.invitationH.Accept))))

	// Authenticated routes
	authedMux := http.NewServeMux()
	s.registerAuthedRoutes(authedMux)

	requireAuth := middleware.RequireAuth(s.tokens)
	mux.Handle("/", requireAuth(authedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) registerAuthedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/me", s.authH.Me)

	mux.HandleFunc("POST /babies", s.babyH.Create)
	mux.HandleFunc("GET /babies", s.babyH.List)
	mux.HandleFunc("GET /babies/{id}", s.babyH.Get)
	mux.HandleFunc("PUT /babies/{id}", s.babyH.Update)
	mux.HandleFunc("DELETE /babies/{id}", s.babyH.Delete)

	mux.HandleFunc("POST /babies/{id}/logs", s.logH.Create)
	mux.HandleFunc("GET /babies/{id}/logs", s.logH.List)
	mux.HandleFunc("PUT /babies/{id}/logs/{logId}", s.logH.Update)
	mux.HandleFunc("DELETE /babies/{id}/logs/{logId}", s.logH.Delete)

	mux.HandleFunc("POST /babies/{id}/invitations", s.invitationH.Create)
	mux.HandleFunc("POST /babies/{id}/invitations/{inviteId}/revoke", s.invitationH.Revoke)
	mux.HandleFunc("GET /babies/{id}/caregivers", s.invitationH.ListCaregivers)
	mux.HandleFunc("DELETE /babies/{id}/caregivers/{userId}", s.invitationH.RemoveCaregiver)

	mux.Handle("GET /ws", ws.Handler(s.hub, s.babyStore, s.logger.With("component", "websocket")))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
