/*
Package handler provides the HTTP handlers and routing setup for the JustChat server.

This file defines the main Router, applying request logging, CORS, metrics and
per-IP rate limiting before delegating to the REST and WebSocket handlers.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"justchat/internal/metrics"
	"justchat/internal/pkg/auth/jwt"
	"justchat/internal/pkg/errs"
	"justchat/internal/pkg/limiter"
	"justchat/internal/pkg/logx"
	"justchat/internal/pkg/resp"
)

// Rate limits per client IP.
const (
	// AuthRate allows 10 auth requests per 15 minutes.
	AuthRate  = rate.Limit(10.0 / (15 * 60))
	AuthBurst = 10

	// MessageRate allows 100 message requests per 15 minutes.
	MessageRate  = rate.Limit(100.0 / (15 * 60))
	MessageBurst = 100

	// WSRate allows a reconnect every 2 seconds with bursts for several tabs.
	WSRate  = rate.Limit(0.5)
	WSBurst = 10
)

// NewLimiters builds the limiters used by Router.
func NewLimiters() (auth, messages, ws *limiter.IPRateLimiter) {
	return limiter.NewIPRateLimiter("auth", AuthRate, AuthBurst),
		limiter.NewIPRateLimiter("messages", MessageRate, MessageBurst),
		limiter.NewIPRateLimiter("ws", WSRate, WSBurst)
}

// Router sets up the main HTTP routing table for the application.
func Router(deps *AppDeps) http.Handler {
	if deps.AuthLimiter == nil || deps.MessageLimiter == nil || deps.WSLimiter == nil {
		deps.AuthLimiter, deps.MessageLimiter, deps.WSLimiter = NewLimiters()
	}

	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
	})

	r.Get("/health", HandleHealth(deps))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(deps.AuthLimiter.Middleware)

			auth.Post("/signup", HandleSignup(deps))
			auth.Post("/login", HandleLogin(deps))
			auth.Post("/logout", HandleLogout(deps))

			auth.Group(func(private chi.Router) {
				private.Use(jwt.RequireAuth)
				private.Get("/check-auth", HandleCheckAuth(deps))
				private.Put("/update-profile", HandleUpdateProfile(deps))
				private.Delete("/delete-account", HandleDeleteAccount(deps))
			})
		})

		api.Route("/messages", func(msgs chi.Router) {
			msgs.Use(jwt.RequireAuth)
			msgs.Use(deps.MessageLimiter.Middleware)

			msgs.Get("/users", HandleSidebarUsers(deps))
			msgs.Post("/upload", HandleUploadImage(deps))
			msgs.Post("/send/{id}", HandleSendMessage(deps))
			msgs.Get("/{id}", HandleConversation(deps))
			msgs.Delete("/{id}", HandleDeleteMessage(deps))
			msgs.Put("/{id}/read", HandleMarkRead(deps))
		})
	})

	r.With(deps.WSLimiter.Middleware).Get("/ws", HandleWebSocket(deps, newUpgrader(deps)))

	return r
}

// newUpgrader accepts any origin in development and the configured origins otherwise.
// Requests without an Origin header come from non-browser clients and are allowed.
func newUpgrader(deps *AppDeps) websocket.Upgrader {
	allowedOrigins := make(map[string]struct{}, len(deps.Config.AllowedOrigins))
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}
}

// HandleHealth reports liveness and realtime load.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connections, users := deps.Hub.Stats()

		resp.RespondSuccess(w, r, map[string]any{
			"status":      "ok",
			"service":     "JustChat Server",
			"connections": connections,
			"onlineUsers": users,
		})
	}
}
