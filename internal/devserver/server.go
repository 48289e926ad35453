// Package devserver is a self-contained stand-in for the zones backend, used
// for local development and end-to-end tests. It keeps everything in memory
// and speaks the exact REST surface the client consumes.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/models"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userKey      contextKey = "user"
)

// SearchResultLimit caps city search responses.
const SearchResultLimit = 8

// Server serves the dev backend.
type Server struct {
	store  *store
	logger *zap.Logger
}

// New returns a Server with empty state.
func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: newStore(), logger: logger}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware())

	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.requireAuth(s.handleLogout)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", s.requireAuth(s.handleMe)).Methods(http.MethodGet)

	r.HandleFunc("/api/zones", s.requireAuth(s.handleListZones)).Methods(http.MethodGet)
	r.HandleFunc("/api/zones", s.requireAuth(s.handleCreateZone)).Methods(http.MethodPost)
	r.HandleFunc("/api/zones/{id:[0-9]+}", s.requireAuth(s.handleUpdateZone)).Methods(http.MethodPatch)
	r.HandleFunc("/api/zones/{id:[0-9]+}", s.requireAuth(s.handleDeleteZone)).Methods(http.MethodDelete)
	r.HandleFunc("/api/zones/{id:[0-9]+}/refresh", s.requireAuth(s.handleRefreshZone)).Methods(http.MethodPost)

	r.HandleFunc("/api/weather/search", s.handleSearch).Methods(http.MethodGet)

	return r
}

// requestIDMiddleware honors an inbound X-Request-ID, minting one otherwise,
// and logs every request with it.
func (s *Server) requestIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", reqID)
			ctx := context.WithValue(r.Context(), requestIDKey, reqID)

			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", reqID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAuth resolves the bearer token and rejects the request when it is
// missing or unknown.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing credentials")
			return
		}
		user, ok := s.store.authenticate(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func requestUser(r *http.Request) models.User {
	u, _ := r.Context().Value(userKey).(models.User)
	return u
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the flat {code, message} shape the client normalizes on.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
