// Package devapi is a self-contained clinic backend for local development
// and tests. It serves the staff auth and clinical endpoints the medhub
// client consumes, backed by seeded in-memory data.
package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexusmedic/medhub/pkg/domain"
)

// APIPrefix is where the clinic API is mounted.
const APIPrefix = "/api/v1"

// Config configures a Server.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Server is the demo backend.
type Server struct {
	data    *data
	tokens  *issuer
	metrics *metrics
	log     zerolog.Logger
	now     func() time.Time
	router  *mux.Router
}

// New seeds the data and builds the router.
func New(cfg Config) (*Server, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("devapi: empty signing secret")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d, err := seed(cfg.BcryptCost, cfg.Now())
	if err != nil {
		return nil, err
	}
	s := &Server{
		data:    d,
		tokens:  newIssuer(cfg.Secret, cfg.AccessTTL, cfg.RefreshTTL, cfg.Now),
		metrics: newMetrics(),
		log:     cfg.Logger,
		now:     cfg.Now,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metrics.instrument, s.logRequests)
	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix(APIPrefix).Subrouter()
	api.HandleFunc("/auth/staff/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/staff/refresh", s.handleRefresh).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireAuth)
	authed.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	authed.HandleFunc("/patients", s.handlePatients).Methods(http.MethodGet)
	authed.HandleFunc("/patients/{id}/diagnoses", s.handleDiagnoses).Methods(http.MethodGet)
	authed.HandleFunc("/treatment-plans/{id}/activities", s.handleActivities).Methods(http.MethodGet)
	authed.HandleFunc("/folders", s.handleListFolders).Methods(http.MethodGet)
	authed.HandleFunc("/folders", s.handleCreateFolder).Methods(http.MethodPost)
	authed.HandleFunc("/folders/{id}", s.handleFolder).Methods(http.MethodGet)
	authed.HandleFunc("/reports", s.handleReports).Methods(http.MethodGet)

	tests := authed.NewRoute().Subrouter()
	tests.Use(s.requireCapability(domain.CapManageTests))
	tests.HandleFunc("/tests", s.handleListTests).Methods(http.MethodGet)
	tests.HandleFunc("/tests", s.handleCreateTest).Methods(http.MethodPost)
	tests.HandleFunc("/tests/{id}", s.handleUpdateTest).Methods(http.MethodPut)
	tests.HandleFunc("/tests/{id}", s.handleDeleteTest).Methods(http.MethodDelete)
	tests.HandleFunc("/tests/{id}/results", s.handleListResults).Methods(http.MethodGet)
	tests.HandleFunc("/tests/{id}/results", s.handleCreateResult).Methods(http.MethodPost)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ExpireAccessTokens makes every access token issued so far fail with 401,
// so clients must refresh.
func (s *Server) ExpireAccessTokens() {
	s.tokens.expireAccess()
	s.log.Info().Msg("access tokens expired")
}

// RevokeRefreshTokens makes every outstanding refresh token fail.
func (s *Server) RevokeRefreshTokens() {
	s.tokens.revokeRefresh()
	s.log.Info().Msg("refresh tokens revoked")
}

type ctxKey struct{}

func userFrom(ctx context.Context) domain.User {
	u, _ := ctx.Value(ctxKey{}).(domain.User)
	return u
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		h := r.Header.Get("Authorization")
		if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		sub, err := s.tokens.verify(h[len(prefix):])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token expired or invalid")
			return
		}
		u, ok := s.data.userByID(sub)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unknown user")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func (s *Server) requireCapability(c domain.Capability) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !userFrom(r.Context()).Role.Can(c) {
				writeError(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, map[string]any{"success": true, "data": v})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
