package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"societyadmin"
)

const (
	sessionCookie = "societyadmin_session"
	csrfCookie    = "societyadmin_csrf"
	csrfField     = "csrf_token"
)

type contextKey string

const sessionContextKey contextKey = "session"

func sessionFrom(ctx context.Context) (societyadmin.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(societyadmin.Session)
	return session, ok
}

func withSession(r *http.Request, session societyadmin.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, session))
}

// RequestLogger logs one line per request with the request id chi assigned to it.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RequireSession redirects to the login page unless the request carries a live session
// cookie.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.currentSession(r)
		if err != nil {
			if !errors.Is(err, societyadmin.ErrSessionNotFound) {
				s.logger.Error("unable to load session", zap.Error(err))
			}
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, withSession(r, session))
	})
}

// RequireAPIAuth accepts a session cookie or a backend bearer token.
func (s *Server) RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && strings.TrimSpace(token) != "" {
			next.ServeHTTP(w, withSession(r, societyadmin.Session{Username: "api", Token: strings.TrimSpace(token)}))
			return
		}

		session, err := s.currentSession(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		next.ServeHTTP(w, withSession(r, session))
	})
}

func (s *Server) currentSession(r *http.Request) (societyadmin.Session, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return societyadmin.Session{}, societyadmin.ErrSessionNotFound
	}
	return s.sessions.Get(r.Context(), cookie.Value)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, session societyadmin.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func csrfKey(secret string, logger *zap.Logger) []byte {
	if secret == "" {
		logger.Warn("CSRF_KEY is not set, generating a key; forms break across restarts")
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(err)
		}
		return key
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// CSRF protects every form. Without secure cookies the dashboard runs on plain http, and
// gorilla/csrf must be told so or it demands a TLS Referer.
func (s *Server) CSRF() func(http.Handler) http.Handler {
	var trusted []string
	for _, origin := range s.config.AllowedOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			trusted = append(trusted, u.Host)
		}
	}

	protect := csrf.Protect(
		csrfKey(s.config.CSRFKey, s.logger),
		csrf.Secure(s.config.CookieSecure),
		csrf.Path("/"),
		csrf.CookieName(csrfCookie),
		csrf.FieldName(csrfField),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(trusted),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn("rejected form submission", zap.Error(csrf.FailureReason(r)), zap.String("path", r.URL.Path))
			http.Error(w, "Your form expired, reload the page and try again.", http.StatusForbidden)
		})),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.config.CookieSecure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}
