package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/kiosk"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/session"
)

// PublicPaths are reachable without a session cookie. Entries ending in "/"
// match as prefixes.
var PublicPaths = []string{
	"/sign-in",
	"/auth/",
	"/api/kiosk/dashboard",
	"/api/kiosk/action",
	"/api/kiosk/ws",
	"/kiosk",
	"/health",
	"/metrics",
}

func isPublic(path string) bool {
	for _, p := range PublicPaths {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// EdgeGate rejects non-public requests that carry no session cookie at all.
// It only checks presence; Authenticate verifies the credential.
func EdgeGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) || session.HasCredential(r) {
			next.ServeHTTP(w, r)
			return
		}
		unauthenticated(w, r)
	})
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	http.Redirect(w, r, "/sign-in?callbackUrl="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}

// SessionAuthenticator resolves a session credential to an identity.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, credential string) (auth.Identity, error)
}

// RequireSession verifies the session credential and stores the identity in
// the request context. The identity may lack a household.
func RequireSession(authn SessionAuthenticator, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authn.Authenticate(r.Context(), session.CredentialFromRequest(r))
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthenticated) {
					logger.ErrorContext(r.Context(), "session lookup failed", "error", err)
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				if m != nil {
					m.AuthFailures.WithLabelValues("session").Inc()
				}
				unauthenticated(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireHousehold answers 409 for signed-in callers who have not joined or
// created a household yet.
func RequireHousehold(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			unauthenticated(w, r)
			return
		}
		if !id.HasHousehold() {
			if isAPI(r) {
				writeJSON(w, http.StatusConflict, map[string]string{
					"error":    "Household setup required",
					"redirect": "/onboarding",
				})
				return
			}
			http.Redirect(w, r, "/onboarding", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability checks the identity's role against c.
func RequireCapability(c auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.FromContext(r.Context())
			if !id.Can(c) {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// KioskAuthenticator resolves a kiosk bearer secret to a household scope.
type KioskAuthenticator interface {
	Authenticate(ctx context.Context, presented string) (auth.KioskScope, error)
}

// RequireKiosk authenticates the kiosk secret and stores its scope in the
// request context.
func RequireKiosk(authn KioskAuthenticator, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, err := authn.Authenticate(r.Context(), kiosk.TokenFromRequest(r))
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthenticated) {
					logger.ErrorContext(r.Context(), "kiosk lookup failed", "error", err)
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				if m != nil {
					m.AuthFailures.WithLabelValues("kiosk").Inc()
				}
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithKiosk(r.Context(), scope)))
		})
	}
}
