package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/session"
)

const stateCookie = "hearth_oauth_state"

// AuthHandler runs the federated sign-in flow and issues session cookies.
type AuthHandler struct {
	provider session.IdentityProvider
	issuer   *session.Issuer
	authn    *session.Authenticator
	secure   bool
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. provider may be nil when sign-in is
// not configured, in which case sign-in answers 503.
func NewAuthHandler(provider session.IdentityProvider, issuer *session.Issuer, authn *session.Authenticator, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		issuer:   issuer,
		authn:    authn,
		secure:   secure,
		logger:   logger.With("component", "auth"),
	}
}

// safeCallback keeps redirects on this host. Browsers treat a backslash as a
// slash, so any backslash is refused.
func safeCallback(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return raw
}

// SignIn redirects to the identity provider. The callback URL rides along in
// the state cookie.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Sign-in is not configured"})
		return
	}
	state, err := session.NewState()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	value := state
	if cb := safeCallback(r.URL.Query().Get("callbackUrl")); cb != "" {
		value += "|" + url.QueryEscape(cb)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/auth/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes sign-in: it verifies state, exchanges the code, accepts a
// pending invitation when there is one, and sets the session cookie.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Sign-in is not configured"})
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil {
		http.Redirect(w, r, "/sign-in?error=state", http.StatusSeeOther)
		return
	}
	state, callback, _ := strings.Cut(c.Value, "|")
	if state == "" || r.URL.Query().Get("state") != state {
		h.logger.Warn("sign-in state mismatch")
		http.Redirect(w, r, "/sign-in?error=state", http.StatusSeeOther)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/", MaxAge: -1})

	p, err := h.provider.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Warn("sign-in exchange failed", "error", err)
		http.Redirect(w, r, "/sign-in?error=exchange", http.StatusSeeOther)
		return
	}

	id, err := h.authn.SignIn(r.Context(), p)
	if err != nil {
		h.logger.Error("sign-in", "error", err, "email", p.Email)
		http.Redirect(w, r, "/sign-in?error=server", http.StatusSeeOther)
		return
	}

	credential, err := h.issuer.Sign(p, time.Now())
	if err != nil {
		h.logger.Error("sign session credential", "error", err)
		http.Redirect(w, r, "/sign-in?error=server", http.StatusSeeOther)
		return
	}
	session.SetCookie(w, credential, h.issuer.TTL(), h.secure)
	h.logger.Info("signed in", "member_id", id.MemberID, "household_id", id.HouseholdID)

	target := "/onboarding"
	if id.HasHousehold() {
		target = "/"
		if cb, err := url.QueryUnescape(callback); err == nil && safeCallback(cb) != "" {
			target = cb
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, h.secure)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the caller's identity. It does not require a household.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":      id,
		"has_household": id.HasHousehold(),
		"capabilities":  id.Role.Capabilities(),
	})
}
