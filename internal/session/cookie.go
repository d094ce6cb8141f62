package session

import (
	"net/http"
	"time"
)

// CookieName is the session cookie written by this server.
const CookieName = "hearth_session"

// cookieNames lists the accepted session cookies, first present wins.
var cookieNames = []string{CookieName, "__Secure-" + CookieName, "__Host-" + CookieName}

// CredentialFromRequest returns the session credential carried by r, or "".
func CredentialFromRequest(r *http.Request) string {
	for _, name := range cookieNames {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// HasCredential reports whether r carries any session cookie. It does not
// verify the credential.
func HasCredential(r *http.Request) bool {
	return CredentialFromRequest(r) != ""
}

func SetCookie(w http.ResponseWriter, credential string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    credential,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
