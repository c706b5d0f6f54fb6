package server

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "spendtalk_session"
	// CookieMaxAge is how long the browser keeps the session cookie
	CookieMaxAge = 24 * time.Hour
)

// SetSessionCookie sets an HTTP-only session cookie
func SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSessionCookie reads the session ID from the cookie
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// getSessionID looks at the cookie, then the X-Session-Id header, then the sessionId query parameter.
func getSessionID(r *http.Request) string {
	if sid, err := GetSessionCookie(r); err == nil && sid != "" {
		return sid
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	return r.URL.Query().Get("sessionId")
}

// getOrCreateSessionID falls back to fromBody, then mints a new id and sets the cookie.
func getOrCreateSessionID(w http.ResponseWriter, r *http.Request, fromBody string) string {
	sid := getSessionID(r)
	if sid == "" {
		sid = fromBody
	}
	if sid == "" {
		sid = uuid.NewString()
		log.Printf("[session] creating new session: %s for endpoint: %s", sid, r.URL.Path)
		SetSessionCookie(w, sid)
	}
	w.Header().Set("X-Session-Id", sid)
	return sid
}
