package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// ConsentCookie records that the caller accepted the SMS terms.
const ConsentCookie = "sms_consent"

// ConsentTTL is how long recorded consent lasts.
const ConsentTTL = 180 * 24 * time.Hour

// SetConsent writes the consent cookie.
func SetConsent(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     ConsentCookie,
		Value:    "1",
		Path:     "/",
		MaxAge:   int(ConsentTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// HasConsent reports whether r carries the consent cookie.
func HasConsent(r *http.Request) bool {
	c, err := r.Cookie(ConsentCookie)
	return err == nil && c.Value == "1"
}

// RequireConsent rejects requests without recorded SMS consent. It is a
// pass-through when required is false.
func RequireConsent(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !required {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasConsent(r) {
				slog.Info("sms: consent missing", "path", r.URL.Path)
				writeReject(w, http.StatusForbidden, "SMS consent has not been given", "SMS004")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
