// Package session remembers the user's selected tenant between requests via
// an HttpOnly cookie. The tenant resolver reads it as its third strategy and
// clears it when the stored id no longer resolves to an active tenant.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Store reads and writes the tenant selection cookie.
type Store struct {
	CookieName string
	Path       string
	Secure     bool // Set to true in production (HTTPS)
	SameSite   http.SameSite
	MaxAge     time.Duration
}

// NewStore creates a session store with the given cookie name.
func NewStore(cookieName string) *Store {
	return &Store{
		CookieName: cookieName,
		Path:       "/",
		Secure:     false, // Set to true in production
		SameSite:   http.SameSiteLaxMode,
		MaxAge:     30 * 24 * time.Hour,
	}
}

// TenantID returns the tenant id stored in the session, if any.
func (s *Store) TenantID(c echo.Context) (uuid.UUID, bool) {
	cookie, err := c.Cookie(s.CookieName)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// SetTenantID stores the tenant id in the session.
func (s *Store) SetTenantID(c echo.Context, id uuid.UUID) {
	c.SetCookie(&http.Cookie{
		Name:     s.CookieName,
		Value:    id.String(),
		Path:     s.Path,
		MaxAge:   int(s.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

// ClearTenantID deletes the tenant id from the session.
func (s *Store) ClearTenantID(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.CookieName,
		Value:    "",
		Path:     s.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}
