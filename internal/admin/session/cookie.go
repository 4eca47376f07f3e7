package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/grievance-portal/internal/config"
)

const CookieName = "_gsid"

// Cookies reads and writes the admin session cookie.
type Cookies struct {
	secure bool
}

func NewCookies(cfg config.Config) *Cookies {
	return &Cookies{secure: cfg.CookieSecure}
}

func (m *Cookies) Read(c *gin.Context) (string, bool) {
	token, err := c.Cookie(CookieName)
	if err != nil || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func (m *Cookies) Set(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", m.secure, true)
}

func (m *Cookies) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
}
