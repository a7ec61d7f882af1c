package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"focusflow/internal/session"
)

const (
	identityKey = "identity"
	tokenKey    = "token"
	retryAfter  = "2"
)

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// resolveIdentity attaches the caller's identity to every request.
func (s *server) resolveIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.Request)
		id := s.Sessions.Resolve(c.Request.Context(), token)

		c.Set(tokenKey, token)
		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(session.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// pageGuard redirects absent identities to /login and asks the browser to
// retry while the identity cannot be resolved.
func pageGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch session.Gate(identity(c)) {
		case session.Allow:
			c.Next()
		case session.Redirect:
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
		default:
			c.Header("Retry-After", retryAfter)
			c.HTML(http.StatusServiceUnavailable, "wait.html", gin.H{"Path": c.Request.URL.Path})
			c.Abort()
		}
	}
}

func apiGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch session.Gate(identity(c)) {
		case session.Allow:
			c.Next()
		case session.Redirect:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		default:
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session state unavailable, retry shortly"})
		}
	}
}

func identity(c *gin.Context) session.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(session.Identity); ok {
			return id
		}
	}
	return session.Unknown()
}

func requestToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// extractToken reads a Bearer token, falling back to the session cookie.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if cookie, err := r.Cookie(CookieName); err == nil {
			return cookie.Value
		}
		return ""
	}

	const bearerPrefix = "Bearer "
	if len(authHeader) > len(bearerPrefix) && strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(authHeader[len(bearerPrefix):])
	}
	return authHeader
}
