package devserver

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userKey = "devserver.user"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")))
	}
}

// sessionMiddleware attaches the logged-in user, if any.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookieName)
		if err == nil && sid != "" {
			if uid, ok := s.sessionUser(sid); ok {
				if u, err := s.store.GetUserByID(c.Request.Context(), uid); err == nil {
					c.Set(userKey, u)
				}
			}
		}
		c.Next()
	}
}

// csrfMiddleware enforces the double-submit check on unsafe methods: the
// X-CSRFToken header must equal the csrftoken cookie.
func (s *Server) csrfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		cookie, err := c.Cookie(csrfCookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "CSRF Failed: CSRF cookie not set."})
			return
		}
		header := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "CSRF Failed: CSRF token incorrect."})
			return
		}
		c.Next()
	}
}

// managerMiddleware leaves reads public; writes need a content manager.
func (s *Server) managerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		u := currentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		if !canManage(u) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*User)
	return u
}

func canManage(u *User) bool {
	return toAPIUser(u).CanManageContent()
}
