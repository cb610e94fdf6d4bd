package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mkhall/go-hazard-alerts/internal/auth"
	"github.com/mkhall/go-hazard-alerts/internal/models"
	"github.com/mkhall/go-hazard-alerts/internal/repository"
)

const (
	sessionCookie = "hazmap_session"
	ctxUserKey    = "currentUser"
)

func RateLimitMiddleware(rps int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), rps)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// resolveSession attaches the current user to the request context when a
// valid session cookie is presented. Anonymous requests pass through; gating
// happens in requireAuth.
func (h *Handler) resolveSession(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err != nil || token == "" {
		c.Next()
		return
	}

	sess, err := h.sessions.Resolve(c.Request.Context(), token)
	if errors.Is(err, auth.ErrInvalidSession) {
		h.clearSessionCookie(c)
		c.Next()
		return
	}
	if err != nil {
		slog.Error("error resolving session", "error", err)
		c.Next()
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), sess.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("error loading session user", "error", err)
		}
		c.Next()
		return
	}

	c.Set(ctxUserKey, user)
	// Resolve already rolled the server-side expiry; roll the cookie too.
	h.setSessionCookie(c, token)
	c.Next()
}

func (h *Handler) requireAuth(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(h.sessions.TTL().Seconds()), "/", "", h.cookieSecure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", h.cookieSecure, true)
}
