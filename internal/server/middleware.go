package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	cookie, err := c.Request.Cookie(h.cookie.Name)
	if err != nil || cookie.Value == "" {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	userID, err := h.sessions.Resolve(c.Request.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrSessionNotFound) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		h.clearSessionCookie(c)
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.invalid")
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(started)),
		}
		if userID := c.GetUint64(userIDContextKey); userID != 0 {
			fields = append(fields, zap.Uint64("user_id", userID))
		}
		logger.Debug("http request", fields...)
	}
}

func (h *httpHandler) setSessionCookie(c *gin.Context, session auth.IssuedSession) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *httpHandler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func currentUserID(c *gin.Context) (uint64, bool) {
	userID := c.GetUint64(userIDContextKey)
	return userID, userID != 0
}
