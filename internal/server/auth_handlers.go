package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindingError(c, "auth.login", err)
		return
	}
	if request.User == nil || strings.TrimSpace(request.User.UID) == "" || strings.TrimSpace(request.User.Email) == "" {
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, "Invalid user data", "auth.login.invalid_payload")
		return
	}

	identity := users.Identity{
		ExternalID:  request.User.UID,
		Email:       request.User.Email,
		DisplayName: request.User.DisplayName,
		PictureURL:  request.User.PhotoURL,
	}
	if h.verifier != nil {
		if strings.TrimSpace(request.IDToken) == "" {
			abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "ID token required", "auth.login.missing_id_token")
			return
		}
		claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
		if err != nil {
			h.logger.Warn("google token verification failed", zap.Error(err))
			abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "ID token rejected", "auth.login.invalid_id_token")
			return
		}
		if claims.Subject != strings.TrimSpace(request.User.UID) {
			h.logger.Warn("google token subject mismatch", zap.String("subject", claims.Subject))
			abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "ID token rejected", "auth.login.subject_mismatch")
			return
		}
		if claims.Email != "" {
			identity.Email = claims.Email
		}
	}

	result, err := h.users.SignIn(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, "auth.login", err)
		return
	}

	if previous, cookieErr := c.Request.Cookie(h.cookie.Name); cookieErr == nil && previous.Value != "" {
		if endErr := h.sessions.End(c.Request.Context(), previous.Value); endErr != nil {
			h.logger.Debug("previous session not revoked", zap.Error(endErr))
		}
	}
	session, err := h.sessions.Start(c.Request.Context(), result.User.ID)
	if err != nil {
		h.respondError(c, "auth.login.session", err)
		return
	}
	h.setSessionCookie(c, session)

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, newUserPayload(result.User))
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	cookie, err := c.Request.Cookie(h.cookie.Name)
	if err == nil {
		if err := h.sessions.End(c.Request.Context(), cookie.Value); err != nil {
			h.respondError(c, "auth.logout", err)
			return
		}
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "auth.me", err)
		return
	}
	c.JSON(http.StatusOK, newUserPayload(user))
}
