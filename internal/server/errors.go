package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	kindInvalidRequest = "invalid_request"
	kindUnauthorized   = "unauthorized"
	kindForbidden      = "forbidden"
	kindNotFound       = "not_found"
	kindInternal       = "internal_error"
)

type errorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorPayload struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Code    string        `json:"code,omitempty"`
	Details []errorDetail `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, kind, message, code string, details ...errorDetail) {
	c.AbortWithStatusJSON(status, errorPayload{Error: kind, Message: message, Code: code, Details: details})
}

// respondError maps service failures onto the HTTP error taxonomy. Unexpected failures are
// logged with the operation that produced them and reported with a generic message.
func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	code := errorCode(operation, err)

	var letterValidation *letters.ValidationError
	if errors.As(err, &letterValidation) {
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, letterValidation.Message, code,
			errorDetail{Field: letterValidation.Field, Message: letterValidation.Message})
		return
	}
	var driveValidation *drive.ValidationError
	if errors.As(err, &driveValidation) {
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, driveValidation.Message, code,
			errorDetail{Field: driveValidation.Field, Message: driveValidation.Message})
		return
	}

	switch {
	case errors.Is(err, users.ErrInvalidIdentity):
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, "Invalid user data", code)
	case errors.Is(err, drive.ErrNoDriveAccess):
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, "User has no valid Google Drive access", code)
	case errors.Is(err, letters.ErrForbidden):
		abortWithError(c, http.StatusForbidden, kindForbidden, "You do not have access to this letter", code)
	case errors.Is(err, letters.ErrLetterNotFound):
		abortWithError(c, http.StatusNotFound, kindNotFound, "Letter not found", code)
	case errors.Is(err, users.ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, kindNotFound, "User not found", code)
	default:
		fields := []zap.Field{zap.String("operation", operation), zap.String("code", code), zap.Error(err)}
		if userID, ok := currentUserID(c); ok {
			fields = append(fields, zap.Uint64("user_id", userID))
		}
		h.logger.Error("request failed", fields...)
		abortWithError(c, http.StatusInternalServerError, kindInternal, "Internal server error", code)
	}
}

func errorCode(operation string, err error) string {
	var serviceErr *letters.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return operation + ".failed"
}

// respondBindingError reports a request body that could not be decoded.
func respondBindingError(c *gin.Context, operation string, err error) {
	var details []errorDetail
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		details = append(details, errorDetail{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()})
	}
	abortWithError(c, http.StatusBadRequest, kindInvalidRequest, "Malformed request body", operation+".invalid_payload", details...)
}
