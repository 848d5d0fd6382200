package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/drive"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleDriveSave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	var request driveSaveRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindingError(c, "drive.save", err)
		return
	}
	result, err := h.drive.Save(c.Request.Context(), userID, drive.SaveRequest{
		LetterID:            string(request.LetterID),
		Title:               request.Title,
		Content:             request.Content,
		FileName:            request.FileName,
		ConvertToGoogleDocs: request.ConvertToGoogleDocs,
	})
	if err != nil {
		h.respondError(c, "drive.save", err)
		return
	}
	c.JSON(http.StatusOK, driveSaveResponsePayload{
		Success: result.Success,
		FileID:  result.FileID,
		FileURL: result.FileURL,
		Message: result.Message,
	})
}

func (h *httpHandler) handleDriveFiles(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	files, err := h.drive.ListFiles(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "drive.files", err)
		return
	}
	c.JSON(http.StatusOK, newLetterPayloads(files))
}

func (h *httpHandler) handleDriveAuthorize(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	var request driveAuthorizeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindingError(c, "drive.authorize", err)
		return
	}
	user, err := h.drive.Authorize(c.Request.Context(), userID, request.Code)
	if err != nil {
		h.respondError(c, "drive.authorize", err)
		return
	}
	c.JSON(http.StatusOK, newUserPayload(user))
}

type driveConsentPayload struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

func (h *httpHandler) handleDriveConsentURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	consent := h.drive.ConsentURL(userID)
	c.JSON(http.StatusOK, driveConsentPayload{URL: consent.URL, State: consent.State})
}
