package server

import (
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListLetters(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	result, err := h.letters.List(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "letters.list", err)
		return
	}
	c.JSON(http.StatusOK, newLetterPayloads(result))
}

func (h *httpHandler) handleGetLetter(c *gin.Context) {
	userID, letterID, ok := h.letterTarget(c, "letters.get")
	if !ok {
		return
	}
	letter, err := h.letters.Get(c.Request.Context(), userID, letterID)
	if err != nil {
		h.respondError(c, "letters.get", err)
		return
	}
	c.JSON(http.StatusOK, newLetterPayload(letter))
}

func (h *httpHandler) handleCreateLetter(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return
	}
	var request createLetterPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindingError(c, "letters.create", err)
		return
	}
	letter, err := h.letters.Create(c.Request.Context(), userID, letters.CreateInput{
		Title:   request.Title,
		Content: request.Content,
	})
	if err != nil {
		h.respondError(c, "letters.create", err)
		return
	}
	c.JSON(http.StatusCreated, newLetterPayload(letter))
}

func (h *httpHandler) handleUpdateLetter(c *gin.Context) {
	userID, letterID, ok := h.letterTarget(c, "letters.update")
	if !ok {
		return
	}
	var request updateLetterPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		// A malformed body is only reported to the letter's owner.
		if _, accessErr := h.letters.Get(c.Request.Context(), userID, letterID); accessErr != nil {
			h.respondError(c, "letters.update", accessErr)
			return
		}
		respondBindingError(c, "letters.update", err)
		return
	}
	letter, err := h.letters.Update(c.Request.Context(), userID, letterID, letters.Patch{
		Title:          request.Title,
		Content:        request.Content,
		GoogleDriveID:  request.GoogleDriveID,
		GoogleDriveURL: request.GoogleDriveURL,
	})
	if err != nil {
		h.respondError(c, "letters.update", err)
		return
	}
	c.JSON(http.StatusOK, newLetterPayload(letter))
}

func (h *httpHandler) handleDeleteLetter(c *gin.Context) {
	userID, letterID, ok := h.letterTarget(c, "letters.delete")
	if !ok {
		return
	}
	if err := h.letters.Delete(c.Request.Context(), userID, letterID); err != nil {
		h.respondError(c, "letters.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// letterTarget resolves the caller and the :id path parameter, aborting on failure.
func (h *httpHandler) letterTarget(c *gin.Context, operation string) (uint64, uint64, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "Not authenticated", "session.missing")
		return 0, 0, false
	}
	// Identifiers are stored in signed 64-bit columns.
	letterID, err := strconv.ParseUint(c.Param("id"), 10, 63)
	if err != nil || letterID == 0 {
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, "Invalid letter ID", operation+".invalid_id",
			errorDetail{Field: "id", Message: "must be a positive integer"})
		return 0, 0, false
	}
	return userID, letterID, true
}
