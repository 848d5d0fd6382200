package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
)

type userPayload struct {
	ID             uint64  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Picture        *string `json:"picture"`
	GoogleID       string  `json:"googleId"`
	HasDriveAccess bool    `json:"hasDriveAccess"`
}

func newUserPayload(user users.User) userPayload {
	return userPayload{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Picture:        user.Picture,
		GoogleID:       user.GoogleID,
		HasDriveAccess: user.HasDriveAccess(),
	}
}

type letterPayload struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	UserID         uint64    `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	GoogleDriveID  *string   `json:"googleDriveId"`
	GoogleDriveURL *string   `json:"googleDriveUrl"`
}

func newLetterPayload(letter letters.Letter) letterPayload {
	return letterPayload{
		ID:             letter.ID,
		Title:          letter.Title,
		Content:        letter.Content,
		UserID:         letter.UserID,
		CreatedAt:      letter.CreatedAt,
		UpdatedAt:      letter.UpdatedAt,
		GoogleDriveID:  letter.GoogleDriveID,
		GoogleDriveURL: letter.GoogleDriveURL,
	}
}

func newLetterPayloads(items []letters.Letter) []letterPayload {
	result := make([]letterPayload, 0, len(items))
	for _, letter := range items {
		result = append(result, newLetterPayload(letter))
	}
	return result
}

type loginRequestPayload struct {
	User    *loginUserPayload `json:"user"`
	IDToken string            `json:"idToken"`
}

type loginUserPayload struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// createLetterPayload ignores any owner field supplied by the client.
type createLetterPayload struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type updateLetterPayload struct {
	Title          *string `json:"title"`
	Content        *string `json:"content"`
	GoogleDriveID  *string `json:"googleDriveId"`
	GoogleDriveURL *string `json:"googleDriveUrl"`
}

type driveSaveRequestPayload struct {
	LetterID            letterReference `json:"letterId"`
	Title               string          `json:"title"`
	Content             string          `json:"content"`
	FileName            string          `json:"fileName"`
	ConvertToGoogleDocs bool            `json:"convertToGoogleDocs"`
}

type driveSaveResponsePayload struct {
	Success bool   `json:"success"`
	FileID  string `json:"fileId"`
	FileURL string `json:"fileUrl"`
	Message string `json:"message"`
}

type driveAuthorizeRequestPayload struct {
	Code string `json:"code"`
}

// letterReference accepts a letter id sent either as a JSON string or a JSON number.
type letterReference string

func (r *letterReference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*r = letterReference(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return errors.New("letterId must be a string or number")
	}
	if _, err := strconv.ParseFloat(number.String(), 64); err != nil {
		return errors.New("letterId must be a string or number")
	}
	*r = letterReference(number.String())
	return nil
}
