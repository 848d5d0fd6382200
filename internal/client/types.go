package client

import (
	"fmt"
	"time"
)

// Identity is the sign-in assertion sent to the API.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// User mirrors the API user representation.
type User struct {
	ID             uint64  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Picture        *string `json:"picture"`
	GoogleID       string  `json:"googleId"`
	HasDriveAccess bool    `json:"hasDriveAccess"`
}

// Letter mirrors the API letter representation.
type Letter struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	UserID         uint64    `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	GoogleDriveID  *string   `json:"googleDriveId"`
	GoogleDriveURL *string   `json:"googleDriveUrl"`
}

// NewLetter is the payload for CreateLetter. A nil Title lets the server apply its default.
type NewLetter struct {
	Title   *string `json:"title,omitempty"`
	Content string  `json:"content"`
}

// LetterPatch carries the fields to change; nil fields are left untouched.
type LetterPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// DriveSave is the payload for SaveToDrive.
type DriveSave struct {
	LetterID            string `json:"letterId"`
	Title               string `json:"title"`
	Content             string `json:"content"`
	FileName            string `json:"fileName"`
	ConvertToGoogleDocs bool   `json:"convertToGoogleDocs"`
}

// DriveSaveResult reports where the exported document lives.
type DriveSaveResult struct {
	Success bool   `json:"success"`
	FileID  string `json:"fileId"`
	FileURL string `json:"fileUrl"`
	Message string `json:"message"`
}

// EditorCommand describes one toolbar entry.
type EditorCommand struct {
	Name        string `json:"name"`
	HostCommand string `json:"hostCommand"`
	Toggle      bool   `json:"toggle"`
	Alignment   string `json:"alignment,omitempty"`
}

// FontSize is a toolbar font-size preset.
type FontSize struct {
	Px        int `json:"px"`
	HostLevel int `json:"hostLevel"`
}

// EditorToolbar is the server's enumeration of formatting operations.
type EditorToolbar struct {
	Commands          []EditorCommand `json:"commands"`
	FontSizes         []FontSize      `json:"fontSizes"`
	DefaultFontSizePx int             `json:"defaultFontSizePx"`
}

// DriveConsent is the Drive consent page and the state its callback must echo.
type DriveConsent struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// Selection is a range of character offsets in the editable region.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// EditorStep is one toolbar operation to resolve.
type EditorStep struct {
	Command    string `json:"command"`
	FontSizePx int    `json:"fontSizePx,omitempty"`
}

// EditorApply asks the server to resolve a sequence of toolbar operations.
type EditorApply struct {
	Selection  Selection    `json:"selection"`
	Operations []EditorStep `json:"operations"`
}

// HostCall is the host editing command an operation resolves to.
type HostCall struct {
	Command     string `json:"command"`
	HostCommand string `json:"hostCommand"`
	Value       string `json:"value"`
}

// FormatState is the toolbar state after the operations.
type FormatState struct {
	Bold       bool   `json:"bold"`
	Italic     bool   `json:"italic"`
	Underline  bool   `json:"underline"`
	Alignment  string `json:"alignment"`
	FontSizePx int    `json:"fontSizePx"`
}

// EditorApplyResult pairs the host calls with the resulting state.
type EditorApplyResult struct {
	Calls []HostCall  `json:"calls"`
	State FormatState `json:"state"`
}

// ErrorDetail names a rejected request field.
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Kind       string
	Code       string
	Message    string
	Details    []ErrorDetail
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inkwell api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("inkwell api: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
}
