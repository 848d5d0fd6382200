package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/richtext"
	"github.com/gin-gonic/gin"
)

type editorCommandPayload struct {
	Name        string `json:"name"`
	HostCommand string `json:"hostCommand"`
	Toggle      bool   `json:"toggle"`
	Alignment   string `json:"alignment,omitempty"`
}

type fontSizePayload struct {
	Px        int `json:"px"`
	HostLevel int `json:"hostLevel"`
}

type editorCommandsPayload struct {
	Commands          []editorCommandPayload `json:"commands"`
	FontSizes         []fontSizePayload      `json:"fontSizes"`
	DefaultFontSizePx int                    `json:"defaultFontSizePx"`
}

func (h *httpHandler) handleEditorCommands(c *gin.Context) {
	commands := richtext.Commands()
	response := editorCommandsPayload{
		Commands:          make([]editorCommandPayload, 0, len(commands)),
		DefaultFontSizePx: richtext.DefaultFontSizePx,
	}
	for _, command := range commands {
		payload := editorCommandPayload{
			Name:        string(command),
			HostCommand: command.HostName(),
			Toggle:      command.Toggles(),
		}
		if alignment, ok := command.Alignment(); ok {
			payload.Alignment = string(alignment)
		}
		response.Commands = append(response.Commands, payload)
	}
	for _, px := range richtext.FontSizePresets() {
		response.FontSizes = append(response.FontSizes, fontSizePayload{Px: px, HostLevel: richtext.HostFontLevel(px)})
	}
	c.JSON(http.StatusOK, response)
}

type selectionPayload struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type editorStepPayload struct {
	Command    string `json:"command"`
	FontSizePx int    `json:"fontSizePx,omitempty"`
}

type editorApplyRequest struct {
	Selection  selectionPayload    `json:"selection"`
	Operations []editorStepPayload `json:"operations"`
}

type hostCallPayload struct {
	Command     string `json:"command"`
	HostCommand string `json:"hostCommand"`
	Value       string `json:"value"`
}

type formatStatePayload struct {
	Bold       bool   `json:"bold"`
	Italic     bool   `json:"italic"`
	Underline  bool   `json:"underline"`
	Alignment  string `json:"alignment"`
	FontSizePx int    `json:"fontSizePx"`
}

type editorApplyPayload struct {
	Calls []hostCallPayload  `json:"calls"`
	State formatStatePayload `json:"state"`
}

// handleEditorApply resolves a sequence of toolbar operations into the host calls they issue
// and the format state they leave behind.
func (h *httpHandler) handleEditorApply(c *gin.Context) {
	var request editorApplyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindingError(c, "editor.apply", err)
		return
	}
	if request.Selection.Start < 0 || request.Selection.End < request.Selection.Start {
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, "Invalid selection", "editor.apply.invalid_selection",
			errorDetail{Field: "selection", Message: "selection must satisfy 0 <= start <= end"})
		return
	}
	steps := make([]richtext.ReplayStep, 0, len(request.Operations))
	for _, operation := range request.Operations {
		steps = append(steps, richtext.ReplayStep{Command: operation.Command, FontSizePx: operation.FontSizePx})
	}
	calls, state, err := richtext.Replay(richtext.Selection{Start: request.Selection.Start, End: request.Selection.End}, steps)
	if err != nil {
		var stepErr *richtext.StepError
		if !errors.As(err, &stepErr) {
			h.respondError(c, "editor.apply", err)
			return
		}
		field := fmt.Sprintf("operations[%d].command", stepErr.Index)
		code := "editor.apply.unknown_command"
		message := "Unknown formatting command"
		if errors.Is(err, richtext.ErrInvalidFontSize) {
			field = fmt.Sprintf("operations[%d].fontSizePx", stepErr.Index)
			code = "editor.apply.invalid_font_size"
			message = fmt.Sprintf("Font size must be between %d and %d pixels", richtext.MinFontSizePx, richtext.MaxFontSizePx)
		}
		abortWithError(c, http.StatusBadRequest, kindInvalidRequest, message, code, errorDetail{Field: field, Message: message})
		return
	}

	response := editorApplyPayload{
		Calls: make([]hostCallPayload, 0, len(calls)),
		State: formatStatePayload{
			Bold:       state.Bold,
			Italic:     state.Italic,
			Underline:  state.Underline,
			Alignment:  string(state.Alignment),
			FontSizePx: state.FontSizePx,
		},
	}
	for _, call := range calls {
		response.Calls = append(response.Calls, hostCallPayload{Command: string(call.Command), HostCommand: call.Name, Value: call.Value})
	}
	c.JSON(http.StatusOK, response)
}
