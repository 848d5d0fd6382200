package richtext

import (
	"errors"
	"fmt"
)

// Selection is a range of character offsets within the editable region.
type Selection struct {
	Start int
	End   int
}

// Collapsed reports whether the selection is a caret.
func (s Selection) Collapsed() bool {
	return s.Start == s.End
}

// Formatter is the host capability that applies operations to the live document and reports
// the state of the current selection.
type Formatter interface {
	Exec(operation Operation, selection Selection) error
	QueryState(command Command) bool
}

// FormatState is the toolbar state derived from the selection.
type FormatState struct {
	Bold       bool
	Italic     bool
	Underline  bool
	Alignment  Alignment
	FontSizePx int
}

// Toolbar derives format state from a Formatter instead of tracking it independently.
type Toolbar struct {
	formatter Formatter
	selection Selection
	state     FormatState
}

// NewToolbar binds a toolbar to the host formatter.
func NewToolbar(formatter Formatter) (*Toolbar, error) {
	if formatter == nil {
		return nil, errors.New("richtext: formatter required")
	}
	return &Toolbar{
		formatter: formatter,
		state:     FormatState{Alignment: AlignLeft, FontSizePx: DefaultFontSizePx},
	}, nil
}

// Apply executes the operation on the current selection and re-derives the state.
func (t *Toolbar) Apply(operation Operation) (FormatState, error) {
	validated, err := NewOperation(operation.Command, operation.FontSizePx)
	if err != nil {
		return t.state, err
	}
	if err := t.formatter.Exec(validated, t.selection); err != nil {
		return t.state, fmt.Errorf("richtext: %s: %w", validated.Command, err)
	}
	if validated.Command == CommandFontSize {
		// The host only reports coarse levels, so the requested pixel size is kept.
		t.state.FontSizePx = validated.FontSizePx
	}
	t.refresh()
	return t.state, nil
}

// SelectionChanged records a new selection and re-derives the state from it.
func (t *Toolbar) SelectionChanged(selection Selection) FormatState {
	t.selection = selection
	t.refresh()
	return t.state
}

// State returns the last derived state.
func (t *Toolbar) State() FormatState {
	return t.state
}

func (t *Toolbar) refresh() {
	t.state.Bold = t.formatter.QueryState(CommandBold)
	t.state.Italic = t.formatter.QueryState(CommandItalic)
	t.state.Underline = t.formatter.QueryState(CommandUnderline)
	for _, command := range []Command{CommandAlignLeft, CommandAlignCenter, CommandAlignRight} {
		if t.formatter.QueryState(command) {
			alignment, _ := command.Alignment()
			t.state.Alignment = alignment
			return
		}
	}
}
