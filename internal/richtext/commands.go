// Package richtext enumerates the formatting operations the letter editor supports and
// validates the markup the editor produces. Rendering and the document model stay with the
// host editing surface; this package only names what may be applied and what may be stored.
package richtext

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command identifies one formatting operation.
type Command string

const (
	CommandBold          Command = "bold"
	CommandItalic        Command = "italic"
	CommandUnderline     Command = "underline"
	CommandAlignLeft     Command = "align-left"
	CommandAlignCenter   Command = "align-center"
	CommandAlignRight    Command = "align-right"
	CommandOrderedList   Command = "ordered-list"
	CommandUnorderedList Command = "unordered-list"
	CommandFontSize      Command = "font-size"
)

// Alignment is the paragraph alignment derived from the selection.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Font size bounds in CSS pixels.
const (
	MinFontSizePx     = 8
	MaxFontSizePx     = 96
	DefaultFontSizePx = 14
	maxHostFontLevel  = 7
)

var (
	// ErrUnknownCommand indicates an unrecognised command name.
	ErrUnknownCommand = errors.New("richtext: unknown command")
	// ErrInvalidFontSize indicates a font size outside the supported range.
	ErrInvalidFontSize = errors.New("richtext: invalid font size")
)

var orderedCommands = []Command{
	CommandBold,
	CommandItalic,
	CommandUnderline,
	CommandAlignLeft,
	CommandAlignCenter,
	CommandAlignRight,
	CommandOrderedList,
	CommandUnorderedList,
	CommandFontSize,
}

var hostCommandNames = map[Command]string{
	CommandBold:          "bold",
	CommandItalic:        "italic",
	CommandUnderline:     "underline",
	CommandAlignLeft:     "justifyLeft",
	CommandAlignCenter:   "justifyCenter",
	CommandAlignRight:    "justifyRight",
	CommandOrderedList:   "insertOrderedList",
	CommandUnorderedList: "insertUnorderedList",
	CommandFontSize:      "fontSize",
}

var fontSizePresets = []int{8, 9, 10, 11, 12, 14, 16, 18, 24, 30, 36, 48, 60, 72, 96}

// Commands returns every supported command in toolbar order.
func Commands() []Command {
	return append([]Command(nil), orderedCommands...)
}

// FontSizePresets returns the font sizes offered by the toolbar.
func FontSizePresets() []int {
	return append([]int(nil), fontSizePresets...)
}

// ParseCommand accepts a command name or its host command name.
func ParseCommand(raw string) (Command, error) {
	trimmed := strings.TrimSpace(raw)
	for _, command := range orderedCommands {
		if strings.EqualFold(trimmed, string(command)) || strings.EqualFold(trimmed, hostCommandNames[command]) {
			return command, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, raw)
}

// HostName returns the name the host editing surface uses for the command.
func (c Command) HostName() string {
	return hostCommandNames[c]
}

// Toggles reports whether the command flips an inline style on and off.
func (c Command) Toggles() bool {
	return c == CommandBold || c == CommandItalic || c == CommandUnderline
}

// Alignment returns the alignment a command applies, if any.
func (c Command) Alignment() (Alignment, bool) {
	switch c {
	case CommandAlignLeft:
		return AlignLeft, true
	case CommandAlignCenter:
		return AlignCenter, true
	case CommandAlignRight:
		return AlignRight, true
	default:
		return "", false
	}
}

// Operation is a command plus its argument.
type Operation struct {
	Command    Command
	FontSizePx int
}

// NewOperation validates a command and its argument.
func NewOperation(command Command, fontSizePx int) (Operation, error) {
	if _, ok := hostCommandNames[command]; !ok {
		return Operation{}, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	if command != CommandFontSize {
		return Operation{Command: command}, nil
	}
	if fontSizePx < MinFontSizePx || fontSizePx > MaxFontSizePx {
		return Operation{}, fmt.Errorf("%w: %dpx not in [%d, %d]", ErrInvalidFontSize, fontSizePx, MinFontSizePx, MaxFontSizePx)
	}
	return Operation{Command: command, FontSizePx: fontSizePx}, nil
}

// HostValue returns the argument passed to the host command.
func (o Operation) HostValue() string {
	if o.Command != CommandFontSize {
		return ""
	}
	return strconv.Itoa(HostFontLevel(o.FontSizePx))
}

// HostFontLevel maps pixels onto the host's 1..7 font size scale.
func HostFontLevel(px int) int {
	level := int(math.Ceil(float64(px) / 16))
	if level < 1 {
		return 1
	}
	if level > maxHostFontLevel {
		return maxHostFontLevel
	}
	return level
}
