package richtext

import (
	"errors"
	"testing"
)

type fakeFormatter struct {
	active   map[Command]bool
	executed []Operation
	failWith error
}

func newFakeFormatter() *fakeFormatter {
	return &fakeFormatter{active: map[Command]bool{CommandAlignLeft: true}}
}

func (f *fakeFormatter) Exec(operation Operation, _ Selection) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.executed = append(f.executed, operation)
	if operation.Command.Toggles() {
		f.active[operation.Command] = !f.active[operation.Command]
	}
	if _, ok := operation.Command.Alignment(); ok {
		delete(f.active, CommandAlignLeft)
		delete(f.active, CommandAlignCenter)
		delete(f.active, CommandAlignRight)
		f.active[operation.Command] = true
	}
	return nil
}

func (f *fakeFormatter) QueryState(command Command) bool {
	return f.active[command]
}

func TestToolbarDerivesStateAfterApply(t *testing.T) {
	formatter := newFakeFormatter()
	toolbar, err := NewToolbar(formatter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := toolbar.Apply(Operation{Command: CommandBold})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !state.Bold || state.Italic {
		t.Fatalf("unexpected state after bold: %#v", state)
	}

	state, err = toolbar.Apply(Operation{Command: CommandAlignCenter})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if state.Alignment != AlignCenter {
		t.Fatalf("expected center alignment, got %s", state.Alignment)
	}

	state, err = toolbar.Apply(Operation{Command: CommandFontSize, FontSizePx: 36})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if state.FontSizePx != 36 {
		t.Fatalf("expected font size 36, got %d", state.FontSizePx)
	}
	if len(formatter.executed) != 3 || formatter.executed[2].HostValue() != "3" {
		t.Fatalf("unexpected executed operations %#v", formatter.executed)
	}
}

func TestToolbarRederivesOnSelectionChange(t *testing.T) {
	formatter := newFakeFormatter()
	toolbar, err := NewToolbar(formatter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	formatter.active[CommandItalic] = true
	formatter.active[CommandAlignRight] = true
	delete(formatter.active, CommandAlignLeft)

	state := toolbar.SelectionChanged(Selection{Start: 2, End: 5})
	if !state.Italic || state.Alignment != AlignRight {
		t.Fatalf("expected state from selection, got %#v", state)
	}
	if toolbar.State() != state {
		t.Fatalf("State should return the last derived state")
	}
}

func TestToolbarKeepsStateWhenHostFails(t *testing.T) {
	formatter := newFakeFormatter()
	toolbar, err := NewToolbar(formatter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	formatter.failWith = errors.New("no selection")

	before := toolbar.State()
	after, err := toolbar.Apply(Operation{Command: CommandUnderline})
	if err == nil {
		t.Fatalf("expected host failure to surface")
	}
	if after != before {
		t.Fatalf("state should not change on failure")
	}

	if _, err := toolbar.Apply(Operation{Command: CommandFontSize, FontSizePx: 2}); !errors.Is(err, ErrInvalidFontSize) {
		t.Fatalf("expected invalid font size, got %v", err)
	}
}

func TestNewToolbarRequiresFormatter(t *testing.T) {
	if _, err := NewToolbar(nil); err == nil {
		t.Fatalf("expected error for nil formatter")
	}
}
