package richtext

// HostCall is one invocation of the host editing surface.
type HostCall struct {
	Command Command
	Name    string
	Value   string
}

// ReplayFormatter is a Formatter with no live document. It keeps the inline styles and
// alignment a sequence of operations leaves active and records the host calls they resolve to,
// so a client can ask how a toolbar action maps onto its editing surface.
type ReplayFormatter struct {
	active map[Command]bool
	calls  []HostCall
}

// NewReplayFormatter starts from an unformatted, left-aligned selection.
func NewReplayFormatter() *ReplayFormatter {
	return &ReplayFormatter{active: map[Command]bool{CommandAlignLeft: true}}
}

// Exec records the host call and updates the active styles.
func (f *ReplayFormatter) Exec(operation Operation, _ Selection) error {
	f.calls = append(f.calls, HostCall{
		Command: operation.Command,
		Name:    operation.Command.HostName(),
		Value:   operation.HostValue(),
	})
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

// QueryState reports whether the command is active.
func (f *ReplayFormatter) QueryState(command Command) bool {
	return f.active[command]
}

// Calls returns the host calls in execution order.
func (f *ReplayFormatter) Calls() []HostCall {
	return append([]HostCall(nil), f.calls...)
}

// Replay parses each named command, applies it to a fresh toolbar at the given selection and
// returns the host calls with the resulting state. fontSizePx is only used by font-size.
func Replay(selection Selection, steps []ReplayStep) ([]HostCall, FormatState, error) {
	formatter := NewReplayFormatter()
	toolbar, err := NewToolbar(formatter)
	if err != nil {
		return nil, FormatState{}, err
	}
	state := toolbar.SelectionChanged(selection)
	for index, step := range steps {
		command, err := ParseCommand(step.Command)
		if err != nil {
			return nil, FormatState{}, &StepError{Index: index, Err: err}
		}
		state, err = toolbar.Apply(Operation{Command: command, FontSizePx: step.FontSizePx})
		if err != nil {
			return nil, FormatState{}, &StepError{Index: index, Err: err}
		}
	}
	return formatter.Calls(), state, nil
}

// ReplayStep names a command and its optional font size.
type ReplayStep struct {
	Command    string
	FontSizePx int
}

// StepError locates the step a replay stopped at.
type StepError struct {
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}
