package console

// State is the state of a console session.
type State int

const (
	// Idle means no run is open. Submitted lines are local commands.
	Idle State = iota
	// Running means a run is open and has not asked for input yet.
	// Submitted lines go to the program's stdin.
	Running
	// AwaitingInput means the program printed one of its prompts.
	// Submitted lines go to the program's stdin.
	AwaitingInput
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case AwaitingInput:
		return "awaiting input"
	default:
		return "unknown"
	}
}

// Remote reports whether submitted lines are routed to the running program.
func (s State) Remote() bool {
	return s == Running || s == AwaitingInput
}
