package entris

// State is the session state of a game.
type State string

const (
	StateWaiting    State = "waiting"
	StateStarted    State = "started"
	StateOver       State = "over"
	StateVictorious State = "victorious"
	StateAborted    State = "aborted"
)

// Terminal reports whether no further transition except abort can happen.
func (s State) Terminal() bool {
	switch s {
	case StateOver, StateVictorious, StateAborted:
		return true
	default:
		return false
	}
}

// Mode selects how cleared lines are accounted for.
type Mode int

const (
	// ModeSolo scores cleared lines and raises the level.
	ModeSolo Mode = iota
	// ModeOnline sends cleared lines to opponents instead of scoring them.
	ModeOnline
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeOnline {
		return "online"
	}
	return "solo"
}
