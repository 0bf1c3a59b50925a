package negotiation

import "fmt"

type State int

const (
	Created State = iota
	AwaitingApproval
	Approved
	Offered
	Answered
	Flowing
	MediaCaptureFailed
	Ended
)

var stateNames = [...]string{
	Created:            "created",
	AwaitingApproval:   "awaiting-approval",
	Approved:           "approved",
	Offered:            "offered",
	Answered:           "answered",
	Flowing:            "flowing",
	MediaCaptureFailed: "media-capture-failed",
	Ended:              "ended",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

var transitions = map[State][]State{
	Created:            {AwaitingApproval, MediaCaptureFailed, Ended},
	AwaitingApproval:   {Approved, MediaCaptureFailed, Ended},
	Approved:           {Offered, Ended},
	Offered:            {Answered, Flowing, Ended},
	Answered:           {Flowing, Ended},
	Flowing:            {Ended},
	MediaCaptureFailed: {Ended},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool { return s == Ended }

// Machine tracks the session state. While a renegotiation round runs the
// round walks the pre-flowing states again, but State keeps reporting the
// state the session had when the round began.
type Machine struct {
	state  State
	outer  State
	nested bool
}

func (m *Machine) State() State {
	if m.nested {
		return m.outer
	}
	return m.state
}

// Round returns the state of the running offer/answer round.
func (m *Machine) Round() State { return m.state }

func (m *Machine) Nested() bool { return m.nested }

func (m *Machine) Advance(to State) error {
	if !m.state.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
	}
	m.state = to
	if m.nested && to == Answered {
		m.state, m.nested = m.outer, false
	}
	return nil
}

// Rewind starts a nested round at the given pre-offer state.
func (m *Machine) Rewind(to State) error {
	if m.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
	}
	if !m.nested {
		m.outer, m.nested = m.state, true
	}
	m.state = to
	return nil
}

// Unwind abandons a nested round.
func (m *Machine) Unwind() {
	if m.nested {
		m.state, m.nested = m.outer, false
	}
}

// Promote raises the outer state while a nested round runs.
func (m *Machine) Promote(to State) error {
	if !m.nested {
		return m.Advance(to)
	}
	if !m.outer.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.outer, to)
	}
	m.outer = to
	return nil
}

// End moves to Ended from anywhere. It reports false if already ended.
func (m *Machine) End() bool {
	if m.state == Ended {
		return false
	}
	m.state, m.nested = Ended, false
	return true
}
