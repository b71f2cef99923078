package domain

import "fmt"

// State is a step of an operation.
type State string

const (
	StateIdle             State = "idle"
	StateBuildingIntent   State = "building_intent"
	StateCheckingApproval State = "checking_approval"
	StateSubmittingL1     State = "submitting_l1"
	StateCorrelating      State = "correlating"
	StateFailed           State = "failed"
	StateDone             State = "done"
)

// transitions lists every legal move. Any non-terminal state may fail.
var transitions = map[State][]State{
	StateIdle:             {StateBuildingIntent},
	StateBuildingIntent:   {StateCheckingApproval, StateSubmittingL1, StateCorrelating, StateFailed},
	StateCheckingApproval: {StateSubmittingL1, StateFailed},
	StateSubmittingL1:     {StateCorrelating, StateFailed},
	StateCorrelating:      {StateDone, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether from → to is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError is returned for an illegal move.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
