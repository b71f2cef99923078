package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// OperationKind names a user-facing operation.
type OperationKind string

const (
	OpDeposit            OperationKind = "deposit"
	OpTransfer           OperationKind = "transfer"
	OpWithdraw           OperationKind = "withdraw"
	OpFinaliseWithdrawal OperationKind = "finalise_withdrawal"
)

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error
}

// Operation tracks one invocation through the state machine.
type Operation struct {
	ID       string
	Kind     OperationKind
	OffChain bool

	mu      sync.Mutex
	state   State
	history []Transition
}

// NewOperation starts an operation in the idle state.
func NewOperation(kind OperationKind, offChain bool) *Operation {
	return &Operation{
		ID:       uuid.NewString(),
		Kind:     kind,
		OffChain: offChain,
		state:    StateIdle,
	}
}

// State returns the current state.
func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Advance moves to next, recording cause when failing.
func (o *Operation) Advance(next State, cause error) (Transition, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !CanTransition(o.state, next) {
		return Transition{}, &TransitionError{From: o.state, To: next}
	}

	t := Transition{From: o.state, To: next, At: time.Now(), Err: cause}
	o.state = next
	o.history = append(o.history, t)
	return t, nil
}

// History returns a copy of the recorded transitions.
func (o *Operation) History() []Transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Transition, len(o.history))
	copy(out, o.history)
	return out
}

// Visited returns the states entered, in order.
func (o *Operation) Visited() []State {
	h := o.History()
	out := make([]State, len(h))
	for i, t := range h {
		out[i] = t.To
	}
	return out
}
