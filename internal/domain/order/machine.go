package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
)

// Lifecycle events accepted by the order state machine.
const (
	EventAuthorize = "authorize"
	EventCancel    = "cancel"
	EventShip      = "ship"
)

// ErrInvalidTransition wraps ErrConflict so callers can match either the
// broad conflict class or the transition-specific failure.
var ErrInvalidTransition = fmt.Errorf("%w: invalid transition", ErrConflict)

// StateMachine guards order status transitions. CANCELED and SHIPPED are
// terminal; no event leads out of them.
type StateMachine struct {
	fsm *fsm.FSM
	mu  sync.Mutex
}

var lifecycle = NewStateMachine()

func NewStateMachine() *StateMachine {
	m := &StateMachine{}
	m.fsm = fsm.NewFSM(
		string(StatusPending),
		fsm.Events{
			{Name: EventAuthorize, Src: []string{string(StatusPending)}, Dst: string(StatusProcessing)},
			{Name: EventCancel, Src: []string{string(StatusPending)}, Dst: string(StatusCanceled)},
			{Name: EventShip, Src: []string{string(StatusProcessing)}, Dst: string(StatusShipped)},
		},
		fsm.Callbacks{},
	)
	return m
}

// Transition applies event from the given status and returns the resulting
// status, or ErrInvalidTransition when the event is not legal there.
func (m *StateMachine) Transition(current Status, event string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.SetState(string(current))
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, current)
	}
	return Status(m.fsm.Current()), nil
}
