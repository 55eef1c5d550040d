package render

import (
	"errors"
	"fmt"
	"slices"
)

// State is a step of a single timer render.
type State string

const (
	// StateCheckReuse looks for an identical segment already on disk.
	StateCheckReuse State = "CHECK_REUSE"
	// StateReused means the segment was satisfied by a copy. Terminal.
	StateReused State = "REUSED"
	// StatePrepareFrames ensures frame assets exist and builds the sequence.
	StatePrepareFrames State = "PREPARE_FRAMES"
	// StatePrepareAudio builds the soundtrack in a fresh work directory.
	StatePrepareAudio State = "PREPARE_AUDIO"
	// StateCompose writes the frame list and background graph.
	StateCompose State = "COMPOSE"
	// StateEncode produces the segment file.
	StateEncode State = "ENCODE"
	// StateCleanup removes the work directory. Terminal.
	StateCleanup State = "CLEANUP"
)

// ErrInvalidTransition is returned when a render step is attempted out of order.
var ErrInvalidTransition = errors.New("render: invalid state transition")

// validTransitions defines which state transitions are allowed. Cleanup is
// reachable from every state that runs after the work directory exists.
var validTransitions = map[State][]State{
	StateCheckReuse:    {StateReused, StatePrepareFrames},
	StatePrepareFrames: {StatePrepareAudio},
	StatePrepareAudio:  {StateCompose, StateCleanup},
	StateCompose:       {StateEncode, StateCleanup},
	StateEncode:        {StateCleanup},
	StateReused:        {},
	StateCleanup:       {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// trace records the states a render passed through.
type trace struct {
	states []State
}

func (t *trace) enter(s State) error {
	if n := len(t.states); n == 0 {
		if s != StateCheckReuse {
			return fmt.Errorf("%w: start -> %s", ErrInvalidTransition, s)
		}
	} else if from := t.states[n-1]; !canTransition(from, s) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, s)
	}
	t.states = append(t.states, s)
	return nil
}

func (t *trace) current() State {
	if len(t.states) == 0 {
		return ""
	}
	return t.states[len(t.states)-1]
}
