package workflow

import (
	"fmt"

	statex "github.com/wireheat/afterhours/agent/state"
)

// Machine enforces the (context, step) transition rules over a definition.
// It never advances a session on its own; the only transitions are the ones
// tool results explicitly name.
type Machine struct {
	def *Definition
}

func NewMachine(def *Definition) *Machine {
	return &Machine{def: def}
}

// Transition returns a copy of the session moved to the target position.
// Global data is left untouched; callers merge data separately. Fails with
// ErrInvalidTransition when the target does not exist in the definition.
func (m *Machine) Transition(sess *statex.Session, targetContext, targetStep string) (*statex.Session, error) {
	if sess == nil {
		return nil, statex.ErrNilSession
	}
	if !m.def.Contains(targetContext, targetStep) {
		return nil, fmt.Errorf("%w: %s/%s is not in the workflow", ErrInvalidTransition, targetContext, targetStep)
	}

	out := sess.Clone()
	out.CurrentContext = targetContext
	out.CurrentStep = targetStep
	return out, nil
}

// Position validates that a session sits on a defined (context, step) pair.
func (m *Machine) Position(sess *statex.Session) (*Step, error) {
	if sess == nil {
		return nil, statex.ErrNilSession
	}
	return m.def.Lookup(sess.CurrentContext, sess.CurrentStep)
}
