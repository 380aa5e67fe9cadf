package workflow

import (
	"errors"
	"testing"
	"time"

	statex "github.com/wireheat/afterhours/agent/state"
)

func TestTransitionMovesCopy(t *testing.T) {
	t.Parallel()

	m := NewMachine(Afterhours())
	now := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	sess := statex.NewSession("s1", ContextGreeting, StepWelcome, now)
	sess.Merge(map[string]any{"k": "v"})

	moved, err := m.Transition(sess, ContextServiceRequest, StepGetIssueType)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if moved.CurrentContext != ContextServiceRequest || moved.CurrentStep != StepGetIssueType {
		t.Fatalf("unexpected position: %s/%s", moved.CurrentContext, moved.CurrentStep)
	}
	if moved.GlobalData["k"] != "v" {
		t.Fatal("global data must survive the transition")
	}

	// Original session is untouched.
	if sess.CurrentContext != ContextGreeting || sess.CurrentStep != StepWelcome {
		t.Fatalf("input session mutated: %s/%s", sess.CurrentContext, sess.CurrentStep)
	}
}

func TestTransitionUnknownTarget(t *testing.T) {
	t.Parallel()

	m := NewMachine(Afterhours())
	sess := statex.NewSession("s1", ContextGreeting, StepWelcome, time.Now())

	_, err := m.Transition(sess, ContextServiceRequest, "no_such_step")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionNilSession(t *testing.T) {
	t.Parallel()

	m := NewMachine(Afterhours())
	if _, err := m.Transition(nil, ContextGreeting, StepWelcome); !errors.Is(err, statex.ErrNilSession) {
		t.Fatalf("expected ErrNilSession, got %v", err)
	}
}

func TestPosition(t *testing.T) {
	t.Parallel()

	m := NewMachine(Afterhours())
	sess := statex.NewSession("s1", ContextServiceRequest, StepGetOwnership, time.Now())

	step, err := m.Position(sess)
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if step.Name != StepGetOwnership {
		t.Fatalf("unexpected step: %s", step.Name)
	}

	sess.CurrentStep = "drifted"
	if _, err := m.Position(sess); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
