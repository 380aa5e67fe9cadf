// Package workflow holds the static conversation definition and the
// context/step state machine. The definition is authored in code, validated
// once at startup, and immutable afterwards.
package workflow

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid workflow transition")

// Step is one ordered sub-unit of a context. Criteria is a natural-language
// completion predicate evaluated by the external reasoning layer; the core
// only records it and enforces Tools.
type Step struct {
	Name      string
	Text      string
	Criteria  string
	Tools     []string
	NextSteps []string
}

// Allows reports whether the named tool is callable while in this step.
func (s *Step) Allows(tool string) bool {
	for _, name := range s.Tools {
		if name == tool {
			return true
		}
	}
	return false
}

// Context is a named phase of the conversation grouping ordered steps.
type Context struct {
	Name  string
	Steps []Step
}

// Definition is the full workflow: ordered contexts, each with ordered steps,
// plus the entry context. Build with Validate before use.
type Definition struct {
	EntryContext string
	Contexts     []Context
}

// Entry returns the initial (context, step) for a new session.
func (d *Definition) Entry() (string, string) {
	for _, c := range d.Contexts {
		if c.Name != d.EntryContext {
			continue
		}
		if len(c.Steps) == 0 {
			return c.Name, ""
		}
		return c.Name, c.Steps[0].Name
	}
	return "", ""
}

// Lookup resolves a (context, step) pair, or fails with ErrInvalidTransition.
func (d *Definition) Lookup(contextName, stepName string) (*Step, error) {
	for ci := range d.Contexts {
		c := &d.Contexts[ci]
		if c.Name != contextName {
			continue
		}
		for si := range c.Steps {
			if c.Steps[si].Name == stepName {
				return &c.Steps[si], nil
			}
		}
		return nil, fmt.Errorf("%w: step %s/%s does not exist", ErrInvalidTransition, contextName, stepName)
	}
	return nil, fmt.Errorf("%w: context %s does not exist", ErrInvalidTransition, contextName)
}

// Contains reports whether the (context, step) pair exists in the definition.
func (d *Definition) Contains(contextName, stepName string) bool {
	_, err := d.Lookup(contextName, stepName)
	return err == nil
}

// Validate fails fast on authoring bugs: every tool a step names must be
// registered, every successor step must exist in its context, and the entry
// context must have at least one step. A failure here aborts startup.
func (d *Definition) Validate(registeredTools map[string]bool) error {
	if d.EntryContext == "" {
		return errors.New("workflow: entry context is empty")
	}
	entryCtx, entryStep := d.Entry()
	if entryCtx == "" || entryStep == "" {
		return fmt.Errorf("workflow: entry context %q has no steps", d.EntryContext)
	}

	seen := make(map[string]bool, len(d.Contexts))
	for _, c := range d.Contexts {
		if c.Name == "" {
			return errors.New("workflow: context with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("workflow: duplicate context %q", c.Name)
		}
		seen[c.Name] = true

		stepNames := make(map[string]bool, len(c.Steps))
		for _, s := range c.Steps {
			if s.Name == "" {
				return fmt.Errorf("workflow: context %q has a step with empty name", c.Name)
			}
			if stepNames[s.Name] {
				return fmt.Errorf("workflow: duplicate step %s/%s", c.Name, s.Name)
			}
			stepNames[s.Name] = true

			for _, tool := range s.Tools {
				if !registeredTools[tool] {
					return fmt.Errorf("workflow: step %s/%s references unregistered tool %q", c.Name, s.Name, tool)
				}
			}
		}
		for _, s := range c.Steps {
			for _, next := range s.NextSteps {
				if !stepNames[next] {
					return fmt.Errorf("workflow: step %s/%s names missing successor %q", c.Name, s.Name, next)
				}
			}
		}
	}
	return nil
}
