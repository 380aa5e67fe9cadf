package contract

import (
	eventsx "github.com/wireheat/afterhours/agent/events"
	intakex "github.com/wireheat/afterhours/agent/intake"
)

// ToolInvocation is one named tool call issued by the reasoning layer for a
// single conversation turn. Never persisted.
type ToolInvocation struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// StepTarget names the (context, step) a tool result moves the session to.
type StepTarget struct {
	Context string `json:"context"`
	Step    string `json:"step"`
}

// StepResult is the complete output of one tool execution. Handlers are
// side-effect-free: everything they want to happen is declared here and
// applied by the turn pipeline.
type StepResult struct {
	Response  string
	DataPatch map[string]any
	Target    *StepTarget
	Intake    *intakex.Request
	Event     *eventsx.Event
}
