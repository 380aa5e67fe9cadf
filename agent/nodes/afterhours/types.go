package afterhoursnode

import (
	"errors"
	"time"

	contractx "github.com/wireheat/afterhours/agent/contract"
	statex "github.com/wireheat/afterhours/agent/state"
)

var ErrInvalidTool = errors.New("tool name is empty")

type GraphInput struct {
	SessionID  string
	Invocation contractx.ToolInvocation
}

type GraphOutput struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Context   string `json:"context"`
	Step      string `json:"step"`
	RequestID string `json:"request_id,omitempty"`
}

// GraphState flows through the turn pipeline, one instance per invocation.
type GraphState struct {
	SessionID  string
	Invocation contractx.ToolInvocation
	Now        time.Time

	Session *statex.Session
	Result  contractx.StepResult
}
