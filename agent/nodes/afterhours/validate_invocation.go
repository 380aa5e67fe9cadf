package afterhoursnode

import (
	"strings"
	"time"
)

// ValidateInvocation normalizes the turn input. A blank session id means a new
// call: one is minted so the rest of the pipeline never sees an empty id.
func ValidateInvocation(in GraphInput, nowFn func() time.Time, newID func() string) (*GraphState, error) {
	tool := strings.TrimSpace(in.Invocation.Tool)
	if tool == "" {
		return nil, ErrInvalidTool
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newID()
	}

	inv := in.Invocation
	inv.Tool = tool

	return &GraphState{
		SessionID:  sessionID,
		Invocation: inv,
		Now:        nowFn().UTC(),
	}, nil
}
