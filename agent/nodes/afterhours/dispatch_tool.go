package afterhoursnode

import (
	"context"
	"fmt"

	contractx "github.com/wireheat/afterhours/agent/contract"
	toolx "github.com/wireheat/afterhours/agent/tool"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
)

// DispatchTool resolves the session's current step and runs the invocation
// through the registry. Authorization and argument validation both happen
// inside Invoke; the handler sees a read-only data snapshot.
func DispatchTool(
	ctx context.Context,
	in *GraphState,
	machine *workflowx.Machine,
	registry *toolx.Registry,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	step, err := machine.Position(in.Session)
	if err != nil {
		return nil, err
	}

	result, err := registry.Invoke(ctx, step, in.Session.Data(), in.Invocation)
	if err != nil {
		return nil, err
	}

	in.Result = result
	return in, nil
}
