package afterhoursnode

import (
	"fmt"

	contractx "github.com/wireheat/afterhours/agent/contract"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
)

// ApplyResult folds a StepResult back into the session: the data patch is
// merged first, then any transition the result names is taken. Collected data
// always survives the transition.
func ApplyResult(in *GraphState, machine *workflowx.Machine) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	in.Session.Merge(in.Result.DataPatch)

	if target := in.Result.Target; target != nil {
		moved, err := machine.Transition(in.Session, target.Context, target.Step)
		if err != nil {
			return nil, err
		}
		in.Session = moved
	}

	return in, nil
}
