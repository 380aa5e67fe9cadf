package afterhoursnode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/wireheat/afterhours/agent/contract"
	statex "github.com/wireheat/afterhours/agent/state"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
)

// LoadOrCreateSession resolves the session, creating a fresh one at the
// workflow entry step when none exists.
func LoadOrCreateSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	def *workflowx.Definition,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Load(ctx, in.SessionID)
	if err != nil {
		if !errors.Is(err, statex.ErrStateNotFound) {
			return nil, err
		}
		entryContext, entryStep := def.Entry()
		sess = statex.NewSession(in.SessionID, entryContext, entryStep, in.Now)
	}

	in.Session = sess
	return in, nil
}
