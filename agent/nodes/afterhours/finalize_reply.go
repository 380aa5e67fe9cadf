package afterhoursnode

import (
	"fmt"
	"strings"

	contractx "github.com/wireheat/afterhours/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Result.Response)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: tool returned empty response", contractx.ErrValidation)
	}

	out := GraphOutput{
		SessionID: in.SessionID,
		Reply:     reply,
		Context:   in.Session.CurrentContext,
		Step:      in.Session.CurrentStep,
	}
	if in.Result.Intake != nil {
		out.RequestID = in.Result.Intake.ID
	}
	return out, nil
}
