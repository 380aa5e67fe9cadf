package afterhoursnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/wireheat/afterhours/agent/contract"
	intakex "github.com/wireheat/afterhours/agent/intake"
)

// PersistIntake stores a submitted request. Runs before the event publish so
// the repository is the source of truth by the time any dashboard reacts.
func PersistIntake(ctx context.Context, in *GraphState, repo intakex.Repository) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Result.Intake == nil {
		return in, nil
	}

	if err := repo.Create(ctx, in.Result.Intake); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", in.SessionID).
		Str("request_id", in.Result.Intake.ID).
		Bool("is_emergency", in.Result.Intake.IsEmergency).
		Msg("service request submitted")
	return in, nil
}
