package afterhoursnode

import (
	"fmt"

	contractx "github.com/wireheat/afterhours/agent/contract"
	eventsx "github.com/wireheat/afterhours/agent/events"
)

// PublishEvent fans the result's domain event out to live subscribers.
// Best-effort: a turn never fails because nobody is listening.
func PublishEvent(in *GraphState, pub eventsx.Publisher) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Result.Event != nil {
		pub.Publish(*in.Result.Event)
	}
	return in, nil
}
