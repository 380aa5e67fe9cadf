// Package afterhours wires the intake workflow, tool registry, stores and
// publisher into the single mutating entrypoint the outside world calls.
package afterhours

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	contractx "github.com/wireheat/afterhours/agent/contract"
	eventsx "github.com/wireheat/afterhours/agent/events"
	intakex "github.com/wireheat/afterhours/agent/intake"
	nodex "github.com/wireheat/afterhours/agent/nodes/afterhours"
	statex "github.com/wireheat/afterhours/agent/state"
	toolx "github.com/wireheat/afterhours/agent/tool"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
)

var ErrInvalidTool = nodex.ErrInvalidTool

type Agent struct {
	store    statex.Store
	def      *workflowx.Definition
	machine  *workflowx.Machine
	registry *toolx.Registry
	repo     intakex.Repository
	pub      eventsx.Publisher

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now   func() time.Time
	newID func() string
}

// New builds the agent and fails fast when the workflow definition references
// tools or steps that do not exist.
func New(
	store statex.Store,
	def *workflowx.Definition,
	registry *toolx.Registry,
	repo intakex.Repository,
	pub eventsx.Publisher,
) (*Agent, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if def == nil {
		return nil, errors.New("workflow definition is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if repo == nil {
		return nil, errors.New("intake repository is required")
	}
	if pub == nil {
		return nil, errors.New("event publisher is required")
	}

	if err := def.Validate(registry.Names()); err != nil {
		return nil, err
	}

	a := &Agent{
		store:    store,
		def:      def,
		machine:  workflowx.NewMachine(def),
		registry: registry,
		repo:     repo,
		pub:      pub,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}

	graphRunner, err := a.compileHandleToolGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

// HandleInvocation runs one conversation turn: zero-or-one tool call applied
// to the session named by sessionID, or a brand-new session when sessionID is
// empty. Taxonomy errors come back unwrapped for the caller to translate into
// clarifying prompts.
func (a *Agent) HandleInvocation(
	ctx context.Context,
	sessionID string,
	inv contractx.ToolInvocation,
) (nodex.GraphOutput, error) {
	return a.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID:  sessionID,
		Invocation: inv,
	})
}

// Session returns a snapshot of a live session.
func (a *Agent) Session(ctx context.Context, sessionID string) (*statex.Session, error) {
	return a.store.Load(ctx, sessionID)
}

// EndSession discards per-call state when the telephony layer reports the call
// has ended. Submitted intake records are unaffected.
func (a *Agent) EndSession(ctx context.Context, sessionID string) error {
	return a.store.Delete(ctx, sessionID)
}

// ToolInfos exposes the registered tool descriptions for the reasoning layer.
func (a *Agent) ToolInfos() []*schema.ToolInfo {
	return a.registry.Infos()
}
