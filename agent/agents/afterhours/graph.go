package afterhours

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/wireheat/afterhours/agent/nodes/afterhours"
)

func (a *Agent) compileHandleToolGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_invocation",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateInvocation(in, a.now, a.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_invocation: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateSession(ctx, in, a.store, a.def)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_or_create_session: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_tool",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchTool(ctx, in, a.machine, a.registry)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_tool: %w", err)
	}

	if err := graph.AddLambdaNode("apply_result",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyResult(in, a.machine)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_result: %w", err)
	}

	if err := graph.AddLambdaNode("persist_intake",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PersistIntake(ctx, in, a.repo)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_intake: %w", err)
	}

	if err := graph.AddLambdaNode("publish_event",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PublishEvent(in, a.pub)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node publish_event: %w", err)
	}

	if err := graph.AddLambdaNode("save_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveSession(ctx, in, a.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_session: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_invocation"},
		{"validate_invocation", "load_or_create_session"},
		{"load_or_create_session", "dispatch_tool"},
		{"dispatch_tool", "apply_result"},
		{"apply_result", "persist_intake"},
		{"persist_intake", "publish_event"},
		{"publish_event", "save_session"},
		{"save_session", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("afterhours.handle_tool"))
	if err != nil {
		return nil, fmt.Errorf("compile afterhours graph: %w", err)
	}
	return runner, nil
}
