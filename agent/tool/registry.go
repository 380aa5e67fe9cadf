// Package tool maps tool names to validated handlers. Dispatch enforces the
// core safety property: a tool can only run while the session sits on a step
// that authorizes it, and only with arguments that satisfy its schema.
package tool

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/wireheat/afterhours/agent/contract"
	statex "github.com/wireheat/afterhours/agent/state"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
)

// Handler executes one tool against validated args and a read-only snapshot of
// the session's global data. Handlers must be side-effect-free: everything
// they want applied goes in the returned StepResult.
type Handler func(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error)

type toolSpec struct {
	info    *schema.ToolInfo
	params  map[string]*schema.ParameterInfo
	handler Handler
}

type Registry struct {
	specs map[string]*toolSpec
	order []string
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*toolSpec)}
}

// Register adds a tool at process start. Duplicate names are an authoring bug.
func (r *Registry) Register(name, desc string, params map[string]*schema.ParameterInfo, h Handler) error {
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if h == nil {
		return fmt.Errorf("tool %s has no handler", name)
	}
	if _, exists := r.specs[name]; exists {
		return fmt.Errorf("tool %s registered twice", name)
	}

	info := &schema.ToolInfo{Name: name, Desc: desc}
	if len(params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}
	r.specs[name] = &toolSpec{info: info, params: params, handler: h}
	r.order = append(r.order, name)
	return nil
}

// Names returns the registered tool set, used for workflow validation.
func (r *Registry) Names() map[string]bool {
	out := make(map[string]bool, len(r.specs))
	for name := range r.specs {
		out[name] = true
	}
	return out
}

// Infos returns tool descriptions in registration order for the reasoning
// layer's function-calling surface.
func (r *Registry) Infos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name].info)
	}
	return out
}

// Invoke runs one tool for the given step. Authorization is checked before
// anything else: a tool outside the step's set fails regardless of arguments.
func (r *Registry) Invoke(
	ctx context.Context,
	step *workflowx.Step,
	data statex.GlobalData,
	inv contractx.ToolInvocation,
) (contractx.StepResult, error) {
	if step == nil {
		return contractx.StepResult{}, fmt.Errorf("%w: no current step", contractx.ErrValidation)
	}
	if !step.Allows(inv.Tool) {
		return contractx.StepResult{}, fmt.Errorf("%w: %s at step %s", contractx.ErrUnauthorizedTool, inv.Tool, step.Name)
	}

	spec, ok := r.specs[inv.Tool]
	if !ok {
		// Load-time validation guarantees step tools exist, so this is a wiring bug.
		return contractx.StepResult{}, fmt.Errorf("%w: tool %s is authorized but unregistered", contractx.ErrValidation, inv.Tool)
	}

	if err := validateArgs(spec.params, inv.Args); err != nil {
		return contractx.StepResult{}, err
	}
	return spec.handler(ctx, inv.Args, data)
}

func validateArgs(params map[string]*schema.ParameterInfo, args map[string]any) error {
	for name, p := range params {
		val, present := args[name]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: missing required argument %q", contractx.ErrArgumentValidation, name)
			}
			continue
		}
		if err := validateValue(name, p, val); err != nil {
			return err
		}
	}

	unknown := make([]string, 0)
	for name := range args {
		if _, declared := params[name]; !declared {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown arguments %v", contractx.ErrArgumentValidation, unknown)
	}
	return nil
}

func validateValue(name string, p *schema.ParameterInfo, val any) error {
	switch p.Type {
	case schema.String:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: argument %q must be a string", contractx.ErrArgumentValidation, name)
		}
		if len(p.Enum) > 0 {
			for _, allowed := range p.Enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("%w: argument %q must be one of %v", contractx.ErrArgumentValidation, name, p.Enum)
		}
	case schema.Boolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("%w: argument %q must be a boolean", contractx.ErrArgumentValidation, name)
		}
	case schema.Number:
		if !isNumeric(val) {
			return fmt.Errorf("%w: argument %q must be a number", contractx.ErrArgumentValidation, name)
		}
	case schema.Integer:
		if !isIntegral(val) {
			return fmt.Errorf("%w: argument %q must be an integer", contractx.ErrArgumentValidation, name)
		}
	default:
		// Object/array params are not used by this workflow.
	}
	return nil
}

func isNumeric(val any) bool {
	switch val.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

func isIntegral(val any) bool {
	switch v := val.(type) {
	case int, int32, int64:
		return true
	case float64:
		return v == math.Trunc(v)
	}
	return false
}
