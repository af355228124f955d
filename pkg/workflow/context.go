package workflow

import "time"

// StepResult is the observable outcome of one step.
type StepResult struct {
	Name           string
	Success        bool
	ResponseData   interface{}
	Error          string
	ExecutionTime  time.Duration
	RetryCount     int
	ExecutionOrder int
}

// WorkflowResult is the outcome of one engine run.
type WorkflowResult struct {
	WorkflowName        string
	Success              bool
	StepResults          map[string]StepResult
	TotalExecutionTime   time.Duration
	Error                string
}

// ExecutionContext accumulates workflow variables and step results for
// template rendering. It belongs to exactly one run; it is never shared
// across concurrent Engine.Execute calls.
type ExecutionContext struct {
	vars map[string]interface{}
}

// NewExecutionContext seeds a context with a workflow's initial variables.
func NewExecutionContext(variables map[string]interface{}) *ExecutionContext {
	ctx := &ExecutionContext{vars: make(map[string]interface{}, len(variables)+1)}
	for k, v := range variables {
		ctx.vars[k] = v
	}
	return ctx
}

// Set records step name's effective response for future template rendering.
func (c *ExecutionContext) Set(stepName string, value interface{}) {
	c.vars[stepName] = value
}

// Snapshot returns the map a template renders against: {"vars": {...},
// "steps": {...}, plus each step name also available at the top level for
// the {{ step.field }} shorthand the example workflows use}.
func (c *ExecutionContext) Snapshot() map[string]interface{} {
	steps := make(map[string]interface{}, len(c.vars))
	out := make(map[string]interface{}, len(c.vars)+2)
	for k, v := range c.vars {
		steps[k] = v
		out[k] = v
	}
	out["steps"] = steps
	out["vars"] = c.vars
	return out
}
