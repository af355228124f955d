package workflow

import "fmt"

// ValidationError reports a workflow that failed config-load validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "workflow: validation error: " + e.Reason }

// DependencyError reports a missing or unresolvable depends_on reference.
type DependencyError struct {
	Reason string
}

func (e *DependencyError) Error() string { return "workflow: dependency error: " + e.Reason }

// CircularDependencyError reports a cycle found in depends_on.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("workflow: circular dependency: %v", e.Cycle)
}

// TemplateError reports a render failure or a missing path in a template.
type TemplateError struct {
	Step   string
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("workflow: template error in step %q: %s", e.Step, e.Reason)
}

// ExecutionError reports an engine-level abort not attributable to a single
// typed step failure (parallel-group timeout, unrecoverable internal state).
type ExecutionError struct {
	Reason string
}

func (e *ExecutionError) Error() string { return "workflow: execution error: " + e.Reason }

// ParseError reports a rendered payload_template that failed to parse as
// JSON — distinct from a TemplateError, which is a rendering-time failure
// (bad syntax, missing path).
type ParseError struct {
	Step   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("workflow: parse error in step %q: %s", e.Step, e.Reason)
}
