package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/blackcoderx/gimmeflow/pkg/auth"
	"github.com/blackcoderx/gimmeflow/pkg/httpclient"
	"github.com/blackcoderx/gimmeflow/pkg/retry"
	"github.com/blackcoderx/gimmeflow/pkg/secretsafe"
	"github.com/blackcoderx/gimmeflow/pkg/template"
)

// parallelGroupWallClockCap bounds how long a single parallel group's gather
// may take before the engine cancels its outstanding steps.
const parallelGroupWallClockCap = 300 * time.Second

// Engine drives a Workflow's phases, tracking step results and the
// accumulated execution context, and dispatching each step through an
// httpclient.Executor.
type Engine struct {
	Pool        *httpclient.Pool
	ObjectStore ObjectStore
	Logger      *secretsafe.Logger
}

// NewEngine wires an Engine to a connection pool. store may be nil, in
// which case NopObjectStore is used.
func NewEngine(pool *httpclient.Pool, store ObjectStore, logger *secretsafe.Logger) *Engine {
	if store == nil {
		store = NopObjectStore{}
	}
	return &Engine{Pool: pool, ObjectStore: store, Logger: logger}
}

// Execute runs w to completion (or to its first fatal abort) and returns the
// accumulated WorkflowResult. ctx cancellation propagates to in-flight HTTP
// calls, retries, and polls.
func (e *Engine) Execute(ctx context.Context, w *Workflow) (*WorkflowResult, error) {
	start := time.Now()

	defaultHeaders, err := e.resolveAuthHeaders(ctx, w.Auth)
	if err != nil {
		return nil, err
	}

	phases, err := Resolve(w.Steps)
	if err != nil {
		return nil, err
	}

	execCtx := NewExecutionContext(w.Variables)
	result := &WorkflowResult{
		WorkflowName: w.Name,
		Success:      true,
		StepResults:  make(map[string]StepResult, len(w.Steps)),
	}

	executor := httpclient.NewExecutor(w.APIBase, defaultHeaders, e.Pool, e.Logger)

	e.logInfow("workflow started", "workflow", w.Name, "phases", len(phases))

	for phaseIndex, phase := range phases {
		aborted, err := e.runPhase(ctx, phaseIndex, phase, executor, execCtx, result)
		if aborted {
			result.Success = false
			if err != nil {
				result.Error = secretsafe.Default.MaskString(err.Error())
			}
			e.logCriticalw("workflow aborted", "workflow", w.Name, "phase", phaseIndex, "error", result.Error)
			result.TotalExecutionTime = time.Since(start)
			return result, nil
		}
	}

	result.TotalExecutionTime = time.Since(start)
	e.logInfow("workflow completed", "workflow", w.Name, "duration", result.TotalExecutionTime.String())
	return result, nil
}

func (e *Engine) logInfow(msg string, kv ...interface{}) {
	if e.Logger != nil {
		e.Logger.Infow(msg, kv...)
	}
}

func (e *Engine) logErrorw(msg string, kv ...interface{}) {
	if e.Logger != nil {
		e.Logger.Errorw(msg, kv...)
	}
}

func (e *Engine) logCriticalw(msg string, kv ...interface{}) {
	if e.Logger != nil {
		e.Logger.Criticalw(msg, kv...)
	}
}

func (e *Engine) resolveAuthHeaders(ctx context.Context, desc *auth.Descriptor) (map[string]string, error) {
	if desc == nil {
		return map[string]string{}, nil
	}
	resolved := *desc
	if desc.Type == auth.OAuth2ClientCredentials {
		var err error
		resolved, err = auth.ResolveOAuth2Token(ctx, *desc)
		if err != nil {
			return nil, err
		}
		resolved.Type = auth.Bearer
	}
	headers, err := auth.Apply(resolved, http.Header{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(headers))
	for k := range headers {
		out[k] = headers.Get(k)
	}
	return out, nil
}

// runPhase executes every step in a phase and reports whether the workflow
// must abort. Sequential steps (no parallel_group) run one at a time, in
// slice order; steps sharing a parallel_group run concurrently, bounded by
// max_parallel and the 300-second group-wide wall-clock cap.
func (e *Engine) runPhase(ctx context.Context, phaseIndex int, phase Phase, executor *httpclient.Executor, execCtx *ExecutionContext, result *WorkflowResult) (bool, error) {
	groups := make(map[string][]Step)
	var sequential []Step
	for _, s := range phase.Steps {
		if s.ParallelGroup != "" {
			groups[s.ParallelGroup] = append(groups[s.ParallelGroup], s)
		} else {
			sequential = append(sequential, s)
		}
	}

	for _, s := range sequential {
		sr := e.runStep(ctx, phaseIndex, s, executor, execCtx)
		result.StepResults[s.Name] = sr
		if !sr.Success && !s.ContinueOnError {
			return true, fmt.Errorf("step %q failed: %s", s.Name, sr.Error)
		}
	}

	for _, members := range groups {
		aborted, err := e.runParallelGroup(ctx, phaseIndex, members, executor, execCtx, result)
		if aborted {
			return true, err
		}
	}

	return false, nil
}

func (e *Engine) runParallelGroup(ctx context.Context, phaseIndex int, members []Step, executor *httpclient.Executor, execCtx *ExecutionContext, result *WorkflowResult) (bool, error) {
	maxParallel := len(members)
	for _, m := range members {
		if m.MaxParallel > 0 && m.MaxParallel < maxParallel {
			maxParallel = m.MaxParallel
		}
	}

	groupCtx, cancel := context.WithTimeout(ctx, parallelGroupWallClockCap)
	defer cancel()

	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup
	results := make([]StepResult, len(members))

	for i, s := range members {
		wg.Add(1)
		go func(i int, s Step) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.runStep(groupCtx, phaseIndex, s, executor, execCtx)
		}(i, s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-groupCtx.Done():
		<-done // tasks observe ctx cancellation and unwind; wait for settlement
		return true, &ExecutionError{Reason: "parallel execution timed out after 5 minutes"}
	}

	var firstFatal error
	for i, s := range members {
		result.StepResults[s.Name] = results[i]
		if !results[i].Success && !s.ContinueOnError && firstFatal == nil {
			firstFatal = fmt.Errorf("step %q failed: %s", s.Name, results[i].Error)
		}
	}
	if firstFatal != nil {
		return true, firstFatal
	}
	return false, nil
}

// runStep renders the step's payload against the current context, executes
// it, and returns its StepResult. On success the context is extended with
// the effective response under the step's name; failures never touch the
// context.
func (e *Engine) runStep(ctx context.Context, phaseIndex int, s Step, executor *httpclient.Executor, execCtx *ExecutionContext) StepResult {
	start := time.Now()

	req, err := e.buildRequest(s, execCtx)
	if err != nil {
		return StepResult{
			Name:           s.Name,
			Success:        false,
			Error:          secretsafe.Default.MaskString(err.Error()),
			ExecutionTime:  time.Since(start),
			ExecutionOrder: phaseIndex,
		}
	}

	res, err := executor.Execute(ctx, *req)
	if err != nil {
		var circuitOpen *httpclient.CircuitOpenError
		if errors.As(err, &circuitOpen) {
			e.logCriticalw("circuit open, call refused", "step", s.Name, "service", circuitOpen.Service)
		} else {
			e.logErrorw("step failed", "step", s.Name, "error", err.Error())
		}
		return StepResult{
			Name:           s.Name,
			Success:        false,
			Error:          secretsafe.Default.MaskString(err.Error()),
			ExecutionTime:  time.Since(start),
			ExecutionOrder: phaseIndex,
		}
	}

	effective := res.Value
	if s.DownloadResponse {
		effective = map[string]interface{}{"file_path": res.FilePath}
		if s.StoreInR2 {
			url, uerr := e.ObjectStore.Upload(ctx, res.FilePath, s.R2Bucket, s.R2KeyTemplate)
			if uerr != nil {
				return StepResult{
					Name:           s.Name,
					Success:        false,
					Error:          secretsafe.Default.MaskString(uerr.Error()),
					ExecutionTime:  time.Since(start),
					ExecutionOrder: phaseIndex,
				}
			}
			effective = map[string]interface{}{"file_path": res.FilePath, "object_url": url}
		}
	}

	execCtx.Set(s.Name, effective)

	return StepResult{
		Name:           s.Name,
		Success:        true,
		ResponseData:   effective,
		ExecutionTime:  time.Since(start),
		RetryCount:     res.RetryCount,
		ExecutionOrder: phaseIndex,
	}
}

// buildRequest translates a Step plus the current context into an
// httpclient.Request: renders payload_template, parses duration literals,
// and carries over retry/poll/extract/transform configuration.
func (e *Engine) buildRequest(s Step, execCtx *ExecutionContext) (*httpclient.Request, error) {
	req := &httpclient.Request{
		Endpoint:          s.Endpoint,
		Method:            methodOrDefault(s.Method),
		Headers:           s.Headers,
		DownloadResponse:  s.DownloadResponse,
		UploadFiles:       s.UploadFiles,
		ExtractFields:     s.ExtractFields,
		ResponseTransform: s.ResponseTransform,
		Context:           execCtx.Snapshot(),
	}

	if s.Payload != nil {
		req.Payload = s.Payload
	} else if s.PayloadTemplate != "" {
		rendered, err := template.Render(s.PayloadTemplate, execCtx.Snapshot())
		if err != nil {
			return nil, &TemplateError{Step: s.Name, Reason: err.Error()}
		}
		text, ok := rendered.(string)
		if !ok {
			req.Payload = rendered
		} else {
			var parsed interface{}
			if err := json.Unmarshal([]byte(text), &parsed); err != nil {
				return nil, &ParseError{Step: s.Name, Reason: err.Error()}
			}
			req.Payload = parsed
		}
	}

	if len(s.PayloadSchema) > 0 {
		if err := validatePayloadSchema(s.Name, s.PayloadSchema, req.Payload); err != nil {
			return nil, err
		}
	}

	if s.Timeout != "" {
		d, err := retry.ParseIntegerDuration(s.Timeout)
		if err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		req.Timeout = d
	}

	if s.Retry != nil {
		delay, err := retry.ParseRetryDelay(s.Retry.Delay)
		if err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		req.Retry = &retry.Policy{
			Limit:   s.Retry.Limit,
			Delay:   delay,
			Backoff: retry.Backoff(s.Retry.Backoff),
		}
		if s.Retry.Timeout != "" {
			d, err := retry.ParseRetryDelay(s.Retry.Timeout)
			if err != nil {
				return nil, &ValidationError{Reason: err.Error()}
			}
			req.Retry.Timeout = d
		}
	}

	if s.PollForCompletion {
		interval, err := retry.ParseIntegerDuration(s.PollInterval)
		if err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		pollTimeout, err := retry.ParseIntegerDuration(s.PollTimeout)
		if err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		req.Poll = &httpclient.PollConfig{
			Interval:         interval,
			Timeout:          pollTimeout,
			CompletionField:  s.CompletionField,
			CompletionValues: s.CompletionValues,
			ResultField:      s.ResultField,
			PollURLTemplate:  s.PollURLTemplate,
		}
	}

	return req, nil
}

// validatePayloadSchema checks a rendered payload against a step's declared
// JSON schema, raising a ValidationError that names every violation rather
// than just the first so a workflow author sees the whole picture at once.
func validatePayloadSchema(stepName string, schema map[string]interface{}, payload interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	docLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("step %q payload_schema: %v", stepName, err)}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Reason: fmt.Sprintf("step %q payload failed schema validation: %s", stepName, strings.Join(problems, "; "))}
}

func methodOrDefault(m string) string {
	if m == "" {
		return "POST"
	}
	return m
}
