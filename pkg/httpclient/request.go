package httpclient

import (
	"time"

	"github.com/blackcoderx/gimmeflow/pkg/retry"
)

// PollConfig describes how to poll an async job to completion.
type PollConfig struct {
	Interval         time.Duration
	Timeout          time.Duration
	CompletionField  string
	CompletionValues []string
	ResultField      string
	// PollURLTemplate, when set, contains "{job_id}" and is formatted with
	// the submission response's "id" field. When unset, the executor looks
	// for response.urls.get (Replicate-style) first.
	PollURLTemplate string
}

// Request is the single-request contract the workflow engine's executor
// consumes. Payload is already-rendered (template substitution happens
// upstream, in the engine, via pkg/template); Request only serializes it.
type Request struct {
	Endpoint string
	Method   string
	Headers  map[string]string
	Payload  interface{} // nil, or a JSON-shaped value (map/slice/scalar)

	Timeout time.Duration

	DownloadResponse bool
	UploadFiles      map[string]string // field name -> local file path

	Poll *PollConfig // nil means no polling

	ExtractFields map[string]string // output key -> dotted path into response

	// ResponseTransform, when non-empty, is rendered (via pkg/template)
	// against {"response": <response>, ...Context} before the result is
	// returned, so a transform can reference earlier steps as well as the
	// response it's transforming.
	ResponseTransform string

	// Context is the workflow's accumulated execution context (steps, vars)
	// at the time this request was built, merged alongside "response" when
	// rendering ResponseTransform.
	Context map[string]interface{}

	Retry *retry.Policy

	// ServiceName, when set, routes the call through the pool's circuit
	// breaker for that service.
	ServiceName string
}

// Result is what Execute returns: exactly one of Value or FilePath is set,
// chosen by DownloadResponse.
type Result struct {
	Value      interface{}
	FilePath   string
	RetryCount int
}
