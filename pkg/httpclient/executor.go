package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/blackcoderx/gimmeflow/pkg/breaker"
	"github.com/blackcoderx/gimmeflow/pkg/retry"
	"github.com/blackcoderx/gimmeflow/pkg/secretsafe"
	"github.com/blackcoderx/gimmeflow/pkg/template"
)

// Executor runs single requests against one workflow's api_base, composing
// headers, applying retry/polling, and routing calls through the pool's
// connection reuse and circuit breaking.
type Executor struct {
	BaseURL        string
	DefaultHeaders map[string]string // includes the resolved auth header(s)
	Pool           *Pool
	Logger         *secretsafe.Logger
}

// NewExecutor wires an Executor to an existing pool.
func NewExecutor(baseURL string, defaultHeaders map[string]string, pool *Pool, logger *secretsafe.Logger) *Executor {
	return &Executor{BaseURL: baseURL, DefaultHeaders: defaultHeaders, Pool: pool, Logger: logger}
}

// Execute implements the C7 contract: compose URL and headers, encode the
// body, submit through the pool (with retry/circuit-breaking), then apply
// download/poll/extract/transform post-processing in that order.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	fullURL, err := e.joinURL(req.Endpoint)
	if err != nil {
		return nil, err
	}

	if req.ServiceName == "" {
		req.ServiceName = serviceNameFor(e.BaseURL)
	}

	headers := e.composeHeaders(req)

	body, contentType, err := e.encodeBody(req, headers)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}

	result, retryCount, err := e.submitWithRetry(ctx, fullURL, req, headers, body)
	if err != nil {
		return nil, err
	}
	result.RetryCount = retryCount

	if req.DownloadResponse {
		return result, nil
	}

	if req.Poll != nil {
		polled, err := e.poll(ctx, fullURL, req, result.Value)
		if err != nil {
			return nil, err
		}
		result.Value = polled
	}

	if len(req.ExtractFields) > 0 {
		result.Value = extractFields(req.ExtractFields, result.Value)
	}

	if req.ResponseTransform != "" {
		transformed, err := e.transform(req.ResponseTransform, result.Value, req.Context)
		if err != nil {
			return nil, err
		}
		result.Value = transformed
	}

	return result, nil
}

// serviceNameFor derives the circuit breaker's key from a base URL's host,
// so every workflow calling the same downstream API shares one breaker state.
func serviceNameFor(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

func (e *Executor) joinURL(endpoint string) (string, error) {
	base := strings.TrimRight(e.BaseURL, "/")
	if !strings.HasPrefix(endpoint, "/") {
		return "", fmt.Errorf("httpclient: endpoint %q must start with /", endpoint)
	}
	return base + endpoint, nil
}

func (e *Executor) composeHeaders(req Request) map[string]string {
	out := make(map[string]string, len(e.DefaultHeaders)+len(req.Headers))
	for k, v := range e.DefaultHeaders {
		out[k] = v
	}
	for k, v := range req.Headers {
		out[k] = v
	}
	return out
}

func (e *Executor) encodeBody(req Request, headers map[string]string) ([]byte, string, error) {
	if len(req.UploadFiles) > 0 {
		return e.encodeMultipart(req)
	}
	if req.Payload == nil {
		return nil, "", nil
	}
	if _, set := headers["Content-Type"]; set {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, "", fmt.Errorf("httpclient: failed to encode payload: %w", err)
		}
		return b, "", nil
	}
	b, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("httpclient: failed to encode payload: %w", err)
	}
	return b, "application/json", nil
}

func (e *Executor) encodeMultipart(req Request) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for field, path := range req.UploadFiles {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("httpclient: failed to open upload file %q: %w", path, err)
		}
		part, err := w.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("httpclient: failed to create form file %q: %w", field, err)
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return nil, "", fmt.Errorf("httpclient: failed to stream upload file %q: %w", path, err)
		}
		f.Close()
	}

	if payloadMap, ok := req.Payload.(map[string]interface{}); ok {
		for k, v := range payloadMap {
			if err := w.WriteField(k, stringifyFormValue(v)); err != nil {
				return nil, "", fmt.Errorf("httpclient: failed to write form field %q: %w", k, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("httpclient: failed to close multipart writer: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func stringifyFormValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// submitWithRetry runs the request, retrying per req.Retry when the response
// classifies as retriable.
func (e *Executor) submitWithRetry(ctx context.Context, fullURL string, req Request, headers map[string]string, body []byte) (*Result, int, error) {
	limit := 0
	var policy retry.Policy
	if req.Retry != nil {
		policy = *req.Retry
		limit = policy.Limit
	}

	var lastErr error
	for attempt := 0; attempt <= limit; attempt++ {
		if attempt > 0 {
			d := retry.Delay(policy.Delay, policy.Backoff, attempt)
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, attempt, ctx.Err()
			case <-timer.C:
			}
		}

		result, statusCode, err := e.doOnce(ctx, fullURL, req, headers, body, policy.Timeout)
		if err == nil {
			return result, attempt, nil
		}

		class := retry.Classify(err, statusCode)
		lastErr = err

		if class != retry.Retriable || attempt == limit {
			if req.Retry != nil && attempt == limit && class == retry.Retriable {
				return nil, attempt, &RetryExhaustedError{Attempts: attempt + 1, LastErr: lastErr}
			}
			return nil, attempt, lastErr
		}
	}
	return nil, limit, lastErr
}

// doOnce issues a single HTTP attempt, optionally through the pool's circuit
// breaker for req.ServiceName, and classifies the outcome into a typed
// result/error pair. attemptTimeout, when non-zero, is the retry policy's
// per-attempt timeout and takes precedence over req.Timeout for this attempt.
func (e *Executor) doOnce(ctx context.Context, fullURL string, req Request, headers map[string]string, body []byte, attemptTimeout time.Duration) (*Result, int, error) {
	runOnce := func(ctx context.Context) (interface{}, error) {
		return e.rawDo(ctx, fullURL, req, headers, body, attemptTimeout)
	}

	var raw interface{}
	var err error
	if req.ServiceName != "" && e.Pool.Breaker != nil {
		raw, err = e.Pool.Breaker.Call(ctx, req.ServiceName, runOnce)
		if err != nil {
			if errors.Is(err, breaker.ErrOpen) {
				return nil, 0, &CircuitOpenError{Service: req.ServiceName}
			}
			return nil, 0, err
		}
	} else {
		raw, err = runOnce(ctx)
		if err != nil {
			return nil, 0, err
		}
	}

	dr := raw.(*doResult)

	switch {
	case dr.statusCode == 401:
		return nil, dr.statusCode, &AuthenticationError{StatusCode: dr.statusCode, Body: dr.bodyStr}
	case dr.statusCode >= 400 && dr.statusCode < 500:
		return nil, dr.statusCode, &ClientError{StatusCode: dr.statusCode, Body: dr.bodyStr}
	case dr.statusCode >= 500:
		return nil, dr.statusCode, &ServerError{StatusCode: dr.statusCode, Body: dr.bodyStr}
	}

	if req.DownloadResponse {
		path, werr := writeTempFile(dr.bodyBytes)
		if werr != nil {
			return nil, dr.statusCode, werr
		}
		return &Result{FilePath: path}, dr.statusCode, nil
	}

	val := parseResponse(dr.contentType, dr.bodyStr)
	return &Result{Value: val}, dr.statusCode, nil
}

type doResult struct {
	statusCode  int
	bodyBytes   []byte
	bodyStr     string
	contentType string
}

func (e *Executor) rawDo(ctx context.Context, fullURL string, req Request, headers map[string]string, body []byte, attemptTimeout time.Duration) (*doResult, error) {
	client, err := e.Pool.Client(fullURL)
	if err != nil {
		return nil, err
	}

	fReq := fasthttp.AcquireRequest()
	fResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(fReq)
	defer fasthttp.ReleaseResponse(fResp)

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	fReq.SetRequestURI(fullURL)
	fReq.Header.SetMethod(method)
	for k, v := range headers {
		fReq.Header.Set(k, v)
	}
	if len(body) > 0 {
		fReq.SetBody(body)
	}

	timeout := req.Timeout
	if attemptTimeout > 0 {
		timeout = attemptTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if err := client.DoTimeout(fReq, fResp, timeout); err != nil {
		if err == fasthttp.ErrTimeout {
			return nil, &TimeoutError{Phase: "request"}
		}
		return nil, &TransportError{Cause: err}
	}

	bodyBytes := append([]byte(nil), fResp.Body()...)
	return &doResult{
		statusCode:  fResp.StatusCode(),
		bodyBytes:   bodyBytes,
		bodyStr:     string(bodyBytes),
		contentType: string(fResp.Header.ContentType()),
	}, nil
}

func parseResponse(contentType, body string) interface{} {
	trimmed := strings.TrimSpace(body)
	looksJSON := strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
	if strings.Contains(contentType, "json") || looksJSON {
		var v interface{}
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return body
}

func writeTempFile(data []byte) (string, error) {
	f, err := os.CreateTemp("", "gimmeflow-download-*")
	if err != nil {
		return "", fmt.Errorf("httpclient: failed to create temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("httpclient: failed to write temp file: %w", err)
	}
	return f.Name(), nil
}

// extractFields replaces response with a map of configured output keys,
// omitting keys whose path doesn't resolve.
func extractFields(fields map[string]string, response interface{}) interface{} {
	out := make(map[string]interface{}, len(fields))
	for outKey, path := range fields {
		if v, ok := getNestedField(response, path); ok {
			out[outKey] = v
		}
	}
	return out
}

// getNestedField walks a dotted path (with optional numeric list indices)
// through a JSON-shaped value.
func getNestedField(v interface{}, path string) (interface{}, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			val, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = val
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func (e *Executor) transform(tmpl string, response interface{}, execContext map[string]interface{}) (interface{}, error) {
	ctx := make(map[string]interface{}, len(execContext)+1)
	for k, v := range execContext {
		ctx[k] = v
	}
	ctx["response"] = response
	rendered, err := template.Render(tmpl, ctx)
	if err != nil {
		return nil, fmt.Errorf("httpclient: response_transform failed: %w", err)
	}
	if s, ok := rendered.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var parsed interface{}
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return parsed, nil
			}
		}
		return s, nil
	}
	return rendered, nil
}
