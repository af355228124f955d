package httpclient

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// poll treats submissionResponse as a job-submission result, then repeatedly
// GETs the job's poll URL until a terminal status is reached or poll_timeout
// elapses.
func (e *Executor) poll(ctx context.Context, submissionURL string, req Request, submissionResponse interface{}) (interface{}, error) {
	pollURL, err := e.extractPollURL(submissionURL, req.Poll, submissionResponse)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(req.Poll.Timeout)
	interval := req.Poll.Interval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		if time.Now().After(deadline) {
			return nil, &TimeoutError{Phase: "poll"}
		}

		result, _, err := e.doOnce(ctx, pollURL, Request{Method: "GET", Headers: req.Headers}, e.composeHeaders(Request{Headers: req.Headers}), nil)
		if err != nil {
			return nil, err
		}

		status, terminal, failed := classifyPollStatus(result.Value, req.Poll)
		if failed {
			return nil, fmt.Errorf("httpclient: polled job reached failure status %q", status)
		}
		if terminal {
			if req.Poll.ResultField != "" {
				if v, ok := getNestedField(result.Value, req.Poll.ResultField); ok {
					return v, nil
				}
			}
			return result.Value, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

var pollFailureValues = map[string]struct{}{
	"failed":    {},
	"error":     {},
	"cancelled": {},
}

func classifyPollStatus(response interface{}, cfg *PollConfig) (status string, terminal bool, failed bool) {
	val, ok := getNestedField(response, cfg.CompletionField)
	if !ok {
		return "", false, false
	}
	s, ok := val.(string)
	if !ok {
		return "", false, false
	}
	for _, want := range cfg.CompletionValues {
		if s == want {
			return s, true, false
		}
	}
	if _, isFailure := pollFailureValues[strings.ToLower(s)]; isFailure {
		return s, true, true
	}
	return s, false, false
}

// extractPollURL recognizes a Replicate-style {"urls":{"get": "..."}} shape
// first, falling back to a configured poll_url_template formatted with the
// submission's "id" field.
func (e *Executor) extractPollURL(submissionURL string, cfg *PollConfig, response interface{}) (string, error) {
	if urls, ok := getNestedField(response, "urls.get"); ok {
		if s, ok := urls.(string); ok && s != "" {
			return s, nil
		}
	}

	id, ok := getNestedField(response, "id")
	if !ok {
		return "", fmt.Errorf("httpclient: cannot determine poll URL (no urls.get and no id field)")
	}
	idStr := fmt.Sprintf("%v", id)

	if cfg.PollURLTemplate != "" {
		return strings.ReplaceAll(cfg.PollURLTemplate, "{job_id}", idStr), nil
	}

	base := strings.TrimRight(e.BaseURL, "/")
	return base + "/jobs/" + idStr, nil
}
