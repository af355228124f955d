// Package workflow implements the dependency resolver (C8) and execution
// engine (C9) that drive a declarative, YAML-described HTTP workflow, plus
// the configuration model and validation those components rely on.
package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blackcoderx/gimmeflow/pkg/auth"
	"github.com/blackcoderx/gimmeflow/pkg/retry"
	"github.com/blackcoderx/gimmeflow/pkg/secretsource"
)

var (
	nameRe     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)
	stepNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	envVarRe   = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)
)

// Workflow is the validated, top-level description of a pipeline.
type Workflow struct {
	Name       string                 `yaml:"name"`
	APIBase    string                 `yaml:"api_base"`
	Auth       *auth.Descriptor       `yaml:"-"`
	AuthRaw    *AuthConfig            `yaml:"auth,omitempty"`
	Variables  map[string]interface{} `yaml:"variables,omitempty"`
	Steps      []Step                 `yaml:"steps"`
	Schedule   string                 `yaml:"schedule,omitempty"`
	Timezone   string                 `yaml:"timezone,omitempty"`
	Monitoring *MonitoringConfig      `yaml:"monitoring,omitempty"`
}

// AuthConfig is the raw YAML shape for a workflow's auth block; it resolves
// into an auth.Descriptor during Load.
type AuthConfig struct {
	Type         string   `yaml:"type"`
	Token        string   `yaml:"token,omitempty"`
	HeaderName   string   `yaml:"header_name,omitempty"`
	Value        string   `yaml:"value,omitempty"`
	Username     string   `yaml:"username,omitempty"`
	Password     string   `yaml:"password,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// MonitoringConfig is passthrough observability configuration; the engine
// never reads it itself, it only carries it to external observers.
type MonitoringConfig struct {
	WebhookURL        string             `yaml:"webhook_url,omitempty"`
	AlertThresholds    map[string]float64 `yaml:"alert_thresholds,omitempty"`
}

// RetryPolicy mirrors retry.Policy but in its raw, YAML-literal form (delay
// as a string so the decimal-accepting grammar can be applied at parse time).
type RetryPolicy struct {
	Limit   int    `yaml:"limit"`
	Delay   string `yaml:"delay"`
	Backoff string `yaml:"backoff"`
	Timeout string `yaml:"timeout,omitempty"`
}

// Step is one HTTP-driven unit of work within a workflow.
type Step struct {
	Name          string                 `yaml:"name"`
	Endpoint      string                 `yaml:"endpoint"`
	Method        string                 `yaml:"method,omitempty"`
	DependsOn     []string               `yaml:"depends_on,omitempty"`
	ParallelGroup string                 `yaml:"parallel_group,omitempty"`
	MaxParallel   int                    `yaml:"max_parallel,omitempty"`
	Headers       map[string]string      `yaml:"headers,omitempty"`
	Payload       map[string]interface{} `yaml:"payload,omitempty"`
	PayloadTemplate string               `yaml:"payload_template,omitempty"`

	Timeout      string `yaml:"timeout,omitempty"`
	PollInterval string `yaml:"poll_interval,omitempty"`
	PollTimeout  string `yaml:"poll_timeout,omitempty"`

	Retry *RetryPolicy `yaml:"retry,omitempty"`

	ContinueOnError bool `yaml:"continue_on_error,omitempty"`

	DownloadResponse bool              `yaml:"download_response,omitempty"`
	UploadFiles      map[string]string `yaml:"upload_files,omitempty"`

	PollForCompletion bool     `yaml:"poll_for_completion,omitempty"`
	CompletionField   string   `yaml:"completion_field,omitempty"`
	CompletionValues  []string `yaml:"completion_values,omitempty"`
	ResultField       string   `yaml:"result_field,omitempty"`
	PollURLTemplate   string   `yaml:"poll_url_template,omitempty"`

	ExtractFields     map[string]string `yaml:"extract_fields,omitempty"`
	ResponseTransform string            `yaml:"response_transform,omitempty"`

	PayloadSchema map[string]interface{} `yaml:"payload_schema,omitempty"`

	StoreInR2     bool   `yaml:"store_in_r2,omitempty"`
	R2Bucket      string `yaml:"r2_bucket,omitempty"`
	R2KeyTemplate string `yaml:"r2_key_template,omitempty"`
}

// Load parses and validates a Workflow, resolving ${ENV} placeholders in auth
// fields and variables against src. It returns a *ValidationError wrapping
// every problem found; the caller gets back a single aggregate error rather
// than failing on the first issue, which is friendlier for YAML authoring.
func Load(raw []byte, src secretsource.Source, parse func([]byte, interface{}) error) (*Workflow, error) {
	var w Workflow
	if err := parse(raw, &w); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("yaml parse failed: %v", err)}
	}

	if err := w.resolveEnvVars(src); err != nil {
		return nil, err
	}

	if err := w.validate(); err != nil {
		return nil, err
	}

	return &w, nil
}

func (w *Workflow) resolveEnvVars(src secretsource.Source) error {
	resolve := func(s string) (string, error) {
		var outerErr error
		result := envVarRe.ReplaceAllStringFunc(s, func(match string) string {
			name := envVarRe.FindStringSubmatch(match)[1]
			val, ok := src.Get(name)
			if !ok {
				outerErr = fmt.Errorf("unresolved environment placeholder ${%s}", name)
				return match
			}
			return val
		})
		return result, outerErr
	}

	if w.AuthRaw != nil {
		a := w.AuthRaw
		fields := []*string{&a.Token, &a.Value, &a.Username, &a.Password, &a.ClientID, &a.ClientSecret, &a.TokenURL, &a.HeaderName}
		for _, f := range fields {
			if *f == "" {
				continue
			}
			v, err := resolve(*f)
			if err != nil {
				return &ValidationError{Reason: err.Error()}
			}
			*f = v
		}
		for k, v := range a.Headers {
			rv, err := resolve(v)
			if err != nil {
				return &ValidationError{Reason: err.Error()}
			}
			a.Headers[k] = rv
		}
		w.Auth = authFromConfig(a)
	}

	for k, v := range w.Variables {
		if s, ok := v.(string); ok {
			rv, err := resolve(s)
			if err != nil {
				return &ValidationError{Reason: err.Error()}
			}
			w.Variables[k] = rv
		}
	}

	return nil
}

func authFromConfig(a *AuthConfig) *auth.Descriptor {
	return &auth.Descriptor{
		Type:         auth.Type(a.Type),
		Token:        a.Token,
		HeaderName:   a.HeaderName,
		Value:        a.Value,
		Username:     a.Username,
		Password:     a.Password,
		Headers:      a.Headers,
		TokenURL:     a.TokenURL,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Scopes:       a.Scopes,
	}
}

func (w *Workflow) validate() error {
	var problems []string

	if w.Name == "" || !nameRe.MatchString(w.Name) {
		problems = append(problems, fmt.Sprintf("workflow name %q must be 1-63 chars of [A-Za-z0-9_-]", w.Name))
	}
	if !strings.HasPrefix(w.APIBase, "http://") && !strings.HasPrefix(w.APIBase, "https://") {
		problems = append(problems, fmt.Sprintf("api_base %q must start with http:// or https://", w.APIBase))
	}
	if len(w.Steps) == 0 {
		problems = append(problems, "workflow must declare at least one step")
	}

	seen := make(map[string]struct{}, len(w.Steps))
	for _, s := range w.Steps {
		if !stepNameRe.MatchString(s.Name) {
			problems = append(problems, fmt.Sprintf("step name %q must match [A-Za-z0-9_]+", s.Name))
		}
		if _, dup := seen[s.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate step name %q", s.Name))
		}
		seen[s.Name] = struct{}{}

		if !strings.HasPrefix(s.Endpoint, "/") {
			problems = append(problems, fmt.Sprintf("step %q endpoint must start with /", s.Name))
		}
		if s.Payload != nil && s.PayloadTemplate != "" {
			problems = append(problems, fmt.Sprintf("step %q must set payload or payload_template, not both", s.Name))
		}
		if s.MaxParallel < 0 || s.MaxParallel > 10 {
			problems = append(problems, fmt.Sprintf("step %q max_parallel must be 1-10", s.Name))
		}
		if s.Timeout != "" {
			if _, err := retry.ParseIntegerDuration(s.Timeout); err != nil {
				problems = append(problems, fmt.Sprintf("step %q timeout: %v", s.Name, err))
			}
		}
		if s.PollInterval != "" {
			if _, err := retry.ParseIntegerDuration(s.PollInterval); err != nil {
				problems = append(problems, fmt.Sprintf("step %q poll_interval: %v", s.Name, err))
			}
		}
		if s.PollTimeout != "" {
			if _, err := retry.ParseIntegerDuration(s.PollTimeout); err != nil {
				problems = append(problems, fmt.Sprintf("step %q poll_timeout: %v", s.Name, err))
			}
		}
		if s.Retry != nil {
			if s.Retry.Limit < 1 || s.Retry.Limit > 10 {
				problems = append(problems, fmt.Sprintf("step %q retry.limit must be 1-10", s.Name))
			}
			if _, err := retry.ParseRetryDelay(s.Retry.Delay); err != nil {
				problems = append(problems, fmt.Sprintf("step %q retry.delay: %v", s.Name, err))
			}
			switch s.Retry.Backoff {
			case string(retry.Constant), string(retry.Linear), string(retry.Exponential):
			default:
				problems = append(problems, fmt.Sprintf("step %q retry.backoff must be constant, linear, or exponential", s.Name))
			}
		}
	}

	if w.Schedule != "" {
		if err := ValidateCron(w.Schedule); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Reason: strings.Join(problems, "; ")}
	}
	return nil
}

// StepTimeout returns the parsed timeout for a step, or a zero duration if unset.
func (s Step) StepTimeout() time.Duration {
	if s.Timeout == "" {
		return 0
	}
	d, _ := retry.ParseIntegerDuration(s.Timeout)
	return d
}
