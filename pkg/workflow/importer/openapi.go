// Package importer builds best-effort Workflow skeletons from an external API
// description, one step per discovered operation. Generated steps are never
// directly runnable — payload_template is left as a TODO placeholder for the
// author to fill in — but dependency ordering, endpoint, and method are
// already correct.
package importer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/blackcoderx/gimmeflow/pkg/workflow"
)

var nonWordRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// OpenAPI converts an OpenAPI 3.x document into a skeleton Workflow with one
// step per path/method operation, in path-then-method declaration order.
func OpenAPI(doc []byte, workflowName, apiBase string) (*workflow.Workflow, error) {
	document, err := libopenapi.NewDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("importer: failed to parse OpenAPI document: %w", err)
	}

	model, err := document.BuildV3Model()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to build OpenAPI v3 model: %w", err)
	}

	w := &workflow.Workflow{
		Name:    workflowName,
		APIBase: apiBase,
	}

	var prev string
	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()

		ops := []struct {
			method string
			op     *v3.Operation
		}{
			{"GET", item.Get},
			{"POST", item.Post},
			{"PUT", item.Put},
			{"PATCH", item.Patch},
			{"DELETE", item.Delete},
		}

		for _, o := range ops {
			if o.op == nil {
				continue
			}

			name := stepNameFor(o.method, path, o.op.OperationId)
			step := workflow.Step{
				Name:     name,
				Endpoint: path,
				Method:   o.method,
			}
			if o.op.RequestBody != nil {
				step.PayloadTemplate = fmt.Sprintf(`{"__todo__": "fill in payload for %s %s"}`, o.method, path)
			}
			if prev != "" {
				step.DependsOn = []string{prev}
			}
			w.Steps = append(w.Steps, step)
			prev = name
		}
	}

	return w, nil
}

func stepNameFor(method, path, operationID string) string {
	if operationID != "" {
		return sanitizeStepName(operationID)
	}
	return sanitizeStepName(strings.ToLower(method) + "_" + path)
}

func sanitizeStepName(s string) string {
	out := nonWordRe.ReplaceAllString(s, "_")
	out = strings.Trim(out, "_")
	if out == "" {
		return "step"
	}
	return out
}
