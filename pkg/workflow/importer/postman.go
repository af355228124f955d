package importer

import (
	"fmt"
	"strings"

	postman "github.com/rbretecher/go-postman-collection"

	"github.com/blackcoderx/gimmeflow/pkg/workflow"
)

// PostmanCollection converts a Postman Collection v2.1 export into a skeleton
// Workflow, walking folders recursively and emitting one step per request in
// collection order, chained as a sequential dependency chain.
func PostmanCollection(doc []byte, workflowName, apiBase string) (*workflow.Workflow, error) {
	collection, err := postman.ParseCollection(strings.NewReader(string(doc)))
	if err != nil {
		return nil, fmt.Errorf("importer: failed to parse postman collection: %w", err)
	}

	w := &workflow.Workflow{
		Name:    workflowName,
		APIBase: apiBase,
	}

	var prev string
	walkPostmanItems(collection.Items, w, &prev)

	return w, nil
}

func walkPostmanItems(items []*postman.Items, w *workflow.Workflow, prev *string) {
	for _, item := range items {
		if item.IsGroup() {
			walkPostmanItems(item.Items, w, prev)
			continue
		}
		if item.Request == nil {
			continue
		}

		req := item.Request
		name := sanitizeStepName(item.Name)

		step := workflow.Step{
			Name:   name,
			Method: string(req.Method),
		}
		if req.URL != nil {
			step.Endpoint = postmanPath(req.URL.Raw)
		}
		if req.Body != nil {
			step.PayloadTemplate = fmt.Sprintf(`{"__todo__": "fill in payload for %s"}`, item.Name)
		}
		if *prev != "" {
			step.DependsOn = []string{*prev}
		}

		w.Steps = append(w.Steps, step)
		*prev = name
	}
}

// postmanPath strips scheme and host from a raw Postman URL, leaving a
// path the workflow's api_base can be joined against. Postman collections
// often hardcode {{base_url}}-style variables in the host; those are left
// for the importing author to resolve, since the collection's own variable
// scope isn't carried into the workflow.
func postmanPath(raw string) string {
	if idx := strings.Index(raw, "://"); idx != -1 {
		raw = raw[idx+3:]
	}
	if idx := strings.Index(raw, "/"); idx != -1 {
		return raw[idx:]
	}
	return "/"
}
