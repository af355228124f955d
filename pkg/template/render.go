// Package template renders {{path.to.value}} placeholders embedded in step
// payloads, URLs and headers against the results of previously executed
// workflow steps. It walks a JSON-shaped value (map/slice/scalar) rather than
// operating on a single string, so placeholders can appear anywhere inside a
// payload and a placeholder that is the entire value keeps its native type
// (number, bool, object) instead of being stringified.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// placeholder matches {{ path.to.value }} with optional surrounding whitespace
// and an optional pipe filter, e.g. {{ steps.fetch.body | tojson }}.
var placeholderBody = func(s string) (path string, filter string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return "", "", false
	}
	inner := strings.TrimSpace(s[2 : len(s)-2])
	if idx := strings.Index(inner, "|"); idx >= 0 {
		return strings.TrimSpace(inner[:idx]), strings.TrimSpace(inner[idx+1:]), true
	}
	return inner, "", true
}

// Render walks v and substitutes every {{...}} placeholder found in string
// values (and full-string values become whatever type the resolved value is).
// ctx supplies the dotted-path namespace, typically {"steps": {...}, "vars": {...}}.
func Render(v interface{}, ctx map[string]interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return renderString(t, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			rv, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			rv, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// renderString handles both the whole-string-is-one-placeholder case (value
// keeps its native type) and placeholders embedded inside surrounding text
// (always stringified into the result).
func renderString(s string, ctx map[string]interface{}) (interface{}, error) {
	if path, filter, ok := placeholderBody(s); ok {
		val, err := resolve(path, ctx)
		if err != nil {
			return nil, err
		}
		return applyFilter(val, filter)
	}

	var sb strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			sb.WriteString(rest)
			break
		}
		end += start
		sb.WriteString(rest[:start])

		path, filter, _ := placeholderBody(rest[start : end+2])
		val, err := resolve(path, ctx)
		if err != nil {
			return nil, err
		}
		rendered, err := applyFilter(val, filter)
		if err != nil {
			return nil, err
		}
		sb.WriteString(stringify(rendered))
		rest = rest[end+2:]
	}
	return sb.String(), nil
}

// resolve walks a dotted path (with optional [n] list indices or [start:end]
// slices) through ctx.
func resolve(path string, ctx map[string]interface{}) (interface{}, error) {
	segments := splitPath(path)
	var cur interface{} = ctx
	for _, seg := range segments {
		if strings.Contains(seg, ":") {
			node, ok := cur.([]interface{})
			if !ok {
				return nil, fmt.Errorf("template: path %q cannot slice non-list value at %q", path, seg)
			}
			sliced, err := sliceList(node, seg)
			if err != nil {
				return nil, fmt.Errorf("template: path %q: %w", path, err)
			}
			cur = sliced
			continue
		}
		switch node := cur.(type) {
		case map[string]interface{}:
			val, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("template: path %q not found (missing %q)", path, seg)
			}
			cur = val
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("template: path %q has invalid list index %q", path, seg)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("template: path %q cannot descend into %T at %q", path, cur, seg)
		}
	}
	return cur, nil
}

// sliceList implements the "[start:end]" list-slicing syntax; an omitted
// bound defaults to the start/end of the list, Python-slice-style.
func sliceList(list []interface{}, seg string) ([]interface{}, error) {
	parts := strings.SplitN(seg, ":", 2)
	start, end := 0, len(list)
	if parts[0] != "" {
		v, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid slice start %q", parts[0])
		}
		start = v
	}
	if len(parts) > 1 && parts[1] != "" {
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid slice end %q", parts[1])
		}
		end = v
	}
	if start < 0 || end > len(list) || start > end {
		return nil, fmt.Errorf("slice [%d:%d] out of range for a %d-element list", start, end, len(list))
	}
	return list[start:end], nil
}

func splitPath(path string) []string {
	raw := strings.Split(path, ".")
	var out []string
	for _, r := range raw {
		for {
			open := strings.Index(r, "[")
			if open == -1 {
				out = append(out, r)
				break
			}
			shut := strings.Index(r, "]")
			if shut == -1 || shut < open {
				out = append(out, r)
				break
			}
			if open > 0 {
				out = append(out, r[:open])
			}
			out = append(out, r[open+1:shut])
			r = r[shut+1:]
		}
	}
	return out
}

func applyFilter(val interface{}, filter string) (interface{}, error) {
	switch filter {
	case "":
		return val, nil
	case "tojson":
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("template: tojson filter failed: %w", err)
		}
		return string(b), nil
	case "length":
		switch t := val.(type) {
		case []interface{}:
			return len(t), nil
		case string:
			return len(t), nil
		case map[string]interface{}:
			return len(t), nil
		default:
			return nil, fmt.Errorf("template: length filter unsupported on %T", val)
		}
	default:
		return nil, fmt.Errorf("template: unknown filter %q", filter)
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
