// Package template resolves "{{path.to.value}}" references against an
// execution context while a workflow runs.
//
// A reference's first path segment names the data source: the literal
// "trigger" for the payload that started the execution, or a node id for
// that node's previously resolved output. Everything after the first
// segment is a dot/bracket path into that value, e.g.
// {{trigger.body.email}} or {{node_abc123.items[0].id}}.
//
// Resolution never fails: a reference that cannot be resolved — an
// unknown root, a missing field, an out-of-range index — is replaced with
// an empty string. There is no strict mode; callers that need to know
// whether a template was fully resolved should inspect the input for
// "{{" before and after calling Resolve.
package template

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/wflowhq/engine/pkg/models"
)

var refPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Engine resolves template references against a single execution context.
type Engine struct {
	ctx models.ExecutionContext
}

// NewEngine builds an Engine bound to ctx. The context is read, never
// mutated, during resolution.
func NewEngine(ctx models.ExecutionContext) *Engine {
	return &Engine{ctx: ctx}
}

// Resolve walks data, replacing template references wherever it finds a
// string. Maps and slices are resolved recursively; any other concrete
// type is returned unchanged.
func (e *Engine) Resolve(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		return e.ResolveString(v)
	case map[string]interface{}:
		return e.resolveMap(v)
	case []interface{}:
		return e.resolveSlice(v)
	default:
		return data
	}
}

// ResolveMap resolves every string value in config, recursively. It is the
// entry point node actions use to resolve their Data/config maps before
// execution.
func (e *Engine) ResolveMap(config map[string]interface{}) map[string]interface{} {
	return e.resolveMap(config)
}

func (e *Engine) resolveMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = e.Resolve(v)
	}
	return out
}

func (e *Engine) resolveSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = e.Resolve(v)
	}
	return out
}

// ResolveString replaces every "{{ref}}" occurrence in s. If s is exactly
// one reference with nothing else around it, the resolved value's native
// type is preserved (a {{node.count}} that resolves to an int stays an
// int); otherwise every match is stringified and substituted inline.
func (e *Engine) ResolveString(s string) interface{} {
	matches := refPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		ref := strings.TrimSpace(s[matches[0][2]:matches[0][3]])
		value, ok := e.resolveRef(ref)
		if !ok {
			return ""
		}
		return value
	}

	return refPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := strings.TrimSpace(match[2 : len(match)-2])
		value, ok := e.resolveRef(ref)
		if !ok {
			return ""
		}
		return stringify(value)
	})
}

// resolveRef resolves a single reference body (without the surrounding
// "{{" "}}"), e.g. "trigger.body.email" or "node1.items[0]".
func (e *Engine) resolveRef(ref string) (interface{}, bool) {
	rootKey, rest := splitRoot(ref)

	root, ok := e.ctx[rootKey]
	if !ok {
		return nil, false
	}

	if rest == "" {
		return root, true
	}

	return traverse(root, splitPath(rest))
}

// splitRoot separates the first path segment (the root key) from the
// remainder of the path. A bracket index attached directly to the root,
// e.g. "trigger[0].x", is kept as part of rest so traverse() applies it.
func splitRoot(ref string) (root, rest string) {
	idx := strings.IndexAny(ref, ".[")
	if idx == -1 {
		return ref, ""
	}
	if ref[idx] == '[' {
		return ref[:idx], ref[idx:]
	}
	return ref[:idx], ref[idx+1:]
}

// splitPath splits a dot/bracket path into segments, treating
// "items[0]" as a single segment so indexing stays attached to its field.
// Dots inside brackets are never treated as separators (not a case this
// grammar produces, but the scanner stays correct regardless).
func splitPath(path string) []string {
	if path == "" {
		return nil
	}

	var parts []string
	var cur strings.Builder
	inBracket := false

	for _, r := range path {
		switch {
		case r == '[':
			inBracket = true
			cur.WriteRune(r)
		case r == ']':
			inBracket = false
			cur.WriteRune(r)
		case r == '.' && !inBracket:
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// traverse walks value through each path segment in turn.
func traverse(value interface{}, parts []string) (interface{}, bool) {
	cur := value
	for _, part := range parts {
		field, indices, ok := splitIndices(part)
		if !ok {
			return nil, false
		}

		if field != "" {
			cur, ok = resolveField(cur, field)
			if !ok {
				return nil, false
			}
		}

		for _, idx := range indices {
			cur, ok = resolveIndex(cur, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return cur, true
}

var indexPattern = regexp.MustCompile(`\[(-?\d+)\]`)

// splitIndices splits a segment like "items[0][1]" into its field name
// ("items") and a slice of chained indices ([0, 1]).
func splitIndices(segment string) (field string, indices []int, ok bool) {
	bracket := strings.IndexByte(segment, '[')
	if bracket == -1 {
		return segment, nil, true
	}

	field = segment[:bracket]
	matches := indexPattern.FindAllStringSubmatch(segment[bracket:], -1)
	if matches == nil {
		return "", nil, false
	}

	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", nil, false
		}
		indices = append(indices, n)
	}
	return field, indices, true
}

// resolveField looks up field on value: map access first, then struct
// field access via reflection, then a JSON round trip as a last resort
// for types that don't fit either (e.g. a custom Stringer-free type).
func resolveField(value interface{}, field string) (interface{}, bool) {
	if value == nil {
		return nil, false
	}

	if m, ok := value.(map[string]interface{}); ok {
		v, ok := m[field]
		return v, ok
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Struct {
		fv := rv.FieldByName(field)
		if fv.IsValid() {
			return fv.Interface(), true
		}
	}

	if asMap, ok := toMap(value); ok {
		v, ok := asMap[field]
		return v, ok
	}

	return nil, false
}

func resolveIndex(value interface{}, index int) (interface{}, bool) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		i := index
		if i < 0 {
			i += rv.Len()
		}
		if i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}

	if arr, ok := toSlice(value); ok {
		i := index
		if i < 0 {
			i += len(arr)
		}
		if i < 0 || i >= len(arr) {
			return nil, false
		}
		return arr[i], true
	}

	return nil, false
}

func toMap(value interface{}) (map[string]interface{}, bool) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

func toSlice(value interface{}) ([]interface{}, bool) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var s []interface{}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	return s, true
}

// stringify renders a resolved value for inline substitution into a
// larger string.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, int, int64, float64, float32:
		return fmt.Sprintf("%v", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Lookup resolves a bare dot/bracket path (no "{{}}" wrapper) against ctx,
// the same traversal ResolveString uses internally for a lone reference.
// It is used by the transform action to evaluate a dot-path expression
// directly against the full execution context.
func Lookup(ctx models.ExecutionContext, path string) (interface{}, bool) {
	e := NewEngine(ctx)
	return e.resolveRef(path)
}

// HasTemplates reports whether s contains at least one "{{...}}" reference.
func HasTemplates(s string) bool {
	return refPattern.MatchString(s)
}

// ExtractRefs returns every reference body found in s, in order of
// appearance, e.g. ["trigger.body.email", "node1.count"].
func ExtractRefs(s string) []string {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, strings.TrimSpace(m[1]))
	}
	return refs
}
