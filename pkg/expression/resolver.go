package expression

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// Variable namespaces. Any other first segment is read as a node key.
const (
	namespaceSystem = "sys"
	namespaceInput  = "input"
	namespaceLoop   = "loop"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// ResolveInputs materializes a node's input fields in declaration order.
// Resolution is pure and idempotent: re-resolving against the same context
// snapshot yields identical output.
func ResolveInputs(designs []models.FieldDesign, rc *models.RunContext) (map[string]any, error) {
	inputs := make(map[string]any, len(designs))

	for _, design := range designs {
		value, err := Resolve(design, rc)
		if err != nil {
			return nil, err
		}

		inputs[design.FieldName] = value
	}

	return inputs, nil
}

// Resolve materializes a single field design against the run's variable scope.
func Resolve(design models.FieldDesign, rc *models.RunContext) (any, error) {
	var (
		value any
		err   error
	)

	switch design.ExpressionType {
	case models.ExpressionTypeFixed:
		value, err = parseFixed(design.Value, design.Type)
	case models.ExpressionTypeVariable:
		value, err = lookupVariable(design.Value, rc)
	case models.ExpressionTypeJSONPath:
		value, err = evalJSONPath(design.Value, rc)
	case models.ExpressionTypeInterpolation:
		value, err = interpolate(design.Value, rc)
	default:
		err = fmt.Errorf("unknown expression type %q: %w", design.ExpressionType, ErrTemplate)
	}

	if err != nil {
		return nil, &ResolutionError{Field: design.FieldName, Expression: design.Value, Err: err}
	}

	coerced, err := coerce(value, design.Type)
	if err != nil {
		return nil, &ResolutionError{Field: design.FieldName, Expression: design.Value, Err: err}
	}

	return coerced, nil
}

// parseFixed parses a constant per the declared type. Without a declared type
// the literal is sniffed: number, then boolean, then JSON, then string.
func parseFixed(literal string, fieldType models.FieldType) (any, error) {
	if fieldType != "" {
		return literal, nil // coerce() applies the declared type
	}

	if num, err := strconv.ParseFloat(literal, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(literal); err == nil {
		return b, nil
	}

	trimmed := strings.TrimSpace(literal)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed, nil
		}
	}

	return literal, nil
}

// lookupVariable resolves a dotted reference. The first segment selects the
// namespace; any other first segment is a node key indexed into that node's
// output map. Referencing a node that has not completed fails with
// ErrUnresolvedVariable - this is what encodes data dependencies.
func lookupVariable(path string, rc *models.RunContext) (any, error) {
	if path == "" {
		return nil, fmt.Errorf("empty reference: %w", ErrUnresolvedVariable)
	}

	segments := strings.Split(path, ".")

	var root any

	switch segments[0] {
	case namespaceSystem:
		root = anyMap(rc.SystemVariables)
	case namespaceInput:
		root = anyMap(rc.RuntimeParameters)
	case namespaceLoop:
		scope := rc.LoopScope()
		if scope == nil {
			return nil, fmt.Errorf("loop reference %q outside a foreach body: %w", path, ErrUnresolvedVariable)
		}

		root = anyMap(scope)
	default:
		pipeline, ok := rc.Pipeline(segments[0])
		if !ok || pipeline.State != models.PipelineStateCompleted {
			return nil, fmt.Errorf("node %q has not produced output: %w", segments[0], ErrUnresolvedVariable)
		}

		if len(segments) == 1 {
			return pipeline.Output, nil
		}

		root = anyMap(pipeline.Output)
	}

	return walk(root, segments[1:], path)
}

func anyMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

func walk(value any, segments []string, full string) (any, error) {
	current := value

	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("segment %q of %q is not an object: %w", seg, full, ErrUnresolvedVariable)
		}

		current, ok = obj[seg]
		if !ok {
			return nil, fmt.Errorf("segment %q of %q not found: %w", seg, full, ErrUnresolvedVariable)
		}
	}

	return current, nil
}

// evalJSONPath evaluates a json-path query against a completed node's raw
// output JSON. Supports nested traversal and array indexing, e.g.
// "nodeA.result[0].name".
func evalJSONPath(expr string, rc *models.RunContext) (any, error) {
	nodeKey, rest := splitHead(expr)
	if nodeKey == "" || rest == "" {
		return nil, fmt.Errorf("path %q must reference a node output: %w", expr, ErrInvalidJSONPath)
	}

	pipeline, ok := rc.Pipeline(nodeKey)
	if !ok || pipeline.State != models.PipelineStateCompleted {
		return nil, fmt.Errorf("node %q has not produced output: %w", nodeKey, ErrUnresolvedVariable)
	}

	gjsonPath := normalizePath(rest)

	if !gjson.ValidBytes(pipeline.OutputJSON) {
		return nil, fmt.Errorf("node %q output is not valid JSON: %w", nodeKey, ErrInvalidJSONPath)
	}

	result := gjson.GetBytes(pipeline.OutputJSON, gjsonPath)
	if !result.Exists() {
		return nil, fmt.Errorf("path %q matched nothing: %w", expr, ErrInvalidJSONPath)
	}

	return result.Value(), nil
}

// splitHead splits "nodeA.result[0].name" into "nodeA" and "result[0].name".
func splitHead(expr string) (string, string) {
	for i, r := range expr {
		if r == '.' {
			return expr[:i], expr[i+1:]
		}

		if r == '[' {
			return expr[:i], expr[i:]
		}
	}

	return expr, ""
}

// normalizePath rewrites bracketed indices to gjson's dotted form:
// "result[0].name" becomes "result.0.name".
func normalizePath(path string) string {
	var b strings.Builder

	for _, r := range path {
		switch r {
		case '[':
			if b.Len() > 0 {
				b.WriteByte('.')
			}
		case ']':
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// interpolate renders a "{namespace.path}" template. Every placeholder is
// resolved via the variable rule; a missing placeholder fails the whole
// resolution rather than substituting a blank.
func interpolate(tmpl string, rc *models.RunContext) (any, error) {
	if strings.Count(tmpl, "{") != strings.Count(tmpl, "}") {
		return nil, fmt.Errorf("unbalanced braces in %q: %w", tmpl, ErrTemplate)
	}

	var firstErr error

	rendered := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		if firstErr != nil {
			return match
		}

		ref := match[1 : len(match)-1]

		value, err := lookupVariable(strings.TrimSpace(ref), rc)
		if err != nil {
			firstErr = fmt.Errorf("placeholder %q: %w: %w", ref, err, ErrTemplate)

			return match
		}

		text, err := stringify(value)
		if err != nil {
			firstErr = fmt.Errorf("placeholder %q: %w", ref, err)

			return match
		}

		return text
	})

	if firstErr != nil {
		return nil, firstErr
	}

	return rendered, nil
}

func stringify(value any) (string, error) {
	switch value.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("marshal placeholder value: %w", err)
		}

		return string(raw), nil
	default:
		return cast.ToStringE(value)
	}
}

// coerce applies the declared field type to a resolved value. Scalar
// mismatches coerce leniently (a number field accepts the string "42");
// scalar-to-structural mismatches are rejected.
func coerce(value any, fieldType models.FieldType) (any, error) {
	if fieldType == "" {
		return value, nil
	}

	switch fieldType {
	case models.FieldTypeString:
		switch value.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("cannot coerce %T to string: %w", value, ErrTypeMismatch)
		}

		text, err := cast.ToStringE(value)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %T to string: %w", value, ErrTypeMismatch)
		}

		return text, nil
	case models.FieldTypeNumber:
		num, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %T to number: %w", value, ErrTypeMismatch)
		}

		return num, nil
	case models.FieldTypeBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %T to boolean: %w", value, ErrTypeMismatch)
		}

		return b, nil
	case models.FieldTypeObject:
		if text, ok := value.(string); ok {
			var obj map[string]any
			if err := json.Unmarshal([]byte(text), &obj); err == nil {
				return obj, nil
			}
		}

		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot coerce %T to object: %w", value, ErrTypeMismatch)
		}

		return obj, nil
	case models.FieldTypeArray:
		if text, ok := value.(string); ok {
			var arr []any
			if err := json.Unmarshal([]byte(text), &arr); err == nil {
				return arr, nil
			}
		}

		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("cannot coerce %T to array: %w", value, ErrTypeMismatch)
		}

		return arr, nil
	default:
		return nil, fmt.Errorf("unknown field type %q: %w", fieldType, ErrTypeMismatch)
	}
}
