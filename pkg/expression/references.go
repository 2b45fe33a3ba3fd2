package expression

import (
	"strings"

	"github.com/flowgraph/flowgraph/pkg/models"
)

// NodeReferences returns the node keys a field set reads from, deduplicated in
// first-reference order. Namespace references (sys, input, loop) and fixed
// values carry no node dependency. The scheduler uses this to compute each
// node's data-dependency set before dispatch.
func NodeReferences(designs []models.FieldDesign) []string {
	seen := make(map[string]struct{})

	var keys []string

	add := func(ref string) {
		head, _ := splitHead(strings.TrimSpace(ref))

		switch head {
		case "", namespaceSystem, namespaceInput, namespaceLoop:
			return
		}

		if _, ok := seen[head]; ok {
			return
		}

		seen[head] = struct{}{}
		keys = append(keys, head)
	}

	for _, design := range designs {
		switch design.ExpressionType {
		case models.ExpressionTypeVariable, models.ExpressionTypeJSONPath:
			add(design.Value)
		case models.ExpressionTypeInterpolation:
			for _, match := range placeholderPattern.FindAllStringSubmatch(design.Value, -1) {
				add(match[1])
			}
		}
	}

	return keys
}
