package registry

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowgraph/flowgraph/pkg/models"
)

// configSchemas holds the JSON schema for each node type's config block.
// Validation runs at definition load, before any execution starts.
var configSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeStart: {
		"type":       "object",
		"properties": map[string]any{},
	},
	models.NodeTypeEnd: {
		"type":       "object",
		"properties": map[string]any{},
	},
	models.NodeTypeAiChat: {
		"type": "object",
		"properties": map[string]any{
			"model_id": map[string]any{"type": "string"},
			"settings": map[string]any{"type": "object"},
		},
	},
	models.NodeTypeWiki: {
		"type": "object",
		"properties": map[string]any{
			"wiki_id": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"wiki_id"},
	},
	models.NodeTypePlugin: {
		"type": "object",
		"properties": map[string]any{
			"plugin_id": map[string]any{"type": "string", "minLength": 1},
			"function":  map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"plugin_id", "function"},
	},
	models.NodeTypeCondition: {
		"type": "object",
		"properties": map[string]any{
			"operator": map[string]any{"type": "string"},
		},
	},
	models.NodeTypeForEach: {
		"type": "object",
		"properties": map[string]any{
			"halt_on_error": map[string]any{"type": "boolean"},
		},
	},
	models.NodeTypeFork: {
		"type":       "object",
		"properties": map[string]any{},
	},
	models.NodeTypeJavaScript: {
		"type": "object",
		"properties": map[string]any{
			"script": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"script"},
	},
	models.NodeTypeDataProcess: {
		"type": "object",
		"properties": map[string]any{
			"operations": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []any{"map", "filter", "aggregate"},
						},
					},
					"required": []any{"type"},
				},
			},
		},
		"required": []any{"operations"},
	},
}

// ValidateConfig checks a node's config against its type schema.
func (r *Registry) ValidateConfig(design *models.NodeDesign) error {
	schema, ok := configSchemas[design.Type]
	if !ok {
		return fmt.Errorf("node '%s': unknown node type '%s'", design.NodeKey, design.Type)
	}

	config := design.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("node '%s': %w", design.NodeKey, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("node '%s': config validation failed: %s", design.NodeKey, strings.Join(descriptions, "; "))
	}

	return nil
}
