package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "categories"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "categories": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["key", "title", "maxPoints", "criteria"],
        "properties": {
          "key": {"type": "string", "pattern": "^[a-zA-Z][a-zA-Z0-9]*$"},
          "title": {"type": "string", "minLength": 1},
          "maxPoints": {"type": "integer", "minimum": 0},
          "requiresAttachment": {"type": "boolean"},
          "criteria": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["key", "label", "points"],
              "properties": {
                "key": {"type": "string", "pattern": "^[a-zA-Z][a-zA-Z0-9]*$"},
                "label": {"type": "string", "minLength": 1},
                "points": {"type": "integer", "minimum": 0}
              },
              "additionalProperties": false
            }
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func definitionValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("catalog.schema.json", strings.NewReader(definitionSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("catalog.schema.json")
	})
	return compiledSchema, schemaErr
}

type definition struct {
	Version    int        `yaml:"version"`
	Categories []Category `yaml:"categories"`
}

// Parse decodes a YAML catalog definition, validates its shape and builds the catalog.
func Parse(data []byte) (*Catalog, error) {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode catalog definition: %w", err)
	}

	// The schema validator expects JSON-decoded values.
	normalized, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize catalog definition: %w", err)
	}
	var document interface{}
	if err := json.Unmarshal(normalized, &document); err != nil {
		return nil, fmt.Errorf("failed to normalize catalog definition: %w", err)
	}

	schema, err := definitionValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile catalog schema: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return nil, fmt.Errorf("catalog definition does not match schema: %w", err)
	}

	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode catalog definition: %w", err)
	}

	return New(def.Version, def.Categories)
}
