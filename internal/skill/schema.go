package skill

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema validates custom skill definition files before any
// entry reaches the registry
const definitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["skills"],
	"properties": {
		"skills": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "prompt"],
				"properties": {
					"id": {
						"type": "string",
						"pattern": "^[a-z][a-z0-9-]*$"
					},
					"name": {
						"type": "string"
					},
					"prompt": {
						"type": "string",
						"minLength": 1
					},
					"keywords": {
						"type": "array",
						"items": {
							"type": "string",
							"minLength": 1
						}
					},
					"requires_language_directive": {
						"type": "boolean"
					}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

// definitionFile is the on-disk shape of a custom skill file
type definitionFile struct {
	Skills []Definition `json:"skills"`
}

// LoadDefinitions validates and registers custom skill definitions from a
// JSON document. Returns the number of skills registered.
func (r *Registry) LoadDefinitions(data []byte) (int, error) {
	schemaLoader := gojsonschema.NewStringLoader(definitionSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return 0, fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, err := range result.Errors() {
			errs = append(errs, err.String())
		}
		return 0, fmt.Errorf("skill definitions do not match schema: %s", strings.Join(errs, "; "))
	}

	var file definitionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parsing skill definitions: %w", err)
	}

	for _, def := range file.Skills {
		if err := r.Register(def); err != nil {
			return 0, err
		}
	}

	return len(file.Skills), nil
}
