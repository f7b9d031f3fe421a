package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/simon020286/go-autopilot/models"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const workflowSchemaURL = "https://go-autopilot.local/schemas/workflow.json"

// workflowSchemaJSON describes the structure of a workflow document.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://go-autopilot.local/schemas/workflow.json",
  "type": "object",
  "required": ["environment", "workflow"],
  "properties": {
    "environment": {
      "type": "object",
      "required": ["url"],
      "properties": {
        "url": { "type": "string", "minLength": 1 }
      }
    },
    "workflow": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    }
  },
  "$defs": {
    "step": {
      "type": "object",
      "required": ["use"],
      "properties": {
        "use": { "type": "string", "minLength": 1 },
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "with": { "type": "object" },
        "context": {
          "oneOf": [
            { "type": "string", "minLength": 1 },
            { "type": "array", "items": { "type": "string", "minLength": 1 } },
            { "type": "object", "additionalProperties": { "type": "string", "minLength": 1 } }
          ]
        }
      },
      "additionalProperties": false
    }
  }
}`

var (
	schemaOnce     sync.Once
	workflowSchema *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(workflowSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal workflow schema: %w", err)
			return
		}
		if err := c.AddResource(workflowSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add workflow schema resource: %w", err)
			return
		}
		workflowSchema, schemaErr = c.Compile(workflowSchemaURL)
	})
	return workflowSchema, schemaErr
}

// ValidateDocument checks a decoded workflow document against the
// workflow schema. Every violation is reported in one LoadError.
func ValidateDocument(doc any) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	value, err := toJSONValue(doc)
	if err != nil {
		return models.ErrLoad("workflow is not a JSON compatible document: %v", err)
	}

	if err := sch.Validate(value); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return models.ErrLoad("%v", err)
		}
		violations := collectViolations(verr)
		return models.ErrLoad("schema validation failed: %s", strings.Join(violations, "; "))
	}
	return nil
}

// toJSONValue round-trips v through encoding/json so numbers become
// json.Number, as the validator expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
