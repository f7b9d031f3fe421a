package config

import (
	"fmt"
	"os"

	"github.com/simon020286/go-autopilot/models"
	"gopkg.in/yaml.v3"
)

// LoadWorkflowFile reads and validates a workflow file
func LoadWorkflowFile(path string) (*WorkflowSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.ErrLoad("failed to read workflow file %s: %v", path, err)
	}
	spec, err := ParseWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// ParseWorkflow decodes a YAML workflow, checks it against the workflow
// schema and the rules the schema cannot express.
func ParseWorkflow(data []byte) (*WorkflowSpec, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, models.ErrLoad("failed to parse YAML: %v", err)
	}
	if doc == nil {
		return nil, models.ErrLoad("workflow document is empty")
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var spec WorkflowSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, models.ErrLoad("failed to decode workflow: %v", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
