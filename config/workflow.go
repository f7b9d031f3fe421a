package config

import (
	"fmt"
	"sort"

	"github.com/simon020286/go-autopilot/models"
	"gopkg.in/yaml.v3"
)

// WorkflowSpec is the complete workflow definition read from YAML
type WorkflowSpec struct {
	Environment Environment `yaml:"environment" json:"environment"`
	Workflow    []StepSpec  `yaml:"workflow" json:"workflow"`
}

// Environment describes the remote system the workflow runs against
type Environment struct {
	URL string `yaml:"url" json:"url"`
}

// StepSpec is one entry of the workflow list
type StepSpec struct {
	Use     string         `yaml:"use" json:"use"`
	ID      string         `yaml:"id,omitempty" json:"id,omitempty"`
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	With    map[string]any `yaml:"with,omitempty" json:"with,omitempty"`
	Context ContextBinding `yaml:"context,omitempty" json:"context,omitempty"`
}

// ContextBinding maps the alias a step reads under to the id of the step
// that published the data. In YAML it is either a single id, a list of
// ids (each aliased to itself) or an explicit alias -> id mapping.
type ContextBinding map[string]string

// UnmarshalYAML accepts the three supported shapes
func (c *ContextBinding) UnmarshalYAML(node *yaml.Node) error {
	out := ContextBinding{}

	switch node.Kind {
	case yaml.ScalarNode:
		var id string
		if err := node.Decode(&id); err != nil {
			return err
		}
		if id != "" {
			out[id] = id
		}
	case yaml.SequenceNode:
		var ids []string
		if err := node.Decode(&ids); err != nil {
			return fmt.Errorf("context list must contain step ids: %w", err)
		}
		for _, id := range ids {
			out[id] = id
		}
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("context mapping must be alias: id: %w", err)
		}
		for alias, id := range m {
			out[alias] = id
		}
	default:
		return fmt.Errorf("line %d: context must be a string, a list or a mapping", node.Line)
	}

	*c = out
	return nil
}

// Aliases returns the aliases in sorted order
func (c ContextBinding) Aliases() []string {
	aliases := make([]string, 0, len(c))
	for a := range c {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases
}

// DisplayName returns the step name, falling back to its type
func (s StepSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Use
}

// StepConfig converts the spec to what step factories receive
func (s StepSpec) StepConfig() models.StepConfig {
	params := s.With
	if params == nil {
		params = map[string]any{}
	}
	return models.StepConfig{
		Type:    s.Use,
		ID:      s.ID,
		Name:    s.DisplayName(),
		Params:  params,
		Context: map[string]string(s.Context),
	}
}

// Validate checks the rules the schema cannot express
func (w *WorkflowSpec) Validate() error {
	if w.Environment.URL == "" {
		return models.ErrLoad("missing environment url")
	}
	if len(w.Workflow) == 0 {
		return models.ErrLoad("workflow has no steps")
	}

	seen := make(map[string]int, len(w.Workflow))
	for i, step := range w.Workflow {
		if step.Use == "" {
			return &models.LoadError{Index: i, Reason: fmt.Sprintf("step %d has no type", i+1)}
		}
		if step.ID == "" {
			continue
		}
		if prev, exists := seen[step.ID]; exists {
			return &models.LoadError{
				Index:  i,
				Reason: fmt.Sprintf("duplicate step id '%s' (first used by step %d)", step.ID, prev+1),
			}
		}
		seen[step.ID] = i
	}
	return nil
}
