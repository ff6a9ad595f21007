package gobake

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// StepDef is a serializable representation of a pipeline step.
// It uses a registered ID to identify the step type and can hold
// arbitrary parameters for the factory.
type StepDef struct {
	// ID is the unique identifier of the step type as registered in the registry.
	ID string `json:"id" yaml:"id"`
	// Name overrides the default name of the registered step, if provided.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Params are arbitrary key-value pairs interpreted by the step factory.
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// PipelineDef is a serializable representation of a composed pipeline.
// It names the step types to chain, in order, plus any intermediate tags
// to promote to pipeline outputs.
type PipelineDef struct {
	// Name is a human-readable name for the pipeline.
	Name string `json:"name" yaml:"name"`
	// Steps contains the step definitions in execution order.
	Steps []StepDef `json:"steps" yaml:"steps"`
	// ExposedIntermediates lists internally produced tags that should also
	// appear as pipeline outputs.
	ExposedIntermediates []string `json:"exposedIntermediates,omitempty" yaml:"exposed_intermediates,omitempty"`
}

// LoadPipelineDef parses a YAML pipeline document.
func LoadPipelineDef(data []byte) (*PipelineDef, error) {
	var def PipelineDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}
	if def.Name == "" {
		def.Name = "pipeline"
	}
	return &def, nil
}

// BuildPipeline instantiates every step of the definition through the
// registry and composes them into a sequence. Additional options are
// applied after the definition's own name and exposed intermediates, so
// callers can override either.
func BuildPipeline(def *PipelineDef, opts ...SequenceOption) (Step, error) {
	steps := make([]Step, 0, len(def.Steps))
	for i, stepDef := range def.Steps {
		step, err := NewStepFromRegistry(stepDef)
		if err != nil {
			return nil, fmt.Errorf("building step %d of pipeline %q: %w", i, def.Name, err)
		}
		steps = append(steps, step)
	}

	exposed := make([]Tag, len(def.ExposedIntermediates))
	for i, tag := range def.ExposedIntermediates {
		exposed[i] = Tag(tag)
	}

	composed := []SequenceOption{
		WithName(def.Name),
		WithExposedIntermediates(exposed...),
	}
	composed = append(composed, opts...)
	return Sequence(steps, composed...)
}

// PipelineSchema returns the JSON schema of the pipeline definition
// document as a plain map, suitable for serving or embedding in docs.
func PipelineSchema() map[string]interface{} {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(&PipelineDef{})

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	var schemaMap map[string]interface{}
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	return schemaMap
}
