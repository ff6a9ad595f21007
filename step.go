package gobake

import (
	"context"
	"os"
)

// TransformFunc performs a step's work given the resolved input and output
// paths for its declared tags.
type TransformFunc func(ctx context.Context, inputs, outputs PathMap) error

// FuncStep is a concrete step built from a transform function. It is the
// simplest way to define a step: declare the tag sets, provide the
// function, and let binding hand it concrete paths.
type FuncStep struct {
	name        string
	description string
	tags        []string
	inputs      TagSet
	outputs     TagSet
	fn          TransformFunc
}

// NewFuncStep creates a step with the given name, description, tag sets,
// and transform function.
func NewFuncStep(name, description string, inputs, outputs TagSet, fn TransformFunc) *FuncStep {
	return &FuncStep{
		name:        name,
		description: description,
		tags:        []string{},
		inputs:      inputs.Clone(),
		outputs:     outputs.Clone(),
		fn:          fn,
	}
}

// Name returns the step's name
func (s *FuncStep) Name() string {
	return s.name
}

// Description returns a human-readable description of the step
func (s *FuncStep) Description() string {
	return s.description
}

// Tags returns the step's tags for organization and filtering
func (s *FuncStep) Tags() []string {
	return s.tags
}

// AddTag adds a tag to the step if it doesn't already exist.
func (s *FuncStep) AddTag(tag string) {
	for _, t := range s.tags {
		if t == tag {
			return
		}
	}
	s.tags = append(s.tags, tag)
}

// Inputs returns the step's declared input tag set
func (s *FuncStep) Inputs() TagSet {
	return s.inputs
}

// Outputs returns the step's declared output tag set
func (s *FuncStep) Outputs() TagSet {
	return s.outputs
}

// Bind associates the step's declared tags with concrete paths.
func (s *FuncStep) Bind(inputs, outputs PathMap) (BoundStep, error) {
	if err := checkBinding(s.name, s.inputs, s.outputs, inputs, outputs); err != nil {
		return nil, err
	}
	return &boundFuncStep{
		step:    s,
		inputs:  inputs.Clone(),
		outputs: outputs.Clone(),
	}, nil
}

// boundFuncStep is a FuncStep instance bound to concrete paths.
type boundFuncStep struct {
	step    *FuncStep
	inputs  PathMap
	outputs PathMap
}

// Build runs the transform function. Errors from the function propagate
// unwrapped; they are the step's own failure signal.
func (b *boundFuncStep) Build(ctx context.Context, overwrite bool) error {
	if !overwrite {
		if err := checkOverwrite(b.outputs); err != nil {
			return err
		}
	}
	return b.step.fn(ctx, b.inputs, b.outputs)
}

// checkBinding verifies that the supplied path maps cover exactly the
// declared tag sets, reporting every missing and undeclared tag at once.
func checkBinding(step string, inTags, outTags TagSet, inputs, outputs PathMap) error {
	bindErr := &BindingError{Step: step}
	for _, tag := range inTags.Sorted() {
		if _, ok := inputs[tag]; !ok {
			bindErr.MissingInputs = append(bindErr.MissingInputs, tag)
		}
	}
	for _, tag := range outTags.Sorted() {
		if _, ok := outputs[tag]; !ok {
			bindErr.MissingOutputs = append(bindErr.MissingOutputs, tag)
		}
	}
	for _, tag := range pathMapTags(inputs) {
		if !inTags.Has(tag) {
			bindErr.ExtraInputs = append(bindErr.ExtraInputs, tag)
		}
	}
	for _, tag := range pathMapTags(outputs) {
		if !outTags.Has(tag) {
			bindErr.ExtraOutputs = append(bindErr.ExtraOutputs, tag)
		}
	}
	if len(bindErr.MissingInputs) > 0 || len(bindErr.MissingOutputs) > 0 ||
		len(bindErr.ExtraInputs) > 0 || len(bindErr.ExtraOutputs) > 0 {
		return bindErr
	}
	return nil
}

// checkOverwrite fails if any bound output path already exists on disk.
func checkOverwrite(outputs PathMap) error {
	for _, tag := range pathMapTags(outputs) {
		if _, err := os.Stat(outputs[tag]); err == nil {
			return &OverwriteError{Tag: tag, Path: outputs[tag]}
		}
	}
	return nil
}

// pathMapTags returns a path map's tags in lexicographic order.
func pathMapTags(m PathMap) []Tag {
	set := make(TagSet, len(m))
	for tag := range m {
		set.Add(tag)
	}
	return set.Sorted()
}
