package gobake

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySequence is returned when composing a sequence from zero steps.
var ErrEmptySequence = errors.New("cannot sequence an empty step list")

// TagConflictError reports an output tag declared by more than one step, or
// declared as an output after it already appeared elsewhere in the sequence.
type TagConflictError struct {
	// Tag is the conflicting output tag
	Tag Tag
	// StepIndex is the index of the step that re-declared the tag
	StepIndex int
}

func (e *TagConflictError) Error() string {
	return fmt.Sprintf("multiple steps in sequence generate output tag %q (conflict at step %d)", e.Tag, e.StepIndex)
}

// ExposeError reports exposed-intermediate tags that are not generated
// inside the sequence. Tags are sorted so the message is deterministic.
type ExposeError struct {
	Tags []Tag
}

func (e *ExposeError) Error() string {
	return fmt.Sprintf("cannot expose non-generated intermediate(s): %s", joinTags(e.Tags))
}

// BindingError reports a mismatch between a step's declared tag sets and
// the path maps supplied to Bind.
type BindingError struct {
	// Step is the name of the step being bound
	Step string
	// MissingInputs and MissingOutputs list declared tags with no path
	MissingInputs  []Tag
	MissingOutputs []Tag
	// ExtraInputs and ExtraOutputs list supplied tags the step never declared
	ExtraInputs  []Tag
	ExtraOutputs []Tag
}

func (e *BindingError) Error() string {
	var parts []string
	if len(e.MissingInputs) > 0 {
		parts = append(parts, fmt.Sprintf("missing input path(s) for: %s", joinTags(e.MissingInputs)))
	}
	if len(e.MissingOutputs) > 0 {
		parts = append(parts, fmt.Sprintf("missing output path(s) for: %s", joinTags(e.MissingOutputs)))
	}
	if len(e.ExtraInputs) > 0 {
		parts = append(parts, fmt.Sprintf("undeclared input tag(s): %s", joinTags(e.ExtraInputs)))
	}
	if len(e.ExtraOutputs) > 0 {
		parts = append(parts, fmt.Sprintf("undeclared output tag(s): %s", joinTags(e.ExtraOutputs)))
	}
	return fmt.Sprintf("cannot bind step %q: %s", e.Step, strings.Join(parts, "; "))
}

// OverwriteError reports a build that would clobber an existing output file
// without the overwrite flag set.
type OverwriteError struct {
	Tag  Tag
	Path string
}

func (e *OverwriteError) Error() string {
	return fmt.Sprintf("output file for tag %q already exists at %s (overwrite not permitted)", e.Tag, e.Path)
}

func joinTags(tags []Tag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, ", ")
}
