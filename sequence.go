package gobake

import "os"

// SequenceOption configures sequence composition.
type SequenceOption func(*sequenceOptions)

type sequenceOptions struct {
	name       string
	exposed    TagSet
	tempRoot   string
	retainTemp bool
	observer   RunObserver
}

// WithName sets a human-readable name for the composed sequence.
func WithName(name string) SequenceOption {
	return func(o *sequenceOptions) {
		o.name = name
	}
}

// WithExposedIntermediates promotes internally produced-and-consumed tags to
// sequence-level outputs. The tags must be generated inside the sequence.
func WithExposedIntermediates(tags ...Tag) SequenceOption {
	return func(o *sequenceOptions) {
		for _, tag := range tags {
			o.exposed.Add(tag)
		}
	}
}

// WithTempRoot overrides the directory under which per-run temporary
// directories are created. Defaults to the system temp location.
func WithTempRoot(dir string) SequenceOption {
	return func(o *sequenceOptions) {
		o.tempRoot = dir
	}
}

// WithRetainTempDir keeps each run's temporary directory on disk after the
// run finishes, for debugging. By default the directory is removed on every
// exit path, success or failure.
func WithRetainTempDir() SequenceOption {
	return func(o *sequenceOptions) {
		o.retainTemp = true
	}
}

// WithObserver registers an observer that receives run lifecycle
// notifications for every run of the sequence.
func WithObserver(obs RunObserver) SequenceOption {
	return func(o *sequenceOptions) {
		o.observer = obs
	}
}

// SequenceStep is a composite step that chains its children so each one's
// outputs may feed the next's inputs. It is an immutable record built once
// at composition time and reused across runs; it satisfies Step, so
// sequences can be nested inside other sequences.
type SequenceStep struct {
	name       string
	steps      []Step
	inputs     TagSet
	outputs    TagSet
	exposed    TagSet
	tempRoot   string
	retainTemp bool
	observer   RunObserver
}

// Sequence composes an ordered list of steps into a single composite step.
// Composition eagerly validates the tag flow between steps: every output
// tag may be produced by at most one step, and exposed intermediates must
// be generated inside the sequence. A malformed sequence is rejected here
// and can never begin running.
//
// An empty list is an error. A list of exactly one step is returned
// unchanged, with no validation beyond the length check; options are
// meaningless for it and are ignored.
func Sequence(steps []Step, opts ...SequenceOption) (Step, error) {
	if len(steps) == 0 {
		return nil, ErrEmptySequence
	}
	if len(steps) == 1 {
		return steps[0], nil
	}

	o := sequenceOptions{
		name:     "sequence",
		exposed:  NewTagSet(),
		tempRoot: os.TempDir(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	scope, err := buildLexicalScope(steps)
	if err != nil {
		return nil, err
	}
	inputs, outputs, err := determineInterface(scope, o.exposed)
	if err != nil {
		return nil, err
	}

	children := make([]Step, len(steps))
	copy(children, steps)

	return &SequenceStep{
		name:       o.name,
		steps:      children,
		inputs:     inputs,
		outputs:    outputs,
		exposed:    o.exposed,
		tempRoot:   o.tempRoot,
		retainTemp: o.retainTemp,
		observer:   o.observer,
	}, nil
}

// Name returns the sequence's name
func (s *SequenceStep) Name() string {
	return s.name
}

// Inputs returns the derived sequence-level input tag set: every tag that
// enters the sequence from outside.
func (s *SequenceStep) Inputs() TagSet {
	return s.inputs
}

// Outputs returns the derived sequence-level output tag set: every tag
// produced inside the sequence and never consumed downstream, plus the
// exposed intermediates.
func (s *SequenceStep) Outputs() TagSet {
	return s.outputs
}

// ExposedIntermediates returns the tags promoted to sequence outputs.
func (s *SequenceStep) ExposedIntermediates() TagSet {
	return s.exposed
}

// Steps returns the sequence's children in execution order.
func (s *SequenceStep) Steps() []Step {
	children := make([]Step, len(s.steps))
	copy(children, s.steps)
	return children
}

// Bind associates the sequence's boundary tags with concrete paths. The
// path maps must cover exactly the derived input and output tag sets;
// exposed intermediates are output tags and need caller-supplied paths.
func (s *SequenceStep) Bind(inputs, outputs PathMap) (BoundStep, error) {
	if err := checkBinding(s.name, s.inputs, s.outputs, inputs, outputs); err != nil {
		return nil, err
	}
	return &boundSequence{
		seq:     s,
		inputs:  inputs.Clone(),
		outputs: outputs.Clone(),
	}, nil
}
