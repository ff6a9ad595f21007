// Package gobake provides a pipeline-step framework for file-based data
// transformations.
//
// gobake composes independent steps, each declaring named input and output
// file resources (tags) and a transformation over them, into pipelines. Its
// centerpiece is the sequence combinator: it chains an ordered list of steps
// into a single composite step, statically validates that the tag-based data
// flow between the steps is well-formed, and at run time wires each step's
// outputs into the next step's inputs through automatically managed
// intermediate files.
//
// Core components include:
//   - Steps: Individual units of work with declared input/output tag sets
//   - Sequences: Composite steps chaining children strictly in order
//   - Execution plans: Per-run path assignment with isolated temp directories
//   - Runner: Middleware-based execution with logging, metrics, and tracing
//
// Composition is validated eagerly, so a malformed sequence can never begin
// running. A composed sequence satisfies the same step capability as its
// children and can be nested inside another sequence without special-casing.
package gobake
