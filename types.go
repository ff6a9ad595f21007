package gobake

import (
	"context"
	"sort"
)

// Tag is an opaque string identifier for a logical named file resource
// exchanged between steps.
type Tag string

// TagSet is an unordered collection of tags.
type TagSet map[Tag]struct{}

// NewTagSet creates a tag set containing the given tags.
func NewTagSet(tags ...Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, tag := range tags {
		s[tag] = struct{}{}
	}
	return s
}

// Has reports whether the set contains tag.
func (s TagSet) Has(tag Tag) bool {
	_, ok := s[tag]
	return ok
}

// Add inserts tag into the set.
func (s TagSet) Add(tag Tag) {
	s[tag] = struct{}{}
}

// Union returns a new set containing every tag from both sets.
func (s TagSet) Union(other TagSet) TagSet {
	u := make(TagSet, len(s)+len(other))
	for tag := range s {
		u[tag] = struct{}{}
	}
	for tag := range other {
		u[tag] = struct{}{}
	}
	return u
}

// Clone returns an independent copy of the set.
func (s TagSet) Clone() TagSet {
	c := make(TagSet, len(s))
	for tag := range s {
		c[tag] = struct{}{}
	}
	return c
}

// Sorted returns the set's tags in lexicographic order.
// Tag sets are unordered by contract; Sorted exists so error messages
// and log output stay deterministic.
func (s TagSet) Sorted() []Tag {
	tags := make([]Tag, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// PathMap associates tags with concrete filesystem paths.
type PathMap map[Tag]string

// Clone returns an independent copy of the path map.
func (m PathMap) Clone() PathMap {
	c := make(PathMap, len(m))
	for tag, path := range m {
		c[tag] = path
	}
	return c
}

// Step is the minimal unit of computation: a declared input tag set, a
// declared output tag set, and a way to bind concrete paths to those tags.
// A composed sequence satisfies Step itself, so sequences nest without
// special-casing.
type Step interface {
	// Name returns the step's name
	Name() string

	// Inputs returns the step's declared input tag set
	Inputs() TagSet

	// Outputs returns the step's declared output tag set
	Outputs() TagSet

	// Bind associates every declared tag with a concrete filesystem path,
	// producing an executable instance of the step. The supplied path maps
	// must cover exactly the declared tag sets.
	Bind(inputs, outputs PathMap) (BoundStep, error)
}

// BoundStep is a step instance bound to concrete paths for one run.
type BoundStep interface {
	// Build performs the step's transformation. When overwrite is false the
	// step must refuse to clobber existing output files.
	Build(ctx context.Context, overwrite bool) error
}

// StepFactory creates a new step instance from its serialized definition.
// It's used by the registry to instantiate steps from pipeline documents.
type StepFactory func(def StepDef) (Step, error)

// Logger provides a simple interface for pipeline logging
type Logger interface {
	// Debug logs a message at debug level
	Debug(format string, args ...interface{})

	// Info logs a message at info level
	Info(format string, args ...interface{})

	// Warn logs a message at warning level
	Warn(format string, args ...interface{})

	// Error logs a message at error level
	Error(format string, args ...interface{})
}

// RunnerFunc is the core function type for executing a step against
// concrete boundary paths.
type RunnerFunc func(ctx context.Context, step Step, inputs, outputs PathMap, logger Logger) error

// Middleware represents a function that wraps step execution.
// Middleware can perform actions before and after a run, modify the
// context, or skip execution entirely.
type Middleware func(next RunnerFunc) RunnerFunc

// RunnerOption is a function that configures a Runner
type RunnerOption func(*Runner)

// RunObserver receives lifecycle notifications for one run of a sequence.
// Observers must be safe for use across concurrent runs; all callbacks for
// a single run arrive from one goroutine, in order.
type RunObserver interface {
	// RunPlanned is called once per run, after path planning succeeds.
	RunPlanned(runID, sequence string, steps int)

	// StepStarted is called immediately before step index starts building.
	StepStarted(runID string, index int, name string)

	// StepCompleted is called after step index builds successfully.
	StepCompleted(runID string, index int, name string)

	// RunCompleted is called after every step has built successfully.
	RunCompleted(runID string)

	// RunFailed is called when step index fails; no further steps run.
	RunFailed(runID string, index int, name string, err error)
}

// NopObserver is a RunObserver that ignores every notification.
type NopObserver struct{}

func (NopObserver) RunPlanned(runID, sequence string, steps int)            {}
func (NopObserver) StepStarted(runID string, index int, name string)        {}
func (NopObserver) StepCompleted(runID string, index int, name string)      {}
func (NopObserver) RunCompleted(runID string)                               {}
func (NopObserver) RunFailed(runID string, index int, name string, e error) {}

// Status values for runs and steps
const (
	// StatusPlanned means paths have been assigned but no step has started
	StatusPlanned = "planned"

	// StatusRunning means currently in progress
	StatusRunning = "running"

	// StatusCompleted means successfully finished
	StatusCompleted = "completed"

	// StatusFailed means execution failed
	StatusFailed = "failed"
)
