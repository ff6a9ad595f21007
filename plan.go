package gobake

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ExecutionPlan assigns every step of one run a concrete path per tag.
// A plan and its temporary directory belong to exactly one run; distinct
// runs of the same sequence never share either.
type ExecutionPlan struct {
	runID    string
	tempDir  string
	tempMade bool
	steps    []stepPaths
}

type stepPaths struct {
	inputs  PathMap
	outputs PathMap
}

// plan resolves the paths for one run. For each step, in order: input tags
// resolve to the sequence's external input path when one exists, otherwise
// to the path the immediately preceding step produced for that tag. Output
// tags that are sequence-level outputs use the caller-supplied path; all
// others get a fresh temporary path under the run's directory.
func (s *SequenceStep) plan(seqInputs, seqOutputs PathMap) (*ExecutionPlan, error) {
	runID := uuid.NewString()
	p := &ExecutionPlan{
		runID:   runID,
		tempDir: filepath.Join(s.tempRoot, "gobake-"+runID),
		steps:   make([]stepPaths, 0, len(s.steps)),
	}

	prev := PathMap{}
	for i, step := range s.steps {
		inputs := PathMap{}
		for tag := range step.Inputs() {
			if path, ok := prev[tag]; ok {
				inputs[tag] = path
			}
			// External sequence inputs take priority.
			if path, ok := seqInputs[tag]; ok {
				inputs[tag] = path
			}
			if _, ok := inputs[tag]; !ok {
				// The scope resolver admits inputs produced more than one
				// step earlier, but path resolution only sees the preceding
				// step's outputs. Fail loudly rather than hand the step an
				// empty path.
				return nil, fmt.Errorf("planning step %q (index %d): no path for input tag %q: not a sequence input and not produced by the preceding step", step.Name(), i, tag)
			}
		}

		outputs := PathMap{}
		for tag := range step.Outputs() {
			if path, ok := seqOutputs[tag]; ok {
				outputs[tag] = path
				continue
			}
			path, err := p.allocTempPath()
			if err != nil {
				return nil, err
			}
			outputs[tag] = path
		}

		p.steps = append(p.steps, stepPaths{inputs: inputs, outputs: outputs})
		prev = outputs
	}
	return p, nil
}

// allocTempPath returns a fresh randomly named file path inside the run's
// temporary directory, creating the directory on first use. Creation is
// idempotent; concurrent runs are isolated by the run ID in the directory
// name rather than by any locking.
func (p *ExecutionPlan) allocTempPath() (string, error) {
	if !p.tempMade {
		if err := os.MkdirAll(p.tempDir, 0o755); err != nil {
			return "", fmt.Errorf("creating temp directory %s: %w", p.tempDir, err)
		}
		p.tempMade = true
	}
	return filepath.Join(p.tempDir, uuid.NewString()), nil
}

// RunID returns the plan's unique per-run identifier.
func (p *ExecutionPlan) RunID() string {
	return p.runID
}

// TempDir returns the path of the run's temporary directory. The directory
// exists only once a temporary path has been allocated.
func (p *ExecutionPlan) TempDir() string {
	return p.tempDir
}

// Cleanup removes the run's temporary directory and everything in it.
// It is a no-op when the directory was never created.
func (p *ExecutionPlan) Cleanup() error {
	if !p.tempMade {
		return nil
	}
	return os.RemoveAll(p.tempDir)
}
