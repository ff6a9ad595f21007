package gobake

import (
	"context"
	"fmt"
)

// boundSequence is a sequence bound to concrete boundary paths. Building it
// plans one run and executes the children strictly in declared order.
type boundSequence struct {
	seq     *SequenceStep
	inputs  PathMap
	outputs PathMap
}

// Build plans the run and executes every child step in order, fail-fast.
// Children are always built with overwrite permitted: the plan directs
// their outputs to fresh temporary paths or to the caller's designated
// locations, so individual steps never need to guard against overwriting.
// The composite honors its own overwrite flag for its boundary outputs.
//
// A child failure aborts the remaining steps immediately. There is no
// retry, rollback, or partial-result reporting; already-written outputs
// stay on disk. The run's temporary directory is removed on every exit
// path unless the sequence was composed with WithRetainTempDir.
func (b *boundSequence) Build(ctx context.Context, overwrite bool) error {
	if !overwrite {
		if err := checkOverwrite(b.outputs); err != nil {
			return err
		}
	}

	plan, err := b.seq.plan(b.inputs, b.outputs)
	if err != nil {
		return err
	}
	if !b.seq.retainTemp {
		defer plan.Cleanup()
	}

	obs := b.seq.observer
	obs.RunPlanned(plan.runID, b.seq.name, len(b.seq.steps))

	// Phase 1: bind every child to its planned paths.
	bound := make([]BoundStep, len(b.seq.steps))
	for i, step := range b.seq.steps {
		sp := plan.steps[i]
		instance, err := step.Bind(sp.inputs, sp.outputs)
		if err != nil {
			obs.RunFailed(plan.runID, i, step.Name(), err)
			return fmt.Errorf("binding step %q: %w", step.Name(), err)
		}
		bound[i] = instance
	}

	// Phase 2: run the instances. Step i+1 does not begin until step i has
	// fully completed.
	for i, instance := range bound {
		name := b.seq.steps[i].Name()
		obs.StepStarted(plan.runID, i, name)
		if err := instance.Build(ctx, true); err != nil {
			obs.RunFailed(plan.runID, i, name, err)
			return fmt.Errorf("step %q failed: %w", name, err)
		}
		obs.StepCompleted(plan.runID, i, name)
	}

	obs.RunCompleted(plan.runID)
	return nil
}
