package gobake

import "sort"

// externalOrigin marks a tag that enters the sequence from outside rather
// than being produced by one of its steps.
const externalOrigin = -1

// scopeEntry records where a tag originates (externalOrigin or the index of
// the producing step) and how many times later steps consume it.
type scopeEntry struct {
	origin   int
	refCount int
}

// buildLexicalScope walks the steps in declared order and resolves every
// touched tag. An input tag not yet in scope is registered as external with
// one reference; an input tag already in scope gets its reference count
// bumped. An output tag must not already exist in scope, whether as an
// earlier step's output or as any consumed tag, so order matters.
func buildLexicalScope(steps []Step) (map[Tag]scopeEntry, error) {
	scope := make(map[Tag]scopeEntry)
	for i, step := range steps {
		for tag := range step.Inputs() {
			entry, ok := scope[tag]
			if !ok {
				scope[tag] = scopeEntry{origin: externalOrigin, refCount: 1}
				continue
			}
			entry.refCount++
			scope[tag] = entry
		}
		for tag := range step.Outputs() {
			if _, ok := scope[tag]; ok {
				return nil, &TagConflictError{Tag: tag, StepIndex: i}
			}
			scope[tag] = scopeEntry{origin: i}
		}
	}
	return scope, nil
}

// determineInterface derives the sequence-level input and output tag sets
// from a resolved scope. Inputs are the external-origin tags; raw outputs
// are the tags no later step consumes. Every exposed intermediate must be
// generated inside the sequence; violations are reported together, sorted.
func determineInterface(scope map[Tag]scopeEntry, exposed TagSet) (inputs, outputs TagSet, err error) {
	inputs = NewTagSet()
	outputs = NewTagSet()
	for tag, entry := range scope {
		if entry.origin == externalOrigin {
			inputs.Add(tag)
		}
		if entry.refCount == 0 {
			outputs.Add(tag)
		}
	}

	var bad []Tag
	for tag := range exposed {
		entry, ok := scope[tag]
		if !ok || entry.origin == externalOrigin {
			bad = append(bad, tag)
		}
	}
	if len(bad) > 0 {
		sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })
		return nil, nil, &ExposeError{Tags: bad}
	}

	return inputs, outputs.Union(exposed), nil
}
