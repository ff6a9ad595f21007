package gobake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCall captures the paths a step saw when it was built.
type buildCall struct {
	step    string
	inputs  PathMap
	outputs PathMap
}

// callRecorder collects build calls across steps and runs.
type callRecorder struct {
	mu    sync.Mutex
	calls []buildCall
}

func (r *callRecorder) record(step string, inputs, outputs PathMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, buildCall{step: step, inputs: inputs.Clone(), outputs: outputs.Clone()})
}

func (r *callRecorder) byStep(step string) (buildCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, call := range r.calls {
		if call.step == step {
			return call, true
		}
	}
	return buildCall{}, false
}

func (r *callRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, call := range r.calls {
		names[i] = call.step
	}
	return names
}

// recordingStep records its resolved paths and writes every output file.
func recordingStep(name string, inputs, outputs TagSet, rec *callRecorder) Step {
	return NewFuncStep(name, "", inputs, outputs,
		func(ctx context.Context, in, out PathMap) error {
			rec.record(name, in, out)
			for _, path := range out {
				if err := os.WriteFile(path, []byte(name+"\n"), 0o644); err != nil {
					return err
				}
			}
			return nil
		})
}

func TestRunWiresPaths(t *testing.T) {
	dir := t.TempDir()
	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("raw"), NewTagSet("clean"), rec)
	b := recordingStep("b", NewTagSet("clean"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b}, WithTempRoot(dir))
	require.NoError(t, err)

	rawPath := filepath.Join(dir, "raw.csv")
	reportPath := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	bound, err := seq.Bind(PathMap{"raw": rawPath}, PathMap{"report": reportPath})
	require.NoError(t, err)
	require.NoError(t, bound.Build(context.Background(), true))

	callA, ok := rec.byStep("a")
	require.True(t, ok)
	callB, ok := rec.byStep("b")
	require.True(t, ok)

	// A reads the external raw path and writes "clean" somewhere temporary.
	assert.Equal(t, rawPath, callA.inputs["raw"])
	cleanPath := callA.outputs["clean"]
	assert.True(t, strings.HasPrefix(filepath.Base(filepath.Dir(cleanPath)), "gobake-"),
		"intermediate %q should live in a run temp directory", cleanPath)

	// B reads the exact temp path A wrote and writes the external report.
	assert.Equal(t, cleanPath, callB.inputs["clean"])
	assert.Equal(t, reportPath, callB.outputs["report"])

	content, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(content))
}

func TestRunExposedIntermediateUsesExternalPath(t *testing.T) {
	dir := t.TempDir()
	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("raw"), NewTagSet("clean"), rec)
	b := recordingStep("b", NewTagSet("clean"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b}, WithExposedIntermediates("clean"), WithTempRoot(dir))
	require.NoError(t, err)

	rawPath := filepath.Join(dir, "raw.csv")
	cleanPath := filepath.Join(dir, "clean.csv")
	reportPath := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	bound, err := seq.Bind(
		PathMap{"raw": rawPath},
		PathMap{"report": reportPath, "clean": cleanPath})
	require.NoError(t, err)
	require.NoError(t, bound.Build(context.Background(), true))

	callA, ok := rec.byStep("a")
	require.True(t, ok)
	assert.Equal(t, cleanPath, callA.outputs["clean"], "exposed intermediate should use the caller's path")

	callB, ok := rec.byStep("b")
	require.True(t, ok)
	assert.Equal(t, cleanPath, callB.inputs["clean"])

	_, err = os.Stat(cleanPath)
	assert.NoError(t, err, "exposed intermediate should persist after the run")
}

func TestRunFailFast(t *testing.T) {
	dir := t.TempDir()
	rec := &callRecorder{}
	boom := errors.New("boom")

	a := recordingStep("a", NewTagSet("raw"), NewTagSet("mid"), rec)
	b := NewFuncStep("b", "", NewTagSet("mid"), NewTagSet("bad"),
		func(ctx context.Context, in, out PathMap) error {
			return boom
		})
	c := recordingStep("c", NewTagSet("bad"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b, c}, WithTempRoot(dir))
	require.NoError(t, err)

	rawPath := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	bound, err := seq.Bind(PathMap{"raw": rawPath}, PathMap{"report": filepath.Join(dir, "out.csv")})
	require.NoError(t, err)

	err = bound.Build(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom, "the child's error must stay reachable")
	assert.Contains(t, err.Error(), `"b"`)
	assert.Equal(t, []string{"a"}, rec.names(), "step c must never run")
}

func TestRunTempDirRemoved(t *testing.T) {
	root := t.TempDir()
	tempRoot := filepath.Join(root, "tmp")
	require.NoError(t, os.Mkdir(tempRoot, 0o755))

	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("raw"), NewTagSet("clean"), rec)
	b := recordingStep("b", NewTagSet("clean"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b}, WithTempRoot(tempRoot))
	require.NoError(t, err)

	rawPath := filepath.Join(root, "raw.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	bound, err := seq.Bind(PathMap{"raw": rawPath}, PathMap{"report": filepath.Join(root, "out.csv")})
	require.NoError(t, err)
	require.NoError(t, bound.Build(context.Background(), true))

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "run temp directory should be removed after the run")
}

func TestRunTempDirRetained(t *testing.T) {
	root := t.TempDir()
	tempRoot := filepath.Join(root, "tmp")
	require.NoError(t, os.Mkdir(tempRoot, 0o755))

	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("raw"), NewTagSet("clean"), rec)
	b := recordingStep("b", NewTagSet("clean"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b}, WithTempRoot(tempRoot), WithRetainTempDir())
	require.NoError(t, err)

	rawPath := filepath.Join(root, "raw.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	bound, err := seq.Bind(PathMap{"raw": rawPath}, PathMap{"report": filepath.Join(root, "out.csv")})
	require.NoError(t, err)
	require.NoError(t, bound.Build(context.Background(), true))

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1, "retained run temp directory should survive")
	assert.True(t, strings.HasPrefix(entries[0].Name(), "gobake-"))
}

func TestConcurrentRunsDisjointTempDirs(t *testing.T) {
	root := t.TempDir()
	tempRoot := filepath.Join(root, "tmp")
	require.NoError(t, os.Mkdir(tempRoot, 0o755))

	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("raw"), NewTagSet("clean"), rec)
	b := recordingStep("b", NewTagSet("clean"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b}, WithTempRoot(tempRoot), WithRetainTempDir())
	require.NoError(t, err)

	rawPath := filepath.Join(root, "raw.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	const runs = 4
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		reportPath := filepath.Join(root, "out-"+string(rune('a'+i))+".csv")
		bound, err := seq.Bind(PathMap{"raw": rawPath}, PathMap{"report": reportPath})
		require.NoError(t, err)

		wg.Add(1)
		go func(i int, bound BoundStep) {
			defer wg.Done()
			errs[i] = bound.Build(context.Background(), true)
		}(i, bound)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "run %d", i)
	}

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Len(t, entries, runs, "each run should allocate its own temp directory")

	seen := map[string]bool{}
	for _, entry := range entries {
		assert.False(t, seen[entry.Name()])
		seen[entry.Name()] = true
	}
}

// eventObserver records observer callbacks in order.
type eventObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *eventObserver) add(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *eventObserver) RunPlanned(runID, sequence string, steps int) {
	o.add("planned " + sequence)
}
func (o *eventObserver) StepStarted(runID string, index int, name string)   { o.add("start " + name) }
func (o *eventObserver) StepCompleted(runID string, index int, name string) { o.add("done " + name) }
func (o *eventObserver) RunCompleted(runID string)                          { o.add("completed") }
func (o *eventObserver) RunFailed(runID string, index int, name string, err error) {
	o.add("failed " + name)
}

func TestRunObserverTransitions(t *testing.T) {
	dir := t.TempDir()
	rec := &callRecorder{}
	obs := &eventObserver{}

	a := recordingStep("a", NewTagSet("raw"), NewTagSet("mid"), rec)
	b := NewFuncStep("b", "", NewTagSet("mid"), NewTagSet("report"),
		func(ctx context.Context, in, out PathMap) error {
			return errors.New("boom")
		})

	seq, err := Sequence([]Step{a, b}, WithName("watched"), WithTempRoot(dir), WithObserver(obs))
	require.NoError(t, err)

	rawPath := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	bound, err := seq.Bind(PathMap{"raw": rawPath}, PathMap{"report": filepath.Join(dir, "out.csv")})
	require.NoError(t, err)
	require.Error(t, bound.Build(context.Background(), true))

	assert.Equal(t, []string{
		"planned watched",
		"start a",
		"done a",
		"start b",
		"failed b",
	}, obs.events)
}

func TestRunOverwriteGuardOnBoundaryOutputs(t *testing.T) {
	dir := t.TempDir()
	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("raw"), NewTagSet("clean"), rec)
	b := recordingStep("b", NewTagSet("clean"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b}, WithTempRoot(dir))
	require.NoError(t, err)

	rawPath := filepath.Join(dir, "raw.csv")
	reportPath := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))
	require.NoError(t, os.WriteFile(reportPath, []byte("old\n"), 0o644))

	bound, err := seq.Bind(PathMap{"raw": rawPath}, PathMap{"report": reportPath})
	require.NoError(t, err)

	err = bound.Build(context.Background(), false)
	var overwrite *OverwriteError
	require.ErrorAs(t, err, &overwrite)
	assert.Equal(t, Tag("report"), overwrite.Tag)
	assert.Empty(t, rec.names(), "no step may run when the guard trips")

	require.NoError(t, bound.Build(context.Background(), true))
}

func TestPlanRejectsMultiStepBackInput(t *testing.T) {
	// The scope resolver admits c consuming a tag produced two steps
	// earlier, but the planner only sees the preceding step's outputs.
	dir := t.TempDir()
	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("r1"), NewTagSet("x"), rec)
	b := recordingStep("b", NewTagSet("r2"), NewTagSet("y"), rec)
	c := recordingStep("c", NewTagSet("x", "y"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b, c}, WithTempRoot(dir))
	require.NoError(t, err, "composition itself accepts this shape")

	r1 := filepath.Join(dir, "r1")
	r2 := filepath.Join(dir, "r2")
	require.NoError(t, os.WriteFile(r1, []byte("1\n"), 0o644))
	require.NoError(t, os.WriteFile(r2, []byte("2\n"), 0o644))

	bound, err := seq.Bind(PathMap{"r1": r1, "r2": r2}, PathMap{"report": filepath.Join(dir, "out")})
	require.NoError(t, err)

	err = bound.Build(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)
	assert.Contains(t, err.Error(), "preceding step")
	assert.Empty(t, rec.names(), "planning fails before any step runs")
}

func TestRunnerExecute(t *testing.T) {
	dir := t.TempDir()
	rec := &callRecorder{}
	a := recordingStep("a", NewTagSet("raw"), NewTagSet("clean"), rec)
	b := recordingStep("b", NewTagSet("clean"), NewTagSet("report"), rec)

	seq, err := Sequence([]Step{a, b}, WithName("pipe"), WithTempRoot(dir))
	require.NoError(t, err)

	rawPath := filepath.Join(dir, "raw.csv")
	reportPath := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(rawPath, []byte("x\n"), 0o644))

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger), WithOverwrite(true), WithMiddleware(LoggingMiddleware()))

	err = runner.Execute(context.Background(), seq,
		PathMap{"raw": rawPath}, PathMap{"report": reportPath}, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.names())
}
