package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario/internal"
)

const testBaseURL = "http://localhost:8000"

func newTestRunner(t *testing.T, f SessionFactory, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(f, testBaseURL, opts...)
	require.NoError(t, err)
	return r
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, testBaseURL)
	assert.Error(t, err)

	_, err = NewRunner(&fakeFactory{}, "localhost:8000")
	assert.Error(t, err)

	_, err = NewRunner(&fakeFactory{}, testBaseURL, WithStepTimeout(0))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "step timeout")

	_, err = NewRunner(&fakeFactory{}, testBaseURL, WithParallel(0))
	assert.Error(t, err)

	_, err = NewRunner(&fakeFactory{}, testBaseURL, WithLogger(nil))
	assert.Error(t, err)
}

func TestRunner_TodoMVCScenariosPass(t *testing.T) {
	factory := &fakeFactory{}
	snaps := &fakeSnapshotter{}
	r := newTestRunner(t, factory, WithSnapshotter(snaps))

	report := r.RunAll(context.Background(), TodoMVC())

	require.Len(t, report.Results, 4)
	for _, res := range report.Results {
		assert.Equal(t, StatePassed, res.State, "%s: %v", res.Scenario, res.Err)
		assert.True(t, res.Disposed)
		assert.Empty(t, res.SnapshotErrors)
	}
	assert.True(t, report.OK())
	assert.Equal(t, 0, report.ExitCode())
	assert.Len(t, snaps.names, 4)

	// One fresh session per scenario, each closed exactly once.
	require.Len(t, factory.sessions, 4)
	for _, s := range factory.sessions {
		assert.Equal(t, int32(1), s.closes.Load())
	}
}

func TestRunner_TodoCountSingularPlural(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory)

	res := r.Run(context.Background(), TodoMVC()[3])
	require.True(t, res.Passed(), "%v", res.Err)

	var texts []any
	for _, sr := range res.Steps {
		if sr.Step.Kind == StepEvaluate {
			texts = append(texts, sr.Value)
		}
	}
	assert.Equal(t, []any{"1 item left", "0 items left"}, texts)
}

func TestRunner_StepFailureAbortsScenario(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory)

	sc := Scenario{
		Name: "broken",
		Steps: []Step{
			{Kind: StepNavigate},
			{Kind: StepClick, Selector: "#missing"},
			{Kind: StepExists, Selector: SelectorApp, Expect: true},
		},
	}
	res := r.Run(context.Background(), sc)

	assert.Equal(t, StateFailed, res.State)
	assert.Len(t, res.Steps, 2, "steps after the failure must not run")
	assert.Equal(t, KindNavigation, KindOf(res.Err))

	var se *StepError
	require.True(t, errors.As(res.Err, &se))
	assert.Equal(t, 1, se.Index)

	require.Len(t, factory.sessions, 1)
	assert.Equal(t, int32(1), factory.sessions[0].closes.Load())
	assert.True(t, res.Disposed)
}

func TestRunner_AssertionFailureDescribesExpectedAndObserved(t *testing.T) {
	r := newTestRunner(t, &fakeFactory{})

	sc := Scenario{
		Name: "wrong count",
		Steps: []Step{
			{Kind: StepNavigate},
			{Kind: StepEvaluate, Script: ScriptTodoCountText, Expect: "1 item left"},
		},
	}
	res := r.Run(context.Background(), sc)

	require.Equal(t, StateFailed, res.State)
	assert.Equal(t, KindAssertion, KindOf(res.Err))
	assert.Contains(t, res.Err.Error(), `expected "1 item left"`)
	assert.Contains(t, res.Err.Error(), `observed "0 items left"`)
}

func TestRunner_StepTimeoutReleasesSession(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory, WithStepTimeout(20*time.Millisecond))

	sc := Scenario{
		Name: "never appears",
		Steps: []Step{
			{Kind: StepNavigate},
			{Kind: StepWait, Selector: SelectorTodoItem},
		},
	}
	res := r.Run(context.Background(), sc)

	require.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrStepTimeout)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, KindNavigation, KindOf(res.Err))
	assert.Equal(t, int32(1), factory.sessions[0].closes.Load())
}

func TestRunner_PerStepTimeoutOverridesDefault(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory, WithStepTimeout(time.Hour))

	sc := Scenario{
		Name: "short wait",
		Steps: []Step{
			{Kind: StepNavigate},
			{Kind: StepWait, Selector: SelectorTodoItem, Timeout: 10 * time.Millisecond},
		},
	}
	start := time.Now()
	res := r.Run(context.Background(), sc)

	assert.ErrorIs(t, res.Err, ErrStepTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunner_PanicInSessionStillDisposes(t *testing.T) {
	factory := &fakeFactory{prepare: func(s *fakeSession) {
		s.onClick = func(context.Context, string) error { panic("boom") }
	}}
	r := newTestRunner(t, factory)

	sc := Scenario{Name: "panics", Steps: []Step{{Kind: StepNavigate}, {Kind: StepClick, Selector: SelectorToggle}}}
	res := r.Run(context.Background(), sc)

	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Err.Error(), "boom")
	assert.True(t, res.Disposed)
	assert.Equal(t, int32(1), factory.sessions[0].closes.Load())
}

func TestRunner_DisposalKeepsTerminalState(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory)

	passed := r.Run(context.Background(), TodoMVC()[0])
	assert.True(t, passed.Disposed)
	assert.Equal(t, StatePassed, passed.State)
	assert.True(t, passed.Passed())

	failing := Scenario{Name: "fails", Steps: []Step{{Kind: StepNavigate}, {Kind: StepEvaluate, Script: ScriptTodoCount, Expect: 3}}}
	failed := r.Run(context.Background(), failing)
	assert.True(t, failed.Disposed)
	assert.Equal(t, StateFailed, failed.State)
	assert.False(t, failed.Passed())
}

func TestRunner_SessionFactoryFailureIsEnvironmentError(t *testing.T) {
	r := newTestRunner(t, &fakeFactory{err: errors.New("chrome not found")})

	res := r.Run(context.Background(), TodoMVC()[0])

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, KindEnvironment, KindOf(res.Err))
	assert.False(t, res.Disposed)
	assert.Empty(t, res.Steps)
}

func TestRunner_InvalidScenarioFailsWithoutSession(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory)

	res := r.Run(context.Background(), Scenario{Name: "empty"})

	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, factory.sessions)
}

func TestRunner_SnapshotFailureDoesNotFailScenario(t *testing.T) {
	snaps := &fakeSnapshotter{err: errors.New("upload refused")}
	r := newTestRunner(t, &fakeFactory{}, WithSnapshotter(snaps))

	res := r.Run(context.Background(), TodoMVC()[0])

	assert.Equal(t, StatePassed, res.State)
	require.Len(t, res.SnapshotErrors, 1)
	assert.Contains(t, res.SnapshotErrors[0].Error(), "upload refused")
	assert.Empty(t, res.Snapshots)
}

func TestRunner_SnapshotFailureKeepsStepFailure(t *testing.T) {
	snaps := &fakeSnapshotter{err: errors.New("upload refused")}
	r := newTestRunner(t, &fakeFactory{}, WithSnapshotter(snaps))

	sc := Scenario{
		Name: "fails after snapshot",
		Steps: []Step{
			{Kind: StepNavigate},
			{Kind: StepSnapshot, Name: "before"},
			{Kind: StepVisible, Selector: SelectorMain, Expect: true},
		},
	}
	res := r.Run(context.Background(), sc)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, KindAssertion, KindOf(res.Err))
	assert.Len(t, res.SnapshotErrors, 1)
}

func TestRunner_ScreenshotFailureIsSnapshotError(t *testing.T) {
	factory := &fakeFactory{prepare: func(s *fakeSession) {
		s.screenshot = func(context.Context) ([]byte, error) { return nil, errors.New("no frame") }
	}}
	r := newTestRunner(t, factory, WithSnapshotter(&fakeSnapshotter{}))

	res := r.Run(context.Background(), TodoMVC()[1])

	assert.True(t, res.Passed())
	require.Len(t, res.SnapshotErrors, 1)
	assert.Contains(t, res.SnapshotErrors[0].Error(), "no frame")
}

func TestRunner_RunAllIsolatesFailures(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory)

	scenarios := []Scenario{
		{Name: "fails", Steps: []Step{{Kind: StepNavigate}, {Kind: StepExists, Selector: SelectorApp, Expect: false}}},
		TodoMVC()[0],
		TodoMVC()[2],
	}
	report := r.RunAll(context.Background(), scenarios)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "fails", report.Results[0].Scenario)
	assert.False(t, report.Results[0].Passed())
	assert.True(t, report.Results[1].Passed())
	assert.True(t, report.Results[2].Passed())
	assert.Equal(t, 2, report.Passed())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.ExitCode())
}

func TestRunner_RunAllParallelUsesDistinctSessions(t *testing.T) {
	factory := &fakeFactory{}
	r := newTestRunner(t, factory, WithParallel(4))

	var scenarios []Scenario
	for i := 0; i < 3; i++ {
		scenarios = append(scenarios, TodoMVC()...)
	}
	report := r.RunAll(context.Background(), scenarios)

	assert.True(t, report.OK())
	require.Len(t, factory.sessions, len(scenarios))
	ids := make(map[string]bool)
	for _, res := range report.Results {
		assert.False(t, ids[res.SessionID], "session %s reused", res.SessionID)
		ids[res.SessionID] = true
	}
	for i, res := range report.Results {
		assert.Equal(t, scenarios[i].Name, res.Scenario, "report order must follow input order")
	}
}

func TestRunner_ResultHookSeesDisposedResults(t *testing.T) {
	var seen []Result
	r := newTestRunner(t, &fakeFactory{}, WithResultHook(func(res Result) { seen = append(seen, res) }))

	report := r.RunAll(context.Background(), TodoMVC())

	require.Len(t, seen, len(report.Results))
	for i, res := range seen {
		assert.Equal(t, report.Results[i].Scenario, res.Scenario)
		assert.True(t, res.Disposed)
		assert.Equal(t, StatePassed, res.State)
	}
}

func TestRunner_RepeatedRunsAreIdentical(t *testing.T) {
	first := newTestRunner(t, &fakeFactory{}).RunAll(context.Background(), TodoMVC())
	second := newTestRunner(t, &fakeFactory{}).RunAll(context.Background(), TodoMVC())

	assert.Equal(t, first.Outcomes(), second.Outcomes())
}

func TestRunner_NavigationResolvesAgainstBase(t *testing.T) {
	var got []string
	factory := &fakeFactory{prepare: func(s *fakeSession) {
		s.onNavigate = func(_ context.Context, url string) error {
			got = append(got, url)
			return nil
		}
	}}
	r := newTestRunner(t, factory)

	sc := Scenario{Name: "urls", Steps: []Step{
		{Kind: StepNavigate},
		{Kind: StepNavigate, URL: "/"},
		{Kind: StepNavigate, URL: "#/completed"},
		{Kind: StepNavigate, URL: "/index.html?x=1"},
		{Kind: StepNavigate, URL: "http://example.com/app"},
	}}
	res := r.Run(context.Background(), sc)
	require.True(t, res.Passed(), "%v", res.Err)

	assert.Equal(t, []string{
		"http://localhost:8000",
		"http://localhost:8000/",
		"http://localhost:8000/#/completed",
		"http://localhost:8000/index.html?x=1",
		"http://example.com/app",
	}, got)
}

func TestRunner_NavigationFailure(t *testing.T) {
	factory := &fakeFactory{prepare: func(s *fakeSession) {
		s.onNavigate = func(context.Context, string) error { return errors.New("net::ERR_CONNECTION_REFUSED") }
	}}
	r := newTestRunner(t, factory)

	res := r.Run(context.Background(), TodoMVC()[0])

	assert.Equal(t, KindNavigation, KindOf(res.Err))
	assert.True(t, strings.Contains(res.Err.Error(), "ERR_CONNECTION_REFUSED"))
}

func TestRunner_DurationsUseClock(t *testing.T) {
	clock := internal.NewFakeClock(time.Time{}, time.Second)
	r := newTestRunner(t, &fakeFactory{}, withClock(clock))

	res := r.Run(context.Background(), TodoMVC()[0])

	require.True(t, res.Passed())
	for _, sr := range res.Steps {
		assert.Equal(t, time.Second, sr.Duration)
	}
	assert.Greater(t, res.Duration, 3*time.Second)
}

func TestRunner_Metrics(t *testing.T) {
	m := NewMetrics()
	snaps := &fakeSnapshotter{}
	r := newTestRunner(t, &fakeFactory{}, WithMetrics(m), WithSnapshotter(snaps))

	r.RunAll(context.Background(), TodoMVC())
	r.Run(context.Background(), Scenario{Name: "bad", Steps: []Step{{Kind: StepNavigate}, {Kind: StepClick, Selector: "#nope"}}})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.scenarios.WithLabelValues("Passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("Failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("click", "failure")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.snapshots.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessions))

	path := filepath.Join(t.TempDir(), "e2e.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "todomvc_e2e_scenarios_total")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(1, 1.0))
	assert.True(t, valuesEqual(0, float64(0)))
	assert.True(t, valuesEqual("1 item left", "1 item left"))
	assert.True(t, valuesEqual(false, false))
	assert.True(t, valuesEqual(map[string]any{"a": 1}, map[string]any{"a": 1.0}))
	assert.False(t, valuesEqual(1, "1"))
	assert.False(t, valuesEqual(true, nil))
	assert.False(t, valuesEqual("0 items left", "0 item left"))
}
