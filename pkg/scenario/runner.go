package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario/internal"
)

// Snapshotter receives page captures taken by snapshot steps.
type Snapshotter interface {
	Capture(ctx context.Context, scenario, name string, png []byte) error
}

// Option configures a Runner.
type Option func(*Runner) error

// WithStepTimeout sets the timeout applied to steps that do not set their own.
// Default: 10 seconds
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) error {
		if d <= 0 {
			return errors.New("step timeout must be positive")
		}
		r.stepTimeout = d
		return nil
	}
}

// WithScenarioTimeout bounds a whole scenario, session setup included.
// Default: 0 (no bound beyond the step timeouts)
func WithScenarioTimeout(d time.Duration) Option {
	return func(r *Runner) error {
		if d < 0 {
			return errors.New("scenario timeout must not be negative")
		}
		r.scenarioTimeout = d
		return nil
	}
}

// WithSnapshotter sets where snapshot steps deliver captures.
// Without one, snapshot steps are skipped.
func WithSnapshotter(s Snapshotter) Option {
	return func(r *Runner) error {
		r.snapshotter = s
		return nil
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		r.logger = l
		return nil
	}
}

// WithMetrics records counters on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) error {
		r.metrics = m
		return nil
	}
}

// WithParallel lets RunAll execute up to n scenarios at once, each in its own
// session. Default: 1
func WithParallel(n int) Option {
	return func(r *Runner) error {
		if n < 1 {
			return errors.New("parallelism must be at least 1")
		}
		r.parallel = n
		return nil
	}
}

// WithResultHook calls fn with every finished result. With parallelism above
// one, fn is called from several goroutines.
func WithResultHook(fn func(Result)) Option {
	return func(r *Runner) error {
		r.onResult = fn
		return nil
	}
}

func withClock(c internal.Clock) Option {
	return func(r *Runner) error {
		r.clock = c
		return nil
	}
}

// Runner executes scenarios, one fresh session each.
type Runner struct {
	factory         SessionFactory
	base            *url.URL
	stepTimeout     time.Duration
	scenarioTimeout time.Duration
	snapshotter     Snapshotter
	logger          *log.Logger
	metrics         *Metrics
	parallel        int
	onResult        func(Result)
	clock           internal.Clock
}

// NewRunner creates a Runner that opens sessions from factory and resolves
// navigation against baseURL (e.g. "http://localhost:8000").
func NewRunner(factory SessionFactory, baseURL string, opts ...Option) (*Runner, error) {
	if factory == nil {
		return nil, errors.New("session factory must not be nil")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	r := &Runner{
		factory:     factory,
		base:        base,
		stepTimeout: 10 * time.Second,
		logger:      &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}},
		parallel:    1,
		clock:       internal.SystemClock{},
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// BaseURL returns the URL navigation steps are resolved against.
func (r *Runner) BaseURL() string {
	return r.base.String()
}

// RunAll runs every scenario and returns their results in input order.
// A failing scenario never stops the others.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) Report {
	results := make([]Result, len(scenarios))

	var g errgroup.Group
	g.SetLimit(r.parallel)
	for i := range scenarios {
		g.Go(func() error {
			results[i] = r.Run(ctx, scenarios[i])
			return nil
		})
	}
	_ = g.Wait()

	return Report{Results: results}
}

// Run executes sc in a fresh session. The session is closed exactly once on
// every path, including a panic raised by the session.
func (r *Runner) Run(ctx context.Context, sc Scenario) (res Result) {
	start := r.clock.Now()
	res = Result{Scenario: sc.Name, State: StateCreated}

	if err := sc.Validate(); err != nil {
		res.State = StateFailed
		res.Err = err
		r.finish(&res, start)
		return res
	}

	if r.scenarioTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.scenarioTimeout)
		defer cancel()
	}

	sess, err := r.factory.NewSession(ctx)
	if err != nil {
		res.State = StateFailed
		res.Err = &EnvironmentError{Component: "browser", Err: err}
		r.finish(&res, start)
		return res
	}
	r.metrics.sessionOpened()
	res.SessionID = sess.ID()

	release := onceCloser(sess)
	defer func() {
		if p := recover(); p != nil {
			res.State = StateFailed
			res.Err = fmt.Errorf("scenario panicked: %v", p)
		}
		res.CloseErr = release()
		res.Disposed = true
		r.metrics.sessionClosed()
		r.logger.Debug().Str("scenario", sc.Name).Str("session", res.SessionID).Msg("session released")
		r.finish(&res, start)
	}()

	r.logger.Debug().Str("scenario", sc.Name).Str("session", res.SessionID).Msg("session opened")
	res.State = StateRunning

	for i, st := range sc.Steps {
		sr := r.runStep(ctx, sess, sc.Name, i, st, &res)
		res.Steps = append(res.Steps, sr)
		if sr.Err != nil {
			res.State = StateFailed
			res.Err = sr.Err
			return res
		}
	}

	res.State = StatePassed
	return res
}

func (r *Runner) finish(res *Result, start time.Time) {
	res.Duration = r.clock.Now().Sub(start)
	r.metrics.recordScenario(res.State, res.Duration)
	if r.onResult != nil {
		r.onResult(*res)
	}

	if res.Passed() {
		r.logger.Info().Str("scenario", res.Scenario).Dur("duration", res.Duration).Msg("scenario passed")
		return
	}
	r.logger.Error().Str("scenario", res.Scenario).Str("kind", KindOf(res.Err).String()).Err(res.Err).Msg("scenario failed")
}

// runStep executes one step under its own timeout.
func (r *Runner) runStep(ctx context.Context, sess Session, scenarioName string, index int, st Step, res *Result) StepResult {
	timeout := st.Timeout
	if timeout == 0 {
		timeout = r.stepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.clock.Now()
	sr := StepResult{Index: index, Step: st}

	r.logger.Debug().Str("scenario", scenarioName).Int("step", index).Str("op", st.String()).Msg("step started")

	value, err := r.execute(stepCtx, sess, scenarioName, st, res)
	sr.Duration = r.clock.Now().Sub(start)
	sr.Value = value

	if err != nil {
		if stepCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("%w after %v: %w", ErrStepTimeout, timeout, err)
		}
		sr.Err = &StepError{Index: index, Step: st, Err: err}
	} else if st.Expect != nil && !valuesEqual(st.Expect, value) {
		sr.Err = &AssertionError{Index: index, Step: st, Expected: st.Expect, Observed: value}
	}

	r.metrics.recordStep(st.Kind, sr.Err)
	return sr
}

func (r *Runner) execute(ctx context.Context, sess Session, scenarioName string, st Step, res *Result) (any, error) {
	switch st.Kind {
	case StepNavigate:
		target, err := r.resolve(st.URL)
		if err != nil {
			return nil, err
		}
		return nil, sess.Navigate(ctx, target)
	case StepType:
		return nil, sess.Type(ctx, st.Selector, st.Text)
	case StepPress:
		return nil, sess.Press(ctx, st.Selector, st.Key)
	case StepClick:
		return nil, sess.Click(ctx, st.Selector)
	case StepWait:
		return nil, sess.WaitFor(ctx, st.Selector)
	case StepEvaluate:
		v, err := sess.Evaluate(ctx, st.Script)
		if err != nil {
			return nil, err
		}
		return normalize(v), nil
	case StepVisible:
		return sess.Visible(ctx, st.Selector)
	case StepExists:
		return sess.Exists(ctx, st.Selector)
	case StepSnapshot:
		r.snapshot(ctx, sess, scenarioName, st.Name, res)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown step kind %q", st.Kind)
	}
}

// snapshot captures the page. Failures land in res.SnapshotErrors and never
// fail the scenario.
func (r *Runner) snapshot(ctx context.Context, sess Session, scenarioName, name string, res *Result) {
	if r.snapshotter == nil {
		return
	}
	png, err := sess.Screenshot(ctx)
	if err == nil {
		err = r.snapshotter.Capture(ctx, scenarioName, name, png)
	}
	r.metrics.recordSnapshot(err)
	if err != nil {
		r.logger.Warn().Str("scenario", scenarioName).Str("snapshot", name).Err(err).Msg("snapshot failed")
		res.SnapshotErrors = append(res.SnapshotErrors, fmt.Errorf("snapshot %q: %w", name, err))
		return
	}
	res.Snapshots = append(res.Snapshots, name)
}

// resolve turns a step URL into an absolute URL under the base.
func (r *Runner) resolve(ref string) (string, error) {
	if ref == "" {
		return r.base.String(), nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid navigation URL %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base := *r.base
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery, Fragment: u.Fragment}).String(), nil
}

// onceCloser returns a func that closes sess the first time it is called.
func onceCloser(sess Session) func() error {
	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() { err = sess.Close() })
		return err
	}
}

// normalize round-trips v through JSON so values from different backends
// compare alike (all numbers become float64).
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// valuesEqual compares an expectation against an observed value after
// normalising both.
func valuesEqual(expected, observed any) bool {
	e, o := normalize(expected), normalize(observed)
	if ef, ok := e.(float64); ok {
		of, ok := o.(float64)
		return ok && ef == of
	}
	eb, err1 := json.Marshal(e)
	ob, err2 := json.Marshal(o)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(eb) == string(ob)
}
