// Package scenario runs named, ordered browser interaction scenarios against
// a web application and reports a pass/fail result for each.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StepKind identifies the browser operation a Step performs.
type StepKind string

const (
	// StepNavigate loads URL, resolved against the runner's base URL.
	StepNavigate StepKind = "navigate"
	// StepType types Text into the element matching Selector.
	StepType StepKind = "type"
	// StepPress sends the named Key to the element matching Selector.
	StepPress StepKind = "press"
	// StepClick clicks the element matching Selector.
	StepClick StepKind = "click"
	// StepWait blocks until an element matching Selector exists.
	StepWait StepKind = "wait"
	// StepEvaluate evaluates Script in the page and yields its value.
	StepEvaluate StepKind = "evaluate"
	// StepVisible yields whether the element matching Selector is visible.
	StepVisible StepKind = "visible"
	// StepExists yields whether an element matching Selector exists.
	StepExists StepKind = "exists"
	// StepSnapshot captures the page and hands it to the snapshotter as Name.
	StepSnapshot StepKind = "snapshot"
)

// String returns the kind name.
func (k StepKind) String() string {
	return string(k)
}

// IsQuery reports whether the step yields a value that may be asserted.
func (k StepKind) IsQuery() bool {
	switch k {
	case StepEvaluate, StepVisible, StepExists:
		return true
	default:
		return false
	}
}

// Step is one interaction in a Scenario.
type Step struct {
	Kind     StepKind      `yaml:"action"`
	Selector string        `yaml:"selector,omitempty"`
	Text     string        `yaml:"text,omitempty"`
	Key      string        `yaml:"key,omitempty"`
	URL      string        `yaml:"url,omitempty"`
	Script   string        `yaml:"script,omitempty"`
	Name     string        `yaml:"name,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"` // Zero uses the runner's step timeout
	Expect   any           `yaml:"expect,omitempty"`  // Asserted against the value of a query step when non-nil
}

// String renders the step for logs and failure messages.
func (s Step) String() string {
	switch s.Kind {
	case StepNavigate:
		return fmt.Sprintf("navigate(%q)", s.URL)
	case StepType:
		return fmt.Sprintf("type(%q, %q)", s.Selector, s.Text)
	case StepPress:
		return fmt.Sprintf("press(%q, %s)", s.Selector, s.Key)
	case StepClick:
		return fmt.Sprintf("click(%q)", s.Selector)
	case StepWait:
		return fmt.Sprintf("wait(%q)", s.Selector)
	case StepEvaluate:
		return fmt.Sprintf("evaluate(%q)", s.Script)
	case StepVisible:
		return fmt.Sprintf("visible(%q)", s.Selector)
	case StepExists:
		return fmt.Sprintf("exists(%q)", s.Selector)
	case StepSnapshot:
		return fmt.Sprintf("snapshot(%q)", s.Name)
	default:
		return fmt.Sprintf("%s(?)", s.Kind)
	}
}

// Validate checks that the step carries the fields its kind needs.
func (s Step) Validate() error {
	switch s.Kind {
	case StepNavigate:
		// URL may be empty: the base URL itself.
	case StepType:
		if s.Selector == "" {
			return errors.New("type step requires a selector")
		}
	case StepPress:
		if s.Selector == "" || s.Key == "" {
			return errors.New("press step requires a selector and a key")
		}
	case StepClick, StepWait, StepVisible, StepExists:
		if s.Selector == "" {
			return fmt.Errorf("%s step requires a selector", s.Kind)
		}
	case StepEvaluate:
		if s.Script == "" {
			return errors.New("evaluate step requires a script")
		}
	case StepSnapshot:
		if s.Name == "" {
			return errors.New("snapshot step requires a name")
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	if s.Timeout < 0 {
		return errors.New("step timeout must not be negative")
	}
	if s.Expect != nil && !s.Kind.IsQuery() {
		return fmt.Errorf("%s step cannot carry an expectation", s.Kind)
	}
	return nil
}

// Scenario is a named ordered sequence of steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Validate checks the scenario and every step in it.
func (sc Scenario) Validate() error {
	if sc.Name == "" {
		return errors.New("scenario requires a name")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	for i, st := range sc.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", sc.Name, i, err)
		}
	}
	return nil
}

// State is the lifecycle position of a scenario execution. Passed and Failed
// are terminal. Releasing the session afterwards does not change State; it is
// reported by Result.Disposed.
type State int

const (
	// StateCreated is a scenario that has not acquired a session yet.
	StateCreated State = iota
	// StateRunning is a scenario executing its steps.
	StateRunning
	// StatePassed is a scenario whose steps and assertions all succeeded.
	StatePassed
	// StateFailed is a scenario stopped by its first failing step or assertion.
	StateFailed
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StatePassed:
		return "Passed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Session is one isolated browser instance. Every blocking call honours ctx.
type Session interface {
	// ID identifies the session in logs and metrics.
	ID() string
	Navigate(ctx context.Context, url string) error
	Type(ctx context.Context, selector, text string) error
	Press(ctx context.Context, selector, key string) error
	Click(ctx context.Context, selector string) error
	// WaitFor blocks until an element matching selector exists or ctx ends.
	WaitFor(ctx context.Context, selector string) error
	// Evaluate runs a JavaScript expression and returns its JSON value.
	Evaluate(ctx context.Context, script string) (any, error)
	Visible(ctx context.Context, selector string) (bool, error)
	Exists(ctx context.Context, selector string) (bool, error)
	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the browser. Calls after the first return nil.
	Close() error
}

// SessionFactory creates a fresh Session per scenario.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

// NewSession calls f(ctx).
func (f SessionFactoryFunc) NewSession(ctx context.Context) (Session, error) {
	return f(ctx)
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Index    int
	Step     Step
	Value    any // Value yielded by a query step
	Err      error
	Duration time.Duration
}

// Result is the outcome of one scenario execution.
type Result struct {
	Scenario  string
	SessionID string
	// State is the terminal outcome, StatePassed or StateFailed.
	State State
	// Err is the first step failure or violated assertion.
	Err   error
	Steps []StepResult
	// Snapshots lists the names of snapshots delivered successfully.
	Snapshots []string
	// SnapshotErrors holds snapshot failures. They never affect State.
	SnapshotErrors []error
	// Disposed reports whether the session was released.
	Disposed bool
	// CloseErr is the error returned when releasing the session, if any.
	CloseErr error
	Duration time.Duration
}

// Passed reports whether the scenario passed.
func (r Result) Passed() bool {
	return r.State == StatePassed
}

// Report collects the results of a suite run in scenario order.
type Report struct {
	Results []Result
	// Err is a suite-level environment failure that prevented scenarios from running.
	Err error
}

// Passed returns the number of passed scenarios.
func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed scenarios.
func (r Report) Failed() int {
	return len(r.Results) - r.Passed()
}

// OK reports whether every scenario passed and the environment came up.
func (r Report) OK() bool {
	return r.Err == nil && r.Failed() == 0
}

// ExitCode returns 0 when the report is OK and 1 otherwise.
func (r Report) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Outcomes maps scenario name to terminal state, for comparing repeated runs.
func (r Report) Outcomes() map[string]State {
	out := make(map[string]State, len(r.Results))
	for _, res := range r.Results {
		out[res.Scenario] = res.State
	}
	return out
}
