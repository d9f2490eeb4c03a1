package scenario

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrStepTimeout   = errors.New("step timed out")
	ErrNoPage        = errors.New("no page open")
	ErrSessionClosed = errors.New("browser session closed")
)

// ErrorKind classifies scenario failures.
type ErrorKind int

const (
	// KindUnknown is an error that carries no classification.
	KindUnknown ErrorKind = iota
	// KindNavigation covers unreachable targets, timeouts, missing selectors
	// and script exceptions.
	KindNavigation
	// KindAssertion is an observed value that differs from the expected one.
	KindAssertion
	// KindEnvironment is a failure to bring up the display, server or browser.
	KindEnvironment
)

// String returns a string representation of the ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindNavigation:
		return "navigation"
	case KindAssertion:
		return "assertion"
	case KindEnvironment:
		return "environment"
	default:
		return "unknown"
	}
}

// StepError is a step that failed to execute.
type StepError struct {
	Index int
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d %s failed: %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// AssertionError is a query step whose value differs from the expectation.
type AssertionError struct {
	Index    int
	Step     Step
	Expected any
	Observed any
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("step %d %s: expected %#v, observed %#v", e.Index, e.Step, e.Expected, e.Observed)
}

// EnvironmentError is a failure of the surrounding infrastructure.
type EnvironmentError struct {
	Component string // e.g. "display", "server", "browser"
	Err       error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Component, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Assertion and environment errors win over the step
// error that may wrap them.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var ae *AssertionError
	if errors.As(err, &ae) {
		return KindAssertion
	}
	var ee *EnvironmentError
	if errors.As(err, &ee) {
		return KindEnvironment
	}
	var se *StepError
	if errors.As(err, &se) {
		return KindNavigation
	}
	if errors.Is(err, ErrStepTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindNavigation
	}
	return KindUnknown
}
