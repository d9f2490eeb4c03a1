package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// fakeTodoApp is an in-memory stand-in for a TodoMVC page driven by a session.
type fakeTodoApp struct {
	loaded    bool
	input     string
	items     []bool // completed flags
	navigated []string
}

func (a *fakeTodoApp) countText() string {
	left := 0
	for _, done := range a.items {
		if !done {
			left++
		}
	}
	if left == 1 {
		return "1 item left"
	}
	return fmt.Sprintf("%d items left", left)
}

// fakeSession implements Session over a fakeTodoApp. Hooks override behaviour
// per operation.
type fakeSession struct {
	id     string
	app    fakeTodoApp
	closes atomic.Int32

	onNavigate func(ctx context.Context, url string) error
	onWait     func(ctx context.Context, selector string) error
	onClick    func(ctx context.Context, selector string) error
	screenshot func(ctx context.Context) ([]byte, error)

	mu  sync.Mutex
	ops []string
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (s *fakeSession) record(op string) {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.record("navigate")
	if s.onNavigate != nil {
		if err := s.onNavigate(ctx, url); err != nil {
			return err
		}
	}
	s.app = fakeTodoApp{loaded: true, navigated: append(s.app.navigated, url)}
	return nil
}

func (s *fakeSession) Type(_ context.Context, selector, text string) error {
	s.record("type")
	if !s.app.loaded {
		return ErrNoPage
	}
	if selector != SelectorNewTodo {
		return fmt.Errorf("element %q not found", selector)
	}
	s.app.input += text
	return nil
}

func (s *fakeSession) Press(_ context.Context, selector, key string) error {
	s.record("press")
	if selector != SelectorNewTodo {
		return fmt.Errorf("element %q not found", selector)
	}
	if key == "Enter" && s.app.input != "" {
		s.app.items = append(s.app.items, false)
		s.app.input = ""
	}
	return nil
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	s.record("click")
	if s.onClick != nil {
		return s.onClick(ctx, selector)
	}
	if selector != SelectorToggle || len(s.app.items) == 0 {
		return fmt.Errorf("element %q not found", selector)
	}
	s.app.items[0] = !s.app.items[0]
	return nil
}

func (s *fakeSession) WaitFor(ctx context.Context, selector string) error {
	s.record("wait")
	if s.onWait != nil {
		return s.onWait(ctx, selector)
	}
	ok, _ := s.Exists(ctx, selector)
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSession) Evaluate(_ context.Context, script string) (any, error) {
	s.record("evaluate")
	switch script {
	case ScriptTodoCount:
		return len(s.app.items), nil
	case ScriptTodoCountText:
		return s.app.countText(), nil
	default:
		return nil, errors.New("ReferenceError: script not understood")
	}
}

func (s *fakeSession) Visible(ctx context.Context, selector string) (bool, error) {
	s.record("visible")
	switch selector {
	case SelectorMain, SelectorFooter:
		return len(s.app.items) > 0, nil
	default:
		return s.Exists(ctx, selector)
	}
}

func (s *fakeSession) Exists(_ context.Context, selector string) (bool, error) {
	switch selector {
	case SelectorApp, SelectorNewTodo, SelectorMain, SelectorFooter, SelectorCount:
		return s.app.loaded, nil
	case SelectorTodoItem, SelectorToggle:
		return len(s.app.items) > 0, nil
	default:
		return false, nil
	}
}

func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	if s.screenshot != nil {
		return s.screenshot(ctx)
	}
	return []byte("\x89PNG"), nil
}

func (s *fakeSession) Close() error {
	s.closes.Add(1)
	return nil
}

// fakeFactory hands out fakeSessions and remembers them.
type fakeFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	prepare  func(*fakeSession)
	err      error
}

func (f *fakeFactory) NewSession(_ context.Context) (Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newFakeSession(fmt.Sprintf("session-%d", len(f.sessions)))
	if f.prepare != nil {
		f.prepare(s)
	}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// fakeSnapshotter records captures and can fail on demand.
type fakeSnapshotter struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (f *fakeSnapshotter) Capture(_ context.Context, scenario, name string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.names = append(f.names, scenario+"/"+name)
	f.mu.Unlock()
	return nil
}
