package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// ChromedpFactory launches one Chrome per session through chromedp.
type ChromedpFactory struct {
	cfg Config
}

// NewChromedpFactory creates a chromedp-backed session factory.
func NewChromedpFactory(cfg Config) *ChromedpFactory {
	return &ChromedpFactory{cfg: cfg}
}

func (f *ChromedpFactory) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.DisableGPU,
	)
	if f.cfg.Viewport.Width > 0 && f.cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(f.cfg.Viewport.Width, f.cfg.Viewport.Height))
	}
	if f.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if f.cfg.Bin != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.Bin))
	}
	if len(f.cfg.Env) > 0 {
		opts = append(opts, chromedp.Env(f.cfg.Env...))
	}
	return opts
}

// NewSession starts a Chrome process with its own allocator, so sessions
// never share cookies or storage.
func (f *ChromedpFactory) NewSession(ctx context.Context) (scenario.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), f.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &ChromedpSession{
		id:     uuid.NewString(),
		ctx:    browserCtx,
		cancel: func() { browserCancel(); allocCancel() },
	}

	var actions []chromedp.Action
	if f.cfg.Viewport.Width > 0 && f.cfg.Viewport.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(f.cfg.Viewport.Width), int64(f.cfg.Viewport.Height)))
	}
	// The first Run allocates the browser and ties its lifetime to the
	// context it is given, so it must run on browserCtx itself.
	stop := context.AfterFunc(ctx, s.cancel)
	err := chromedp.Run(browserCtx, actions...)
	stop()
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}
	return s, nil
}

// ChromedpSession is a scenario.Session over a chromedp browser context.
type ChromedpSession struct {
	id     string
	ctx    context.Context
	cancel func()

	closeOnce sync.Once
	closeErr  error
}

// run executes actions in the browser context, aborting when ctx ends.
func (s *ChromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// ID returns the session identifier.
func (s *ChromedpSession) ID() string {
	return s.id
}

// Navigate opens url and waits for the load event.
func (s *ChromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Type waits for selector and sends text to it.
func (s *ChromedpSession) Type(ctx context.Context, selector, text string) error {
	return s.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Press focuses selector and sends the named key.
func (s *ChromedpSession) Press(ctx context.Context, selector, name string) error {
	k, err := lookupKey(name)
	if err != nil {
		return err
	}
	return s.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, k.chromedp, chromedp.ByQuery),
	)
}

// Click waits for selector and clicks it.
func (s *ChromedpSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// WaitFor blocks until selector matches an element.
func (s *ChromedpSession) WaitFor(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// Evaluate runs a JavaScript expression and returns its JSON value.
// Promises are awaited.
func (s *ChromedpSession) Evaluate(ctx context.Context, script string) (any, error) {
	var v any
	err := s.run(ctx, chromedp.Evaluate(script, &v, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("eval failed: %w", err)
	}
	return v, nil
}

// Visible reports whether selector matches a rendered element.
func (s *ChromedpSession) Visible(ctx context.Context, selector string) (bool, error) {
	return s.evalBool(ctx, visibleScript, selector)
}

// Exists reports whether selector matches any element.
func (s *ChromedpSession) Exists(ctx context.Context, selector string) (bool, error) {
	return s.evalBool(ctx, existsScript, selector)
}

func (s *ChromedpSession) evalBool(ctx context.Context, fn, selector string) (bool, error) {
	arg, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf("(%s)(%s)", fn, arg), &ok)); err != nil {
		return false, fmt.Errorf("eval failed: %w", err)
	}
	return ok, nil
}

// Screenshot captures the viewport as PNG.
func (s *ChromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down and releases the allocator.
func (s *ChromedpSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	return s.closeErr
}
