package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// RodFactory launches one Chrome per session through go-rod.
type RodFactory struct {
	cfg Config
}

// NewRodFactory creates a rod-backed session factory.
func NewRodFactory(cfg Config) *RodFactory {
	return &RodFactory{cfg: cfg}
}

// NewSession launches an isolated Chrome (own user data dir) and opens a
// blank page. The browser is configured with:
//   - Headless mode unless cfg.Headless is false
//   - No sandbox (for container compatibility) when cfg.NoSandbox is set
//   - The configured window size
func (f *RodFactory) NewSession(ctx context.Context) (scenario.Session, error) {
	l := f.launcher(ctx)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser, err := connect(l, u)
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if f.cfg.Viewport.Width > 0 && f.cfg.Viewport.Height > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             f.cfg.Viewport.Width,
			Height:            f.cfg.Viewport.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = browser.Close()
			l.Cleanup()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return &RodSession{
		id:       uuid.NewString(),
		launcher: l,
		browser:  browser,
		page:     page,
	}, nil
}

func (f *RodFactory) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(f.cfg.Headless).
		Set("disable-gpu").
		Set("window-size", fmt.Sprintf("%d,%d", f.cfg.Viewport.Width, f.cfg.Viewport.Height))
	if f.cfg.NoSandbox {
		l = l.Set("no-sandbox")
	}
	if f.cfg.Bin != "" {
		l = l.Bin(f.cfg.Bin)
	}
	if len(f.cfg.Env) > 0 {
		l = l.Env(append(os.Environ(), f.cfg.Env...)...)
	}
	return l
}

// connect attaches to the browser at controlURL. On failure the launched
// process is killed and its user data dir removed.
func connect(l *launcher.Launcher, controlURL string) (*rod.Browser, error) {
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	return browser, nil
}

// RodSession is a scenario.Session over a rod page.
type RodSession struct {
	id       string
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

// ID returns the session identifier.
func (s *RodSession) ID() string {
	return s.id
}

// Navigate opens url and waits for the load event.
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// Type waits for selector and inputs text into it.
func (s *RodSession) Type(ctx context.Context, selector, text string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	return el.Input(text)
}

// Press focuses selector and sends the named key.
func (s *RodSession) Press(ctx context.Context, selector, name string) error {
	k, err := lookupKey(name)
	if err != nil {
		return err
	}
	p := s.page.Context(ctx)
	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("failed to focus %q: %w", selector, err)
	}
	return p.Keyboard.Type(k.rod)
}

// Click waits for selector and clicks it with the left button.
func (s *RodSession) Click(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// WaitFor blocks until selector matches an element.
func (s *RodSession) WaitFor(ctx context.Context, selector string) error {
	if _, err := s.page.Context(ctx).Element(selector); err != nil {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	return nil
}

// Evaluate runs a JavaScript expression and returns its JSON value.
func (s *RodSession) Evaluate(ctx context.Context, script string) (any, error) {
	res, err := evaluateParams(script).Call(s.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("eval failed: %w", err)
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("eval failed: %s", exceptionText(res.ExceptionDetails))
	}
	raw, err := json.Marshal(res.Result.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode eval result: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode eval result: %w", err)
	}
	return v, nil
}

// evaluateParams sends script to Runtime.evaluate unwrapped, as chromedp
// does, so statement lists and trailing semicolons behave the same on both
// drivers.
func evaluateParams(script string) proto.RuntimeEvaluate {
	return proto.RuntimeEvaluate{
		Expression:    script,
		ReturnByValue: true,
		AwaitPromise:  true,
	}
}

func exceptionText(d *proto.RuntimeExceptionDetails) string {
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}

// Visible reports whether selector matches a rendered element.
func (s *RodSession) Visible(ctx context.Context, selector string) (bool, error) {
	return s.evalBool(ctx, visibleScript, selector)
}

// Exists reports whether selector matches any element.
func (s *RodSession) Exists(ctx context.Context, selector string) (bool, error) {
	return s.evalBool(ctx, existsScript, selector)
}

func (s *RodSession) evalBool(ctx context.Context, js, selector string) (bool, error) {
	res, err := s.page.Context(ctx).Eval(js, selector)
	if err != nil {
		return false, fmt.Errorf("eval failed: %w", err)
	}
	return res.Value.Bool(), nil
}

// Screenshot captures the viewport as PNG.
func (s *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := s.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return png, nil
}

// Close cleans up browser resources.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (s *RodSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
		s.launcher.Cleanup()
	})
	return s.closeErr
}
