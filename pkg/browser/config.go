// Package browser provides Chrome sessions for the scenario runner, backed by
// either go-rod or chromedp.
package browser

import (
	"fmt"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// Driver names a CDP client implementation.
type Driver string

const (
	DriverRod      Driver = "rod"
	DriverChromedp Driver = "chromedp"
)

// Viewport is the browser window size.
type Viewport struct {
	Width  int
	Height int
}

// Config configures Chrome launch options.
type Config struct {
	Driver    Driver   // CDP client (default: rod)
	Headless  bool     // Run in headless mode (default: true)
	Bin       string   // Chrome binary; empty lets the driver find or download one
	NoSandbox bool     // Disable the Chrome sandbox (default: true, for containers)
	Env       []string // Extra environment for the Chrome process, e.g. DISPLAY=:99
	Viewport  Viewport
}

// DefaultConfig returns sensible defaults for E2E testing.
func DefaultConfig() Config {
	return Config{
		Driver:    DriverRod,
		Headless:  true,
		NoSandbox: true,
		Viewport:  Viewport{Width: 1280, Height: 720},
	}
}

// NewFactory returns the session factory for cfg.Driver.
func NewFactory(cfg Config) (scenario.SessionFactory, error) {
	switch cfg.Driver {
	case DriverRod, "":
		return NewRodFactory(cfg), nil
	case DriverChromedp:
		return NewChromedpFactory(cfg), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

// Scripts shared by both drivers. A missing element is not visible; a present
// one is visible when its layout box has non-zero width and height.
const (
	existsScript  = `(sel) => document.querySelector(sel) !== null`
	visibleScript = `(sel) => { const el = document.querySelector(sel); return el !== null && el.offsetWidth > 0 && el.offsetHeight > 0; }`
)
