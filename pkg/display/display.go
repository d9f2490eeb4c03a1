// Package display manages the virtual X display a non-headless browser needs
// on a host without a screen.
package display

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// Display is a process-wide display with an explicit lifecycle.
type Display interface {
	Start(ctx context.Context) error
	Stop() error
	// Env returns the variables a browser process needs to use the display.
	Env() []string
}

// None is the Display for headless browsers. Every method is a no-op.
type None struct{}

func (None) Start(context.Context) error { return nil }
func (None) Stop() error                 { return nil }
func (None) Env() []string               { return nil }

// Xvfb runs an X virtual framebuffer server.
type Xvfb struct {
	Num          int           // Display number, e.g. 99 for :99
	Screen       string        // Screen geometry, e.g. "1280x720x24"
	Bin          string        // Xvfb binary (default: "Xvfb" on PATH)
	StartTimeout time.Duration // How long to wait for the X socket (default: 5s)
	SocketDir    string        // X socket directory (default: /tmp/.X11-unix)

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// NewXvfb returns an Xvfb for display :num with the given screen geometry.
func NewXvfb(num int, screen string) *Xvfb {
	return &Xvfb{Num: num, Screen: screen}
}

// Name returns the DISPLAY value, e.g. ":99".
func (x *Xvfb) Name() string {
	return ":" + strconv.Itoa(x.Num)
}

// Env returns DISPLAY for browser processes.
func (x *Xvfb) Env() []string {
	return []string{"DISPLAY=" + x.Name()}
}

func (x *Xvfb) args() []string {
	screen := x.Screen
	if screen == "" {
		screen = "1280x720x24"
	}
	return []string{x.Name(), "-screen", "0", screen, "-nolisten", "tcp", "-ac"}
}

func (x *Xvfb) socketPath() string {
	dir := x.SocketDir
	if dir == "" {
		dir = "/tmp/.X11-unix"
	}
	return filepath.Join(dir, "X"+strconv.Itoa(x.Num))
}

// Running reports whether the Xvfb process has been started and not stopped.
func (x *Xvfb) Running() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cmd != nil
}

// Start launches Xvfb and waits until its socket appears. Starting a running
// display is a no-op. Failures are returned as *scenario.EnvironmentError.
func (x *Xvfb) Start(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.cmd != nil {
		return nil
	}

	bin := x.Bin
	if bin == "" {
		bin = "Xvfb"
	}
	cmd := exec.Command(bin, x.args()...)
	if err := cmd.Start(); err != nil {
		return &scenario.EnvironmentError{Component: "display", Err: fmt.Errorf("failed to start %s: %w", bin, err)}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
		close(done)
	}()

	timeout := x.StartTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := waitForSocket(ctx, x.socketPath(), timeout, done); err != nil {
		_ = cmd.Process.Kill()
		<-done
		return &scenario.EnvironmentError{Component: "display", Err: err}
	}

	x.cmd = cmd
	x.done = done
	return nil
}

// Stop terminates Xvfb. Stopping a stopped display is a no-op.
func (x *Xvfb) Stop() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.cmd == nil {
		return nil
	}
	cmd, done := x.cmd, x.done
	x.cmd, x.done = nil, nil

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
	return nil
}

// waitForSocket polls for path until it exists, the process exits, the
// timeout passes or ctx ends.
func waitForSocket(ctx context.Context, path string, timeout time.Duration, exited <-chan error) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exited")
			}
			return fmt.Errorf("display server exited before ready: %w", err)
		case <-deadline.C:
			return fmt.Errorf("timeout waiting for %s (waited %v)", path, timeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
