package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DriverRod, cfg.Driver)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.NoSandbox)
	assert.Equal(t, Viewport{Width: 1280, Height: 720}, cfg.Viewport)
}

func TestNewFactory(t *testing.T) {
	cfg := DefaultConfig()

	f, err := NewFactory(cfg)
	require.NoError(t, err)
	assert.IsType(t, &RodFactory{}, f)

	cfg.Driver = ""
	f, err = NewFactory(cfg)
	require.NoError(t, err)
	assert.IsType(t, &RodFactory{}, f)

	cfg.Driver = DriverChromedp
	f, err = NewFactory(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ChromedpFactory{}, f)

	cfg.Driver = "selenium"
	_, err = NewFactory(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "selenium")
}

func TestLookupKey(t *testing.T) {
	for _, name := range []string{"Enter", "Tab", "Escape", "Backspace"} {
		_, err := lookupKey(name)
		assert.NoError(t, err, name)
	}

	k, err := lookupKey("Enter")
	require.NoError(t, err)
	assert.Equal(t, "\r", k.chromedp)

	_, err = lookupKey("F13")
	assert.Error(t, err)
}

func TestEvaluateParams(t *testing.T) {
	script := "const n = document.querySelectorAll('li').length; n;"
	p := evaluateParams(script)
	assert.Equal(t, script, p.Expression, "script is sent unwrapped")
	assert.True(t, p.ReturnByValue)
	assert.True(t, p.AwaitPromise)
}

func TestExceptionText(t *testing.T) {
	assert.Equal(t, "ReferenceError: x is not defined", exceptionText(&proto.RuntimeExceptionDetails{
		Text:      "Uncaught",
		Exception: &proto.RuntimeRemoteObject{Description: "ReferenceError: x is not defined"},
	}))
	assert.Equal(t, "Uncaught", exceptionText(&proto.RuntimeExceptionDetails{Text: "Uncaught"}))
}

func TestChromedpAllocatorOptions(t *testing.T) {
	base := NewChromedpFactory(Config{Headless: true}).allocatorOptions()

	full := NewChromedpFactory(Config{
		Headless:  true,
		NoSandbox: true,
		Bin:       "/usr/bin/chromium",
		Env:       []string{"DISPLAY=:99"},
		Viewport:  Viewport{Width: 800, Height: 600},
	}).allocatorOptions()

	assert.Len(t, full, len(base)+4)
}
