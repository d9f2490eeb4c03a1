package browser

import (
	"fmt"

	"github.com/chromedp/chromedp/kb"
	"github.com/go-rod/rod/lib/input"
)

type key struct {
	rod      input.Key
	chromedp string
}

var keys = map[string]key{
	"Enter":     {rod: input.Enter, chromedp: kb.Enter},
	"Tab":       {rod: input.Tab, chromedp: kb.Tab},
	"Escape":    {rod: input.Escape, chromedp: kb.Escape},
	"Backspace": {rod: input.Backspace, chromedp: kb.Backspace},
}

func lookupKey(name string) (key, error) {
	k, ok := keys[name]
	if !ok {
		return key{}, fmt.Errorf("unsupported key %q", name)
	}
	return k, nil
}
