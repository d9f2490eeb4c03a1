// Package contract checks that a served page carries the DOM hooks the
// scenarios depend on before any browser is launched.
package contract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// DefaultSelectors are present in the static markup of every TodoMVC build.
// Elements rendered by script (list items, counters) are not checked here.
var DefaultSelectors = []string{"section.todoapp"}

// Check fetches url and reports every selector with no match in the returned
// document. All failures are *scenario.EnvironmentError.
func Check(ctx context.Context, client *http.Client, url string, selectors []string) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return envErr(fmt.Errorf("failed to build request: %w", err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return envErr(fmt.Errorf("failed to fetch %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return envErr(fmt.Errorf("fetch %s: %s", url, resp.Status))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return envErr(fmt.Errorf("failed to parse %s: %w", url, err))
	}

	var missing []string
	for _, sel := range selectors {
		if doc.Find(sel).Length() == 0 {
			missing = append(missing, sel)
		}
	}
	if len(missing) > 0 {
		return envErr(fmt.Errorf("page %s is missing %s", url, strings.Join(missing, ", ")))
	}
	return nil
}

func envErr(err error) error {
	return &scenario.EnvironmentError{Component: "application", Err: err}
}
