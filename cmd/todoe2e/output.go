package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// progress renders finished scenarios on a progress bar. observe is safe for
// concurrent use.
type progress struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	label  string
	passed int
	failed int
}

func newProgress(w io.Writer, total int, label string) *progress {
	p := &progress{label: label}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return p
}

func (p *progress) describe() string {
	return color.CyanString("%s: ", p.label) +
		color.GreenString("[passed: %d", p.passed) +
		" | " +
		color.RedString("failed: %d]", p.failed)
}

func (p *progress) observe(res scenario.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res.Passed() {
		p.passed++
	} else {
		p.failed++
	}
	p.bar.Describe(p.describe())
	_ = p.bar.Add(1)
}

// printReport writes one line per scenario and a summary.
func printReport(w io.Writer, report scenario.Report) {
	for _, res := range report.Results {
		printResult(w, res)
	}
	if report.Err != nil {
		fmt.Fprintf(w, "%s %v\n", color.RedString("ENV "), report.Err)
	}

	summary := fmt.Sprintf("%d passed, %d failed", report.Passed(), report.Failed())
	if report.OK() {
		fmt.Fprintln(w, color.GreenString("✓ %s", summary))
		return
	}
	fmt.Fprintln(w, color.RedString("✗ %s", summary))
}

func printResult(w io.Writer, res scenario.Result) {
	d := res.Duration.Round(time.Millisecond)
	if res.Passed() {
		fmt.Fprintf(w, "%s %s %s\n", color.GreenString("PASS"), res.Scenario, color.New(color.Faint).Sprintf("(%v)", d))
	} else {
		fmt.Fprintf(w, "%s %s %s\n", color.RedString("FAIL"), res.Scenario, color.New(color.Faint).Sprintf("(%v)", d))
		fmt.Fprintf(w, "     %s %v\n", color.YellowString("%s:", scenario.KindOf(res.Err)), res.Err)
	}
	for _, err := range res.SnapshotErrors {
		fmt.Fprintf(w, "     %s %v\n", color.YellowString("snapshot:"), err)
	}
	if res.CloseErr != nil {
		fmt.Fprintf(w, "     %s %v\n", color.YellowString("close:"), res.CloseErr)
	}
}
