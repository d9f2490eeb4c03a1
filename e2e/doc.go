//go:build e2e

// Package e2e runs the TodoMVC scenarios in a real Chrome.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// E2E tests use:
//   - the todoserve server, started once by TestMain and shared by every test
//     (TODOMVC_PORT pins the port; a random port is used otherwise)
//   - Rod and chromedp session factories from pkg/browser
//
// Test isolation:
// Every scenario runs in its own browser with a fresh profile, so no todo
// written by one scenario is visible to another.
package e2e
