// Package snapshot delivers page captures to visual-regression services or
// to disk. Delivery failures are reported to the caller and never retried.
package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one captured page state.
type Snapshot struct {
	ID       string
	Name     string
	Scenario string
	PNG      []byte
	TakenAt  time.Time
}

// Uploader stores or transmits a snapshot.
type Uploader interface {
	Upload(ctx context.Context, s Snapshot) error
}

// Collector adapts an Uploader to the scenario runner's snapshotter.
type Collector struct {
	uploader Uploader
	now      func() time.Time
}

// NewCollector returns a Collector that sends every capture to u.
func NewCollector(u Uploader) *Collector {
	return &Collector{uploader: u, now: time.Now}
}

// Capture wraps png in a Snapshot with a fresh ID and uploads it.
func (c *Collector) Capture(ctx context.Context, scenario, name string, png []byte) error {
	return c.uploader.Upload(ctx, Snapshot{
		ID:       uuid.NewString(),
		Name:     name,
		Scenario: scenario,
		PNG:      png,
		TakenAt:  c.now(),
	})
}

// HTTPUploader POSTs snapshots as JSON to a visual-regression endpoint.
type HTTPUploader struct {
	Endpoint string
	Token    string // Sent as "Authorization: Token <token>" when set
	Client   *http.Client
}

type uploadRequest struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Scenario string    `json:"scenario"`
	TakenAt  time.Time `json:"taken_at"`
	Image    string    `json:"image"` // base64 PNG
}

// Upload sends s and fails on any non-2xx response.
func (u *HTTPUploader) Upload(ctx context.Context, s Snapshot) error {
	body, err := json.Marshal(uploadRequest{
		ID:       s.ID,
		Name:     s.Name,
		Scenario: s.Scenario,
		TakenAt:  s.TakenAt.UTC(),
		Image:    base64.StdEncoding.EncodeToString(s.PNG),
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.Token != "" {
		req.Header.Set("Authorization", "Token "+u.Token)
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %q: %w", s.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("snapshot %q rejected: %s: %s", s.Name, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

// DirStore writes snapshots to Dir/<scenario>/<name>.png.
type DirStore struct {
	Dir string
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and replaces runs of other characters with "-".
func Slug(s string) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "unnamed"
	}
	return slug
}

// Path returns where s is written.
func (d *DirStore) Path(s Snapshot) string {
	return filepath.Join(d.Dir, Slug(s.Scenario), Slug(s.Name)+".png")
}

// Upload writes s to disk, replacing an earlier capture of the same name.
func (d *DirStore) Upload(_ context.Context, s Snapshot) error {
	path := d.Path(s)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, s.PNG, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Multi uploads to every Uploader and joins their errors.
type Multi []Uploader

// Upload calls every uploader even when an earlier one fails.
func (m Multi) Upload(ctx context.Context, s Snapshot) error {
	var errs []error
	for _, u := range m {
		if err := u.Upload(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
